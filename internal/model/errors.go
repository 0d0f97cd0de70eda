package model

import "errors"

var (
	// ErrConfiguration marks construction-time misconfiguration. It is never
	// returned from a running tick.
	ErrConfiguration = errors.New("configuration error")
	ErrLookupMiss    = errors.New("state-to-motor lookup miss")
)
