package storage

import "fmt"

// NewStore opens the run store named by kind: "memory" (or empty) keeps
// runs, Q-tables and status histories for the life of the process, and
// "sqlite" persists them at sqlitePath when built with the sqlite tag.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported run store backend: %s", kind)
	}
}

// CloseIfSupported releases a store that holds a database handle.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
