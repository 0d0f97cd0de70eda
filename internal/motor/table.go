package motor

import (
	"fmt"
	"log/slog"

	protoio "animat/internal/io"
	"animat/internal/logging"
	"animat/internal/model"
	"animat/internal/network"
)

type TableEntry struct {
	State network.ActivationSet
	Motor protoio.Motor
}

type TableConfig struct {
	Entries []TableEntry
	// Mask, when non-nil, projects every activation set onto these ids
	// before lookup. Entry states must lie inside the mask.
	Mask *network.ActivationSet
	// Default answers every miss. It is required.
	Default protoio.Motor
	Logger  *slog.Logger
}

// Table is an immutable state-to-motor mapping.
type Table struct {
	entries  map[string]protoio.Motor
	mask     *network.ActivationSet
	fallback protoio.Motor
	logger   *slog.Logger
}

func NewTable(cfg TableConfig) (*Table, error) {
	if cfg.Default == "" {
		return nil, fmt.Errorf("%w: state-to-motor table requires a default motor", model.ErrConfiguration)
	}
	entries := make(map[string]protoio.Motor, len(cfg.Entries))
	for _, entry := range cfg.Entries {
		if entry.Motor == "" {
			return nil, fmt.Errorf("%w: table entry %s has no motor", model.ErrConfiguration, entry.State)
		}
		if cfg.Mask != nil && !entry.State.Intersect(*cfg.Mask).Equal(entry.State) {
			return nil, fmt.Errorf("%w: table entry %s lies outside mask %s", model.ErrConfiguration, entry.State, *cfg.Mask)
		}
		key := entry.State.Key()
		if existing, dup := entries[key]; dup && existing != entry.Motor {
			return nil, fmt.Errorf("%w: table entry %s maps to both %s and %s", model.ErrConfiguration, key, existing, entry.Motor)
		}
		entries[key] = entry.Motor
	}

	var mask *network.ActivationSet
	if cfg.Mask != nil {
		copied := network.NewActivationSet(cfg.Mask.IDs()...)
		mask = &copied
	}
	logger := logging.OrDefault(cfg.Logger)
	return &Table{
		entries:  entries,
		mask:     mask,
		fallback: cfg.Default,
		logger:   logger,
	}, nil
}

func (t *Table) project(set network.ActivationSet) network.ActivationSet {
	if t.mask == nil {
		return set
	}
	return set.Intersect(*t.mask)
}

// Lookup reports the mapped motor and whether the (projected) set was found.
func (t *Table) Lookup(set network.ActivationSet) (protoio.Motor, bool) {
	m, ok := t.entries[t.project(set).Key()]
	return m, ok
}

// LookupStrict is Lookup for callers that treat a miss as an error.
func (t *Table) LookupStrict(set network.ActivationSet) (protoio.Motor, error) {
	m, ok := t.Lookup(set)
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrLookupMiss, t.project(set))
	}
	return m, nil
}

// Resolve answers a miss with the table default.
func (t *Table) Resolve(set network.ActivationSet) protoio.Motor {
	if m, ok := t.Lookup(set); ok {
		return m
	}
	t.logger.Debug("state-to-motor miss", "state", t.project(set).Key(), "default", t.fallback)
	return t.fallback
}

func (t *Table) Default() protoio.Motor {
	return t.fallback
}

func (t *Table) Len() int {
	return len(t.entries)
}
