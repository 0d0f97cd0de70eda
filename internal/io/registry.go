package io

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"animat/internal/scapeid"
)

const (
	SupportedSchemaVersion = 1
	SupportedCodecVersion  = 1
)

var (
	ErrKindExists      = errors.New("object kind already registered")
	ErrKindNotFound    = errors.New("object kind not found")
	ErrMotorExists     = errors.New("motor already registered")
	ErrMotorNotFound   = errors.New("motor not found")
	ErrVersionMismatch = errors.New("registry version mismatch")
	ErrIncompatible    = errors.New("component incompatible with scape")
)

type CompatibilityFn func(scape string) error

type KindSpec struct {
	Name Kind
	// Spatial kinds occupy a cell; non-spatial kinds are signals such as
	// a song that every agent in the scape perceives.
	Spatial       bool
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type MotorSpec struct {
	Name          Motor
	Primitives    []Primitive
	SchemaVersion int
	CodecVersion  int
	Compatible    CompatibilityFn
}

type registeredKind struct {
	spatial       bool
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

type registeredMotor struct {
	primitives    []Primitive
	schemaVersion int
	codecVersion  int
	compatible    CompatibilityFn
}

var kindRegistry = struct {
	mu sync.RWMutex
	m  map[Kind]registeredKind
}{
	m: make(map[Kind]registeredKind),
}

var motorRegistry = struct {
	mu sync.RWMutex
	m  map[Motor]registeredMotor
}{
	m: make(map[Motor]registeredMotor),
}

func RegisterKind(name Kind, spatial bool) error {
	return RegisterKindWithSpec(KindSpec{
		Name:          name,
		Spatial:       spatial,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func RegisterKindWithSpec(spec KindSpec) error {
	if strings.TrimSpace(string(spec.Name)) == "" {
		return errors.New("kind name is required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	kindRegistry.mu.Lock()
	defer kindRegistry.mu.Unlock()

	if _, exists := kindRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrKindExists, spec.Name)
	}
	kindRegistry.m[spec.Name] = registeredKind{
		spatial:       spec.Spatial,
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

// LookupKind reports whether name is registered at all, ignoring scape
// compatibility.
func LookupKind(name Kind) (spatial bool, ok bool) {
	kindRegistry.mu.RLock()
	defer kindRegistry.mu.RUnlock()
	entry, ok := kindRegistry.m[name]
	return entry.spatial, ok
}

// ResolveKind checks that name is registered and usable in scape.
func ResolveKind(name Kind, scape string) (spatial bool, err error) {
	kindRegistry.mu.RLock()
	entry, ok := kindRegistry.m[name]
	kindRegistry.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrKindNotFound, name)
	}
	if err := compatibilityError("kind", string(name), entry.schemaVersion, entry.codecVersion, entry.compatible, scapeid.Normalize(scape)); err != nil {
		return false, err
	}
	return entry.spatial, nil
}

func ListKindsForScape(scape string) []Kind {
	normalized := scapeid.Normalize(scape)

	kindRegistry.mu.RLock()
	defer kindRegistry.mu.RUnlock()

	names := make([]Kind, 0, len(kindRegistry.m))
	for name, entry := range kindRegistry.m {
		if compatibilityError("kind", string(name), entry.schemaVersion, entry.codecVersion, entry.compatible, normalized) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func RegisterMotor(name Motor, primitives ...Primitive) error {
	return RegisterMotorWithSpec(MotorSpec{
		Name:          name,
		Primitives:    primitives,
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
	})
}

func RegisterMotorWithSpec(spec MotorSpec) error {
	if strings.TrimSpace(string(spec.Name)) == "" {
		return errors.New("motor name is required")
	}
	if len(spec.Primitives) == 0 {
		return errors.New("motor primitives are required")
	}
	if spec.SchemaVersion != SupportedSchemaVersion || spec.CodecVersion != SupportedCodecVersion {
		return fmt.Errorf("%w: schema=%d codec=%d", ErrVersionMismatch, spec.SchemaVersion, spec.CodecVersion)
	}

	motorRegistry.mu.Lock()
	defer motorRegistry.mu.Unlock()

	if _, exists := motorRegistry.m[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrMotorExists, spec.Name)
	}
	motorRegistry.m[spec.Name] = registeredMotor{
		primitives:    append([]Primitive(nil), spec.Primitives...),
		schemaVersion: spec.SchemaVersion,
		codecVersion:  spec.CodecVersion,
		compatible:    spec.Compatible,
	}
	return nil
}

// ResolveMotor returns the primitive batch for name in scape.
func ResolveMotor(name Motor, scape string) ([]Primitive, error) {
	motorRegistry.mu.RLock()
	entry, ok := motorRegistry.m[Motor(strings.TrimSpace(string(name)))]
	motorRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMotorNotFound, name)
	}
	if err := compatibilityError("motor", string(name), entry.schemaVersion, entry.codecVersion, entry.compatible, scapeid.Normalize(scape)); err != nil {
		return nil, err
	}
	return append([]Primitive(nil), entry.primitives...), nil
}

func MotorCompatibleWithScape(name Motor, scape string) bool {
	_, err := ResolveMotor(name, scape)
	return err == nil
}

func ListMotorsForScape(scape string) []Motor {
	normalized := scapeid.Normalize(scape)

	motorRegistry.mu.RLock()
	defer motorRegistry.mu.RUnlock()

	names := make([]Motor, 0, len(motorRegistry.m))
	for name, entry := range motorRegistry.m {
		if compatibilityError("motor", string(name), entry.schemaVersion, entry.codecVersion, entry.compatible, normalized) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func compatibilityError(what, name string, schema, codec int, compatible CompatibilityFn, scape string) error {
	if schema != SupportedSchemaVersion || codec != SupportedCodecVersion {
		return fmt.Errorf("%w: %s", ErrVersionMismatch, name)
	}
	if compatible != nil {
		if err := compatible(scape); err != nil {
			return fmt.Errorf("%w: %s=%s: %v", ErrIncompatible, what, name, err)
		}
	}
	return nil
}

func resetRegistriesForTests() {
	kindRegistry.mu.Lock()
	kindRegistry.m = make(map[Kind]registeredKind)
	kindRegistry.mu.Unlock()

	motorRegistry.mu.Lock()
	motorRegistry.m = make(map[Motor]registeredMotor)
	motorRegistry.mu.Unlock()

	initializeDefaultComponents()
}
