package io

// Kind names a registered class of world object or signal ("Squid", "Song").
type Kind string

// Motor names a composite command that a scape executes as a batch of
// primitives.
type Motor string

// Primitive is one elementary action a scape knows how to perform.
type Primitive string

const (
	PrimitiveForward Primitive = "forward"
	PrimitiveUp      Primitive = "up"
	PrimitiveDown    Primitive = "down"
	PrimitiveEat     Primitive = "eat"
	PrimitiveSing    Primitive = "sing"
	PrimitiveNorth   Primitive = "north"
	PrimitiveSouth   Primitive = "south"
	PrimitiveEast    Primitive = "east"
	PrimitiveWest    Primitive = "west"
)

// Entry is one perceived object together with its auxiliary data. Most
// consumers only look at Kind.
type Entry struct {
	Kind     Kind
	Label    string
	Distance float64
}

// Percept is everything an agent perceives in one tick.
type Percept []Entry

func (p Percept) Has(kind Kind) bool {
	for _, e := range p {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// HasLabel reports whether an entry of kind carries label.
func (p Percept) HasLabel(kind Kind, label string) bool {
	for _, e := range p {
		if e.Kind == kind && e.Label == label {
			return true
		}
	}
	return false
}

// Kinds returns the distinct kinds in first-seen order.
func (p Percept) Kinds() []Kind {
	seen := make(map[Kind]struct{}, len(p))
	kinds := make([]Kind, 0, len(p))
	for _, e := range p {
		if _, ok := seen[e.Kind]; ok {
			continue
		}
		seen[e.Kind] = struct{}{}
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
