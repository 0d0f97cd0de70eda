package network

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ActivationSet is the sorted set of node ids that evaluated true in one
// tick. The zero value is the empty set.
type ActivationSet struct {
	ids []int
}

func NewActivationSet(ids ...int) ActivationSet {
	if len(ids) == 0 {
		return ActivationSet{}
	}
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	out := sorted[:1]
	for _, id := range sorted[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return ActivationSet{ids: out}
}

func (s ActivationSet) Has(id int) bool {
	i := sort.SearchInts(s.ids, id)
	return i < len(s.ids) && s.ids[i] == id
}

func (s ActivationSet) Len() int {
	return len(s.ids)
}

func (s ActivationSet) IDs() []int {
	return append([]int(nil), s.ids...)
}

func (s ActivationSet) Equal(other ActivationSet) bool {
	if len(s.ids) != len(other.ids) {
		return false
	}
	for i := range s.ids {
		if s.ids[i] != other.ids[i] {
			return false
		}
	}
	return true
}

// Intersect projects the set onto mask.
func (s ActivationSet) Intersect(mask ActivationSet) ActivationSet {
	out := make([]int, 0, len(s.ids))
	for _, id := range s.ids {
		if mask.Has(id) {
			out = append(out, id)
		}
	}
	return ActivationSet{ids: out}
}

// Key is the canonical text form, e.g. "{0,2}" or "{}".
func (s ActivationSet) Key() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range s.ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	b.WriteByte('}')
	return b.String()
}

func (s ActivationSet) String() string {
	return s.Key()
}

// ParseActivationKey accepts the Key form with or without braces and
// tolerates spaces.
func ParseActivationKey(key string) (ActivationSet, error) {
	trimmed := strings.TrimSpace(key)
	trimmed = strings.TrimPrefix(trimmed, "{")
	trimmed = strings.TrimSuffix(trimmed, "}")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return ActivationSet{}, nil
	}
	parts := strings.Split(trimmed, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return ActivationSet{}, fmt.Errorf("activation key %q: %w", key, err)
		}
		ids = append(ids, id)
	}
	return NewActivationSet(ids...), nil
}
