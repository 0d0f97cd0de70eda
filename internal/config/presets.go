package config

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"animat/internal/scapeid"
)

//go:embed presets/*.yaml
var presetFS embed.FS

var ErrUnknownPreset = errors.New("unknown preset")

// Presets lists the built-in simulations.
func Presets() []string {
	entries, err := presetFS.ReadDir("presets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Preset returns a fresh copy of a built-in simulation. Names are
// normalised, so "Random_Mom_And_Calf2" and "networkmomandcalf" both work.
func Preset(name string) (*Simulation, error) {
	canonical := scapeid.Normalize(name)
	data, err := presetFS.ReadFile("presets/" + canonical + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	sim, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", canonical, err)
	}
	return sim, nil
}
