package scapeid

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":                           "",
		"  Sea ":                     "sea",
		"scape-sea":                  "sea",
		"Grid_World":                 "grid",
		"mom_and_calf":               "mom-and-calf",
		"random_mom_and_calf2.py":    "random-mom-and-calf2",
		"preset-random mom and calf": "random-mom-and-calf",
		"Random-Mom-And-Calf.yaml":   "random-mom-and-calf",
		"custom_world":               "custom-world",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
