package scapeid

import "strings"

// Normalize canonicalizes scape and preset names and their aliases.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	normalized = strings.TrimSuffix(normalized, ".yaml")
	normalized = strings.TrimSuffix(normalized, ".py")
	normalized = strings.Trim(normalized, "-")
	if normalized == "" {
		return ""
	}
	if canonical, ok := normalizeKnownAlias(normalized); ok {
		return canonical
	}
	return normalized
}

func normalizeKnownAlias(normalized string) (string, bool) {
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalName(candidate); ok {
			return canonical, true
		}
	}
	return "", false
}

func aliasCandidates(normalized string) []string {
	candidate := strings.TrimPrefix(normalized, "scape-")
	if candidate == normalized {
		candidate = strings.TrimPrefix(candidate, "preset-")
	}
	candidate = strings.Trim(candidate, "-")

	candidates := []string{normalized}
	if candidate != "" && candidate != normalized {
		candidates = append(candidates, candidate)
	}
	return candidates
}

func canonicalName(alias string) (string, bool) {
	compact := strings.ReplaceAll(alias, "-", "")
	switch compact {
	case "sea", "ocean":
		return "sea", true
	case "grid", "gridworld":
		return "grid", true
	case "momandcalf", "learningmomandcalf":
		return "mom-and-calf", true
	case "randommomandcalf":
		return "random-mom-and-calf", true
	case "randommomandcalf2", "networkmomandcalf":
		return "random-mom-and-calf2", true
	default:
		return "", false
	}
}
