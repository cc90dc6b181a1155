package services

import "strings"

// CandidateAllowed checks a label against the configured ballot. Labels
// are compared after trimming; the set itself is normalized by config.
func CandidateAllowed(candidates []string, label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	for _, candidate := range candidates {
		if candidate == label {
			return true
		}
	}
	return false
}
