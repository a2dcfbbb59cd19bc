package database

import (
	"fmt"
	"sort"
)

// sortedOptions merges defaults with overrides and renders key=value pairs in key order.
func sortedOptions(defaults, overrides map[string]string) []string {
	merged := make(map[string]string, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, merged[key]))
	}
	return pairs
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func withDefaultPort(port, fallback int) int {
	if port == 0 {
		return fallback
	}
	return port
}
