package textutil

import "strings"

// NormalizeSpecs cleans a product specification map ("RAM": "8 GB",
// "Battery health": "91%"). Keys and values are trimmed and entries whose key
// trims to empty are dropped. An empty result collapses to nil so Firestore
// never stores an empty map.
func NormalizeSpecs(specs map[string]string) map[string]string {
	if len(specs) == 0 {
		return nil
	}
	result := make(map[string]string, len(specs))
	for key, value := range specs {
		name := strings.TrimSpace(key)
		if name == "" {
			continue
		}
		result[name] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
