package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// ContentHash is the hex SHA-256 of a file's content. Re-indexing skips
// files whose stored hash matches.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// SettingsHash computes a deterministic hash of the settings that shape an
// export, so that a database built under different settings can be
// detected and rebuilt. Key order does not matter.
func SettingsHash(settings map[string]string) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, settings[k])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
