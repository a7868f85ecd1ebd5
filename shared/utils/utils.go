package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// SortedKeys returns the keys of a string set in lexicographic order.
func SortedKeys(m map[string]struct{}) []string {
	s := make([]string, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	sort.Strings(s)
	return s
}
