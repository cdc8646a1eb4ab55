package util

import "strings"

// NormalizeName derives the unique, case-insensitive name of a catalog entry
// from its display name.
func NormalizeName(displayName string) string {
	return strings.Join(strings.Fields(strings.ToLower(displayName)), " ")
}

// CleanDisplayName trims and collapses inner whitespace.
func CleanDisplayName(displayName string) string {
	return strings.Join(strings.Fields(displayName), " ")
}
