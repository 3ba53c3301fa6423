package analysis

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeDeveloperID trims, NFC-normalizes and case-folds a developer identity
// so that "Jane@Example.com " and "jane@example.com" name the same developer.
func NormalizeDeveloperID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	// cases.Caser keeps state, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(id))
}
