// Package suggest provides fuzzy matching for CLI flag, command and config
// key suggestions using Levenshtein distance.
package suggest

import (
	"sort"
	"strings"
)

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// Closest returns up to three candidates near unknown, best first. Leading
// dashes are ignored on both sides and ties keep the candidates' order.
func Closest(unknown string, candidates []string) []string {
	unknown = strings.ToLower(strings.TrimLeft(unknown, "-"))
	if unknown == "" {
		return nil
	}

	type scored struct {
		value string
		score int
	}
	var matches []scored
	maxDist := max(2, len(unknown)/2)
	for _, c := range candidates {
		dist := levenshtein(unknown, strings.ToLower(strings.TrimLeft(c, "-")))
		if dist <= maxDist {
			matches = append(matches, scored{c, dist})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	var result []string
	for i := 0; i < len(matches) && i < 3; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// flagHints maps commonly attempted flags to what soilnet uses instead.
var flagHints = map[string]string{
	"password": "set SOILNET_PASSWORD or run without --no-input to be prompted",
	"pass":     "set SOILNET_PASSWORD or run without --no-input to be prompted",
	"force":    "--yes, -y",
	"confirm":  "--yes, -y",
	"server":   "set SOILNET_URL or run: soilnet config set server_url <url>",
	"url":      "set SOILNET_URL or run: soilnet config set server_url <url>",
	"id":       "pass ids as arguments",
	"mobile":   "--phone",
	"tel":      "--phone",
	"document": "--doc kind=path",
	"file":     "--doc kind=path",
	"version":  "use: soilnet --version",
}

// FlagHint returns a hint for a commonly misused flag, or "".
func FlagHint(flag string) string {
	return flagHints[strings.ToLower(strings.TrimLeft(flag, "-"))]
}
