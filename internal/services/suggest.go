package services

import (
	"sort"
	"strings"

	"example.com/backstage/services/taxonomy/internal/models"
)

// DefaultSuggestionThreshold is the minimum similarity a candidate must
// strictly exceed to be suggested.
const DefaultSuggestionThreshold = 0.6

// maxSuggestions caps the result list.
const maxSuggestions = 5

// SuggestProperties scores query against every existing property name,
// case-insensitively, and returns candidates whose similarity is strictly
// above threshold. Names equal to the query after normalization are skipped.
// Results are sorted by descending similarity, ties kept in enumeration
// order, and capped at five.
func SuggestProperties(query string, existing []models.PropertyNameType, threshold float64) []models.PropertySuggestion {
	normalized := strings.ToLower(query)

	suggestions := []models.PropertySuggestion{}
	for _, candidate := range existing {
		name := strings.ToLower(candidate.Name)
		if name == normalized {
			continue
		}
		score := similarity(normalized, name)
		if score > threshold {
			suggestions = append(suggestions, models.PropertySuggestion{
				Name:       candidate.Name,
				DataType:   candidate.DataType,
				Similarity: score,
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Similarity > suggestions[j].Similarity
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// similarity is a longest-common-subsequence ratio: twice the number of
// matched characters over the total length of both strings. Symmetric,
// bounded in [0,1], and equal to 1 only for identical strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ra := []rune(a)
	rb := []rune(b)

	// Single-row LCS table.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	matched := prev[len(rb)]
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}
