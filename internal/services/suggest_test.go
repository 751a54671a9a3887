package services

import (
	"testing"

	"example.com/backstage/services/taxonomy/internal/models"

	"github.com/stretchr/testify/require"
)

func TestSuggestPropertiesExcludesExactMatch(t *testing.T) {
	existing := []models.PropertyNameType{
		{Name: "user_id", DataType: "String"},
		{Name: "user_uid", DataType: "String"},
	}

	suggestions := SuggestProperties("user_id", existing, DefaultSuggestionThreshold)

	require.Len(t, suggestions, 1)
	require.Equal(t, "user_uid", suggestions[0].Name)
}

func TestSuggestPropertiesExactMatchIsCaseInsensitive(t *testing.T) {
	existing := []models.PropertyNameType{
		{Name: "User_ID", DataType: "String"},
	}

	suggestions := SuggestProperties("user_id", existing, DefaultSuggestionThreshold)

	require.Empty(t, suggestions)
}

func TestSuggestPropertiesThresholdIsStrict(t *testing.T) {
	existing := []models.PropertyNameType{
		{Name: "ab", DataType: "String"},
	}

	// "ab" vs "ax" scores exactly 0.5, which must not pass a 0.5 threshold.
	suggestions := SuggestProperties("ax", existing, 0.5)

	require.Empty(t, suggestions)
}

func TestSuggestPropertiesOrderedByScoreDescending(t *testing.T) {
	existing := []models.PropertyNameType{
		{Name: "order_idx", DataType: "Int"},
		{Name: "order_i", DataType: "String"},
		{Name: "order_id_v2", DataType: "String"},
	}

	suggestions := SuggestProperties("order_id", existing, 0.1)

	require.NotEmpty(t, suggestions)
	for i := 1; i < len(suggestions); i++ {
		require.GreaterOrEqual(t, suggestions[i-1].Similarity, suggestions[i].Similarity)
	}
}

func TestSuggestPropertiesCapsResults(t *testing.T) {
	existing := []models.PropertyNameType{
		{Name: "user_id1", DataType: "String"},
		{Name: "user_id2", DataType: "String"},
		{Name: "user_id3", DataType: "String"},
		{Name: "user_id4", DataType: "String"},
		{Name: "user_id5", DataType: "String"},
		{Name: "user_id6", DataType: "String"},
		{Name: "user_id7", DataType: "String"},
	}

	suggestions := SuggestProperties("user_id", existing, 0.1)

	require.Len(t, suggestions, 5)
}

func TestSuggestPropertiesEmptyRegistry(t *testing.T) {
	suggestions := SuggestProperties("anything", nil, DefaultSuggestionThreshold)

	require.Empty(t, suggestions)
}

func TestSimilarityBounds(t *testing.T) {
	require.Equal(t, 1.0, similarity("screen_name", "screen_name"))
	require.Equal(t, 0.0, similarity("abc", "xyz"))

	score := similarity("total_amount", "total_amt")
	require.Greater(t, score, 0.0)
	require.Less(t, score, 1.0)
}

func TestSimilarityIsSymmetric(t *testing.T) {
	require.Equal(t, similarity("share_method", "share_mode"), similarity("share_mode", "share_method"))
}
