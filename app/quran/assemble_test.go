package quran

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleVerseResultsMergesRenditions(t *testing.T) {
	tuples := []TextTuple{
		{AyaKey: "1:1", Language: "arabic", TextType: "simple", Text: "نص"},
		{AyaKey: "1:1", Language: "english", TextType: "maududi", Text: "text"},
		{AyaKey: "1:1", Language: "english", TextType: "pickthall", Text: "other text"},
		{AyaKey: "1:2", Language: "arabic", TextType: "simple", Text: "نص آخر"},
	}

	results := AssembleVerseResults(tuples, OrderByAyaNumber)
	require.Len(t, results, 2)

	assert.Equal(t, "1:1", results[0].AyaKey)
	assert.Equal(t, map[string]map[string]string{
		"arabic":  {"simple": "نص"},
		"english": {"maududi": "text", "pickthall": "other text"},
	}, results[0].Texts)

	assert.Equal(t, "1:2", results[1].AyaKey)
	assert.Equal(t, map[string]map[string]string{
		"arabic": {"simple": "نص آخر"},
	}, results[1].Texts)
}

func TestAssembleVerseResultsAyaNumberOrderIsNumeric(t *testing.T) {
	tuples := []TextTuple{
		{AyaKey: "2:10", Language: "arabic", TextType: "simple", Text: "c"},
		{AyaKey: "2:2", Language: "arabic", TextType: "simple", Text: "b"},
		{AyaKey: "2:1", Language: "arabic", TextType: "simple", Text: "a"},
	}

	results := AssembleVerseResults(tuples, OrderByAyaNumber)
	require.Len(t, results, 3)
	assert.Equal(t, "2:1", results[0].AyaKey)
	assert.Equal(t, "2:2", results[1].AyaKey)
	assert.Equal(t, "2:10", results[2].AyaKey, "verse 10 sorts after verse 2, not before")
}

func TestAssembleVerseResultsAyaKeyOrder(t *testing.T) {
	tuples := []TextTuple{
		{AyaKey: "2:5", Language: "arabic", TextType: "simple", Text: "b"},
		{AyaKey: "114:1", Language: "arabic", TextType: "simple", Text: "c"},
		{AyaKey: "1:1", Language: "arabic", TextType: "simple", Text: "a"},
	}

	results := AssembleVerseResults(tuples, OrderByAyaKey)
	require.Len(t, results, 3)
	assert.Equal(t, "1:1", results[0].AyaKey)
	assert.Equal(t, "114:1", results[1].AyaKey)
	assert.Equal(t, "2:5", results[2].AyaKey)
}

func TestAssembleVerseResultsEmpty(t *testing.T) {
	assert.Empty(t, AssembleVerseResults(nil, OrderByAyaKey))
}
