package graph

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestUpsertVertexConverges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.UpsertVertex(ctx, Vertex{
		Label: VertexWord, Key: "w1",
		Props: map[string]any{"word": "الله", "count": 1},
	})
	require.NoError(t, err)
	err = store.UpsertVertex(ctx, Vertex{
		Label: VertexWord, Key: "w1",
		Props: map[string]any{"word": "الله", "count": 5},
	})
	require.NoError(t, err)

	v, found, err := store.GetVertex(ctx, Ref{Label: VertexWord, Key: "w1"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, float64(5), v.Props["count"])

	all, err := store.VerticesWhere(ctx, VertexWord, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1, "upserting the same key twice must not duplicate the vertex")
}

func TestGetVertexMissing(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.GetVertex(context.Background(), Ref{Label: VertexSurah, Key: "999"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInternTextDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v1, err := store.InternText(ctx, "بسم الله الرحمن الرحيم")
	require.NoError(t, err)
	v2, err := store.InternText(ctx, "بسم الله الرحمن الرحيم")
	require.NoError(t, err)
	assert.Equal(t, v1.Key, v2.Key)

	blobs, err := store.VerticesWhere(ctx, VertexText, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, blobs, 1, "identical texts must share one blob")

	found, ok, err := store.FindVertex(ctx, VertexText, "text", "بسم الله الرحمن الرحيم")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v1.Key, found.Key)
}

func TestEdgeUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	aya := Ref{Label: VertexAya, Key: "1:1"}
	text, err := store.InternText(ctx, "some text")
	require.NoError(t, err)

	link := func(textType string) error {
		return store.UpsertEdge(ctx, Edge{
			Label: EdgeAyaText,
			From:  aya,
			To:    text.Ref(),
			Props: map[string]any{"language": "arabic", "text_type": textType},
		}, []string{"language", "text_type"})
	}

	require.NoError(t, link("simple"))
	require.NoError(t, link("simple"))
	require.NoError(t, link("uthmani"))

	counts, err := store.CountEdgesByTarget(ctx, EdgeAyaText)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[text.Key],
		"same rendition twice dedupes, a second rendition adds an edge")
}

func TestEdgeUniquenessWithoutProps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	edge := Edge{
		Label: EdgeHasAya,
		From:  Ref{Label: VertexSurah, Key: "1"},
		To:    Ref{Label: VertexAya, Key: "1:1"},
	}
	require.NoError(t, store.UpsertEdge(ctx, edge, nil))
	require.NoError(t, store.UpsertEdge(ctx, edge, nil))

	counts, err := store.CountEdgesByTarget(ctx, EdgeHasAya)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["1:1"])
}

// seedSurahGraph builds one surah with two verses, each carrying an
// arabic-simple and an english-test rendition.
func seedSurahGraph(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.UpsertVertex(ctx, Vertex{
		Label: VertexSurah, Key: "1",
		Props: map[string]any{"surah_number": 1},
	}))

	texts := map[int]map[string]string{
		1: {"arabic": "نص الآية الأولى", "english": "first verse"},
		2: {"arabic": "نص الآية الثانية", "english": "second verse"},
	}
	for aya := 1; aya <= 2; aya++ {
		ayaRef := Ref{Label: VertexAya, Key: "1:" + strconv.Itoa(aya)}
		require.NoError(t, store.UpsertVertex(ctx, Vertex{
			Label: ayaRef.Label, Key: ayaRef.Key,
			Props: map[string]any{"surah_key": "1", "aya_number": aya},
		}))
		require.NoError(t, store.UpsertEdge(ctx, Edge{
			Label: EdgeHasAya,
			From:  Ref{Label: VertexSurah, Key: "1"},
			To:    ayaRef,
		}, nil))

		for language, content := range texts[aya] {
			text, err := store.InternText(ctx, content)
			require.NoError(t, err)
			require.NoError(t, store.UpsertEdge(ctx, Edge{
				Label: EdgeAyaText,
				From:  ayaRef,
				To:    text.Ref(),
				Props: map[string]any{"language": language, "text_type": "test"},
			}, []string{"language", "text_type"}))
		}
	}
}

func TestTraverseTwoHops(t *testing.T) {
	store := newTestStore(t)
	seedSurahGraph(t, store)

	paths, err := store.Traverse(context.Background(), TraversalQuery{
		Start: VertexFilter{Label: VertexSurah, Key: "1"},
		Hops: []Hop{
			{Edge: EdgeHasAya, Dir: Out, Target: VertexAya},
			{
				Edge: EdgeAyaText, Dir: Out, Target: VertexText,
				EdgeFilters: []FilterGroup{{
					Eq("language", "arabic"),
					Eq("text_type", "test"),
				}},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, paths, 2, "one path per verse for the filtered rendition")

	for _, p := range paths {
		assert.Equal(t, "1", p.Start.Key)
		require.Len(t, p.Steps, 2)
		assert.Equal(t, "arabic", p.Steps[1].Edge.Props["language"])
		assert.NotEmpty(t, p.End().Props["text"])
	}
}

func TestTraverseTargetFilters(t *testing.T) {
	store := newTestStore(t)
	seedSurahGraph(t, store)

	paths, err := store.Traverse(context.Background(), TraversalQuery{
		Start: VertexFilter{Label: VertexSurah, Key: "1"},
		Hops: []Hop{
			{
				Edge: EdgeHasAya, Dir: Out, Target: VertexAya,
				TargetFilters: []PropFilter{
					{Prop: "aya_number", Op: OpGe, Value: 2},
					{Prop: "aya_number", Op: OpLe, Value: 2},
				},
			},
			{
				Edge: EdgeAyaText, Dir: Out, Target: VertexText,
				EdgeFilters: []FilterGroup{{Eq("language", "english"), Eq("text_type", "test")}},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "1:2", paths[0].Steps[0].Vertex.Key)
	assert.Equal(t, "second verse", paths[0].End().Props["text"])
}

func TestTraverseFilterGroupsAreOred(t *testing.T) {
	store := newTestStore(t)
	seedSurahGraph(t, store)

	paths, err := store.Traverse(context.Background(), TraversalQuery{
		Start: VertexFilter{Label: VertexAya, Key: "1:1"},
		Hops: []Hop{
			{
				Edge: EdgeAyaText, Dir: Out, Target: VertexText,
				EdgeFilters: []FilterGroup{
					{Eq("language", "arabic"), Eq("text_type", "test")},
					{Eq("language", "english"), Eq("text_type", "test")},
				},
			},
		},
	})
	require.NoError(t, err)
	assert.Len(t, paths, 2, "both renditions of the verse must match")
}

func TestTraverseContainsAndLimit(t *testing.T) {
	store := newTestStore(t)
	seedSurahGraph(t, store)
	ctx := context.Background()

	paths, err := store.Traverse(ctx, TraversalQuery{
		Start: VertexFilter{Label: VertexAya},
		Hops: []Hop{
			{
				Edge: EdgeAyaText, Dir: Out, Target: VertexText,
				EdgeFilters:   []FilterGroup{{Eq("language", "english"), Eq("text_type", "test")}},
				TargetFilters: []PropFilter{{Prop: "text", Op: OpContains, Value: "verse"}},
			},
		},
	})
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	limited, err := store.Traverse(ctx, TraversalQuery{
		Start: VertexFilter{Label: VertexAya},
		Hops: []Hop{
			{
				Edge: EdgeAyaText, Dir: Out, Target: VertexText,
				EdgeFilters:   []FilterGroup{{Eq("language", "english"), Eq("text_type", "test")}},
				TargetFilters: []PropFilter{{Prop: "text", Op: OpContains, Value: "verse"}},
			},
		},
		Limit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTraverseInDirection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	wordKey := TextToDigest("الله")
	require.NoError(t, store.UpsertVertex(ctx, Vertex{
		Label: VertexWord, Key: wordKey,
		Props: map[string]any{"word": "الله", "count": 2},
	}))
	for _, ayaKey := range []string{"1:1", "2:7"} {
		require.NoError(t, store.UpsertVertex(ctx, Vertex{
			Label: VertexAya, Key: ayaKey, Props: map[string]any{"aya_number": 1},
		}))
		require.NoError(t, store.UpsertEdge(ctx, Edge{
			Label: EdgeHasWord,
			From:  Ref{Label: VertexAya, Key: ayaKey},
			To:    Ref{Label: VertexWord, Key: wordKey},
		}, nil))
	}

	paths, err := store.Traverse(ctx, TraversalQuery{
		Start: VertexFilter{Label: VertexWord, Key: wordKey},
		Hops:  []Hop{{Edge: EdgeHasWord, Dir: In, Target: VertexAya}},
	})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	keys := []string{paths[0].End().Key, paths[1].End().Key}
	assert.ElementsMatch(t, []string{"1:1", "2:7"}, keys)
}

func TestVerticesWherePrefixOrderLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	words := map[string]int{"الله": 3, "الحمد": 1, "بسم": 1, "الرحمن": 2}
	for word, count := range words {
		require.NoError(t, store.UpsertVertex(ctx, Vertex{
			Label: VertexWord, Key: TextToDigest(word),
			Props: map[string]any{"word": word, "count": count},
		}))
	}

	got, err := store.VerticesWhere(ctx, VertexWord,
		[]PropFilter{{Prop: "word", Op: OpPrefix, Value: "ال"}},
		[]OrderBy{{Prop: "count", Desc: true}, {Prop: "word"}}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "الله", got[0].Props["word"])
	assert.Equal(t, "الرحمن", got[1].Props["word"])
}

func TestGroupVerticesByProp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for word, count := range map[string]int{"a": 2, "b": 1, "c": 1} {
		require.NoError(t, store.UpsertVertex(ctx, Vertex{
			Label: VertexWord, Key: TextToDigest(word),
			Props: map[string]any{"word": word, "count": count},
		}))
	}

	buckets, err := store.GroupVerticesByProp(ctx, VertexWord, "count")
	require.NoError(t, err)
	assert.Equal(t, []PropCount{{Value: 2, N: 1}, {Value: 1, N: 2}}, buckets)
}

func TestDistinctEdgeProps(t *testing.T) {
	store := newTestStore(t)
	seedSurahGraph(t, store)

	combos, err := store.DistinctEdgeProps(context.Background(), EdgeAyaText,
		[]string{"language", "text_type"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []map[string]string{
		{"language": "arabic", "text_type": "test"},
		{"language": "english", "text_type": "test"},
	}, combos)
}

func TestDeleteEdgesFromFiltered(t *testing.T) {
	store := newTestStore(t)
	seedSurahGraph(t, store)
	ctx := context.Background()

	err := store.DeleteEdgesFrom(ctx, EdgeAyaText,
		Ref{Label: VertexAya, Key: "1:1"},
		[]PropFilter{Eq("language", "arabic"), Eq("text_type", "test")})
	require.NoError(t, err)

	paths, err := store.Traverse(ctx, TraversalQuery{
		Start: VertexFilter{Label: VertexAya, Key: "1:1"},
		Hops:  []Hop{{Edge: EdgeAyaText, Dir: Out, Target: VertexText}},
	})
	require.NoError(t, err)
	require.Len(t, paths, 1, "only the filtered rendition's edge is removed")
	assert.Equal(t, "english", paths[0].Steps[0].Edge.Props["language"])
}

func TestDeleteVerticesAndEdges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertVertex(ctx, Vertex{
		Label: VertexWord, Key: "w", Props: map[string]any{"word": "x", "count": 1},
	}))
	require.NoError(t, store.UpsertEdge(ctx, Edge{
		Label: EdgeHasWord,
		From:  Ref{Label: VertexAya, Key: "1:1"},
		To:    Ref{Label: VertexWord, Key: "w"},
	}, nil))

	require.NoError(t, store.DeleteEdges(ctx, EdgeHasWord))
	require.NoError(t, store.DeleteVertices(ctx, VertexWord))

	words, err := store.VerticesWhere(ctx, VertexWord, nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, words)

	counts, err := store.CountEdgesByTarget(ctx, EdgeHasWord)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestBulkUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var vs []Vertex
	for i := 0; i < 100; i++ {
		vs = append(vs, Vertex{
			Label: VertexWord, Key: "k" + strconv.Itoa(i),
			Props: map[string]any{"word": "w" + strconv.Itoa(i), "count": 1},
		})
	}
	require.NoError(t, store.BulkUpsertVertices(ctx, vs))
	// Second bulk write with the same keys converges instead of duplicating.
	require.NoError(t, store.BulkUpsertVertices(ctx, vs))

	got, err := store.VerticesWhere(ctx, VertexWord, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, got, 100)

	var es []Edge
	for i := 0; i < 100; i++ {
		es = append(es, Edge{
			Label: EdgeHasWord,
			From:  Ref{Label: VertexAya, Key: "1:1"},
			To:    Ref{Label: VertexWord, Key: "k" + strconv.Itoa(i)},
		})
	}
	require.NoError(t, store.BulkUpsertEdges(ctx, es, nil))
	require.NoError(t, store.BulkUpsertEdges(ctx, es, nil))

	counts, err := store.CountEdgesByTarget(ctx, EdgeHasWord)
	require.NoError(t, err)
	assert.Len(t, counts, 100)
}

func TestMeta(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.GetMeta(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetMeta(ctx, "k", "v1"))
	require.NoError(t, store.SetMeta(ctx, "k", "v2"))

	value, found, err := store.GetMeta(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", value)
}
