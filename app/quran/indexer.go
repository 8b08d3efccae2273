package quran

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kashifpk/quranref/app/graph"
)

// MakeWords rebuilds the word index from scratch: it deletes every Word
// vertex and HAS_WORD edge, retokenizes the canonical rendition of every
// verse (aya 0 excluded) by splitting on single spaces, and recreates
// the index in bulk. A word's count is the number of distinct verses
// containing it; a word repeated within one verse counts once.
//
// The rebuild has an observable window where words are deleted but not
// yet repopulated. Run it as a single-writer administrative job, never
// concurrently with itself or with live word queries.
func (s *Service) MakeWords(ctx context.Context) error {
	slog.Info("clearing existing word data for clean rebuild")
	if err := s.store.DeleteEdges(ctx, graph.EdgeHasWord); err != nil {
		return fmt.Errorf("failed to delete %s edges: %w", graph.EdgeHasWord, err)
	}
	if err := s.store.DeleteVertices(ctx, graph.VertexWord); err != nil {
		return fmt.Errorf("failed to delete word vertices: %w", err)
	}

	slog.Info("extracting words from ayas",
		"language", s.conf.CanonicalLanguage, "text_type", s.conf.CanonicalTextType)

	// One traversal fetches the canonical text of every verse. Verses
	// missing the canonical rendition simply do not appear and
	// contribute no words.
	paths, err := s.store.Traverse(ctx, graph.TraversalQuery{
		Start: graph.VertexFilter{Label: graph.VertexAya},
		Hops: []graph.Hop{
			{
				Edge:   graph.EdgeAyaText,
				Dir:    graph.Out,
				Target: graph.VertexText,
				EdgeFilters: []graph.FilterGroup{{
					graph.Eq("language", s.conf.CanonicalLanguage),
					graph.Eq("text_type", s.conf.CanonicalTextType),
				}},
			},
		},
	})
	if err != nil {
		return err
	}

	wordCounts := make(map[string]int)
	type wordEdge struct{ ayaKey, wordKey string }
	edgeSet := make(map[wordEdge]struct{})

	for _, p := range paths {
		if intProp(p.Start.Props, "aya_number") == 0 {
			continue
		}
		ayaKey := p.Start.Key
		text := stringPropOf(p.End().Props, "text")

		seenInAya := make(map[string]struct{})
		for _, word := range strings.Split(text, " ") {
			if _, dup := seenInAya[word]; dup {
				continue
			}
			seenInAya[word] = struct{}{}
			wordCounts[word]++
			edgeSet[wordEdge{ayaKey: ayaKey, wordKey: graph.TextToDigest(word)}] = struct{}{}
		}
	}

	slog.Info("creating word vertices", "words", len(wordCounts))
	words := make([]graph.Vertex, 0, len(wordCounts))
	for word, count := range wordCounts {
		words = append(words, graph.Vertex{
			Label: graph.VertexWord,
			Key:   graph.TextToDigest(word),
			Props: map[string]any{"word": word, "count": count},
		})
	}
	if err := s.store.BulkUpsertVertices(ctx, words); err != nil {
		return err
	}

	slog.Info("creating word edges", "edges", len(edgeSet))
	edges := make([]graph.Edge, 0, len(edgeSet))
	for e := range edgeSet {
		edges = append(edges, graph.Edge{
			Label: graph.EdgeHasWord,
			From:  graph.Ref{Label: graph.VertexAya, Key: e.ayaKey},
			To:    graph.Ref{Label: graph.VertexWord, Key: e.wordKey},
		})
	}
	if err := s.store.BulkUpsertEdges(ctx, edges, nil); err != nil {
		return err
	}

	slog.Info("word index rebuilt")
	return nil
}

// FixWordCounts recomputes every word's count from live HAS_WORD edge
// cardinality and overwrites stored counts that drifted. Returns the
// number of repaired words.
func (s *Service) FixWordCounts(ctx context.Context) (int, error) {
	edgeCounts, err := s.store.CountEdgesByTarget(ctx, graph.EdgeHasWord)
	if err != nil {
		return 0, err
	}

	words, err := s.store.VerticesWhere(ctx, graph.VertexWord, nil, nil, 0)
	if err != nil {
		return 0, err
	}

	var repaired []graph.Vertex
	for _, w := range words {
		stored := intProp(w.Props, "count")
		actual := edgeCounts[w.Key]
		if stored == actual {
			continue
		}
		slog.Warn("inconsistent word count",
			"word", stringPropOf(w.Props, "word"), "stored", stored, "actual", actual)
		w.Props["count"] = actual
		repaired = append(repaired, w)
	}

	if len(repaired) > 0 {
		if err := s.store.BulkUpsertVertices(ctx, repaired); err != nil {
			return 0, err
		}
	}
	slog.Info("word counts checked", "total", len(words), "fixed", len(repaired))
	return len(repaired), nil
}
