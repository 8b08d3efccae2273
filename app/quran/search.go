package quran

import (
	"context"

	"github.com/kashifpk/quranref/app/common"
	"github.com/kashifpk/quranref/app/graph"
)

// Search finds verses whose text in the search rendition contains term
// as a literal, case-sensitive substring, then expands each matched
// verse with the requested translation renditions. The scan is capped at
// the configured limit; past it the result is partial, not an error.
func (s *Service) Search(ctx context.Context, term, searchSpec, translationsSpec string) ([]VerseResult, error) {
	if term == "" {
		return []VerseResult{}, nil
	}

	searchPairs, err := ParseLanguageSpec(searchSpec)
	if err != nil {
		return nil, err
	}
	if len(searchPairs) != 1 {
		return nil, common.NewParseError(searchSpec,
			"search spec must name exactly one language:text_type")
	}

	var translationPairs []LanguagePair
	if translationsSpec != "" {
		translationPairs, err = ParseLanguageSpec(translationsSpec)
		if err != nil {
			return nil, err
		}
	}

	matched, err := s.store.Traverse(ctx, graph.TraversalQuery{
		Start: graph.VertexFilter{Label: graph.VertexAya},
		Hops: []graph.Hop{
			{
				Edge:        graph.EdgeAyaText,
				Dir:         graph.Out,
				Target:      graph.VertexText,
				EdgeFilters: languageFilterGroups(searchPairs),
				TargetFilters: []graph.PropFilter{
					{Prop: "text", Op: graph.OpContains, Value: term},
				},
			},
		},
		Limit: s.conf.SearchScanLimit,
	})
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return []VerseResult{}, nil
	}

	tuples := tuplesFromTextPaths(matched, 0)

	if len(translationPairs) > 0 {
		seen := make(map[string]struct{}, len(tuples))
		for _, t := range tuples {
			if _, dup := seen[t.AyaKey]; dup {
				continue
			}
			seen[t.AyaKey] = struct{}{}

			translations, err := s.store.Traverse(ctx, graph.TraversalQuery{
				Start: graph.VertexFilter{Label: graph.VertexAya, Key: t.AyaKey},
				Hops: []graph.Hop{
					{
						Edge:        graph.EdgeAyaText,
						Dir:         graph.Out,
						Target:      graph.VertexText,
						EdgeFilters: languageFilterGroups(translationPairs),
					},
				},
			})
			if err != nil {
				return nil, err
			}
			tuples = append(tuples, tuplesFromTextPaths(translations, 0)...)
		}
	}

	return AssembleVerseResults(tuples, OrderByAyaKey), nil
}
