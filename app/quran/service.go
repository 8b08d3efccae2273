package quran

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kashifpk/quranref/app/common"
	"github.com/kashifpk/quranref/app/config"
	"github.com/kashifpk/quranref/app/graph"
)

// Service exposes every read and administrative operation over the
// Quran graph. It holds no mutable state beyond the store handle and a
// small TTL cache, so calls may run with arbitrary concurrency.
type Service struct {
	store *graph.Store
	conf  *config.QuranConfig
	memo  *cache.Cache
}

func NewService(store *graph.Store, conf *config.QuranConfig) *Service {
	return &Service{
		store: store,
		conf:  conf,
		memo:  cache.New(2*time.Minute, 5*time.Minute),
	}
}

// Store exposes the underlying graph for administrative commands.
func (s *Service) Store() *graph.Store { return s.store }

// arabicLetters is the alphabet offered for words-by-letter browsing.
var arabicLetters = []string{
	"آ", "أ", "إ", "ا", "ب", "ت", "ث", "ج", "ح", "خ", "د", "ذ", "ر", "ز",
	"س", "ش", "ص", "ض", "ط", "ظ", "ع", "غ", "ف", "ق", "ك", "ل", "م", "ن",
	"و", "ه", "ي",
}

func (s *Service) Letters() []string {
	return arabicLetters
}

// Surahs returns all surahs ordered by surah number.
func (s *Service) Surahs(ctx context.Context) ([]Surah, error) {
	vertices, err := s.store.VerticesWhere(ctx, graph.VertexSurah, nil,
		[]graph.OrderBy{{Prop: "surah_number"}}, 0)
	if err != nil {
		return nil, err
	}
	surahs := make([]Surah, 0, len(vertices))
	for _, v := range vertices {
		surah, err := surahFromVertex(v)
		if err != nil {
			return nil, err
		}
		surahs = append(surahs, surah)
	}
	return surahs, nil
}

const textTypesMetaKey = "text-types"

// TextTypes returns the registry of available language -> text type
// combinations, recomputed by UpdateTextTypes after each import batch.
func (s *Service) TextTypes(ctx context.Context) (map[string][]string, error) {
	if cached, found := s.memo.Get(textTypesMetaKey); found {
		return cached.(map[string][]string), nil
	}

	raw, found, err := s.store.GetMeta(ctx, textTypesMetaKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.NewNotFoundError("meta record", textTypesMetaKey)
	}

	textTypes := map[string][]string{}
	if err := json.Unmarshal([]byte(raw), &textTypes); err != nil {
		return nil, fmt.Errorf("corrupt %s record: %w", textTypesMetaKey, err)
	}
	s.memo.Set(textTypesMetaKey, textTypes, cache.DefaultExpiration)
	return textTypes, nil
}

// UpdateTextTypes recomputes the text-types registry from the distinct
// AYA_TEXT edge attributes.
func (s *Service) UpdateTextTypes(ctx context.Context) (map[string][]string, error) {
	combos, err := s.store.DistinctEdgeProps(ctx, graph.EdgeAyaText,
		[]string{"language", "text_type"})
	if err != nil {
		return nil, err
	}

	textTypes := map[string][]string{}
	for _, combo := range combos {
		lang := combo["language"]
		textTypes[lang] = append(textTypes[lang], combo["text_type"])
	}
	for lang := range textTypes {
		sort.Strings(textTypes[lang])
	}

	encoded, err := json.Marshal(textTypes)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetMeta(ctx, textTypesMetaKey, string(encoded)); err != nil {
		return nil, err
	}
	s.memo.Delete(textTypesMetaKey)
	return textTypes, nil
}

// WordsByLetter returns all words starting with the given letter,
// sorted by word.
func (s *Service) WordsByLetter(ctx context.Context, letter string) ([]WordCount, error) {
	vertices, err := s.store.VerticesWhere(ctx, graph.VertexWord,
		[]graph.PropFilter{{Prop: "word", Op: graph.OpPrefix, Value: letter}},
		[]graph.OrderBy{{Prop: "word"}}, 0)
	if err != nil {
		return nil, err
	}
	return wordsFromVertices(vertices), nil
}

// WordsByCount returns all words occurring in exactly n distinct verses,
// sorted by word.
func (s *Service) WordsByCount(ctx context.Context, n int) ([]WordCount, error) {
	vertices, err := s.store.VerticesWhere(ctx, graph.VertexWord,
		[]graph.PropFilter{graph.Eq("count", n)},
		[]graph.OrderBy{{Prop: "word"}}, 0)
	if err != nil {
		return nil, err
	}
	return wordsFromVertices(vertices), nil
}

// AvailableWordCounts returns the distinct count values with the number
// of words at each, highest count first.
func (s *Service) AvailableWordCounts(ctx context.Context) ([]WordCountBucket, error) {
	buckets, err := s.store.GroupVerticesByProp(ctx, graph.VertexWord, "count")
	if err != nil {
		return nil, err
	}
	out := make([]WordCountBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, WordCountBucket{Count: b.Value, WordCount: b.N})
	}
	return out, nil
}

// TopOrder selects whether TopWords returns the most or least frequent
// words.
type TopOrder string

const (
	TopMost  TopOrder = "most"
	TopLeast TopOrder = "least"
)

// TopWords returns up to limit words ordered by count (per order), with
// the word itself as tie-break.
func (s *Service) TopWords(ctx context.Context, limit int, order TopOrder) ([]WordCount, error) {
	vertices, err := s.store.VerticesWhere(ctx, graph.VertexWord, nil,
		[]graph.OrderBy{
			{Prop: "count", Desc: order != TopLeast},
			{Prop: "word"},
		}, limit)
	if err != nil {
		return nil, err
	}
	return wordsFromVertices(vertices), nil
}

func wordsFromVertices(vertices []graph.Vertex) []WordCount {
	words := make([]WordCount, 0, len(vertices))
	for _, v := range vertices {
		words = append(words, wordFromVertex(v))
	}
	return words
}

// languageFilterGroups compiles parsed language pairs into the OR of
// AND-groups applied to AYA_TEXT edges. Everything ends up as a bound
// parameter in the store.
func languageFilterGroups(pairs []LanguagePair) []graph.FilterGroup {
	groups := make([]graph.FilterGroup, 0, len(pairs))
	for _, p := range pairs {
		groups = append(groups, graph.FilterGroup{
			graph.Eq("language", p.Language),
			graph.Eq("text_type", p.TextType),
		})
	}
	return groups
}

// AyasByWord returns every verse containing the word, with texts for the
// requested language pairs, ordered by verse key.
func (s *Service) AyasByWord(ctx context.Context, word, languagesSpec string) ([]VerseResult, error) {
	pairs, err := ParseLanguageSpec(languagesSpec)
	if err != nil {
		return nil, err
	}

	wordVertex, found, err := s.store.FindVertex(ctx, graph.VertexWord, "word", word)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.NewNotFoundError("word", word)
	}

	paths, err := s.store.Traverse(ctx, graph.TraversalQuery{
		Start: graph.VertexFilter{Label: graph.VertexWord, Key: wordVertex.Key},
		Hops: []graph.Hop{
			{Edge: graph.EdgeHasWord, Dir: graph.In, Target: graph.VertexAya},
			{
				Edge:        graph.EdgeAyaText,
				Dir:         graph.Out,
				Target:      graph.VertexText,
				EdgeFilters: languageFilterGroups(pairs),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return AssembleVerseResults(tuplesFromTextPaths(paths, 1), OrderByAyaKey), nil
}

// Text returns the verses selected by the range spec with texts for the
// requested language pairs, ordered by aya number.
func (s *Service) Text(ctx context.Context, rangeSpec, languagesSpec string) ([]VerseResult, error) {
	rf, err := ParseRangeSpec(rangeSpec)
	if err != nil {
		return nil, err
	}
	pairs, err := ParseLanguageSpec(languagesSpec)
	if err != nil {
		return nil, err
	}

	_, found, err := s.store.GetVertex(ctx, graph.Ref{Label: graph.VertexSurah, Key: rf.Surah})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.NewNotFoundError("surah", rf.Surah)
	}

	var ayaFilters []graph.PropFilter
	switch rf.Kind {
	case RangeExact:
		ayaFilters = []graph.PropFilter{graph.Eq("aya_number", rf.Start)}
	case RangeSpan:
		ayaFilters = []graph.PropFilter{
			{Prop: "aya_number", Op: graph.OpGe, Value: rf.Start},
			{Prop: "aya_number", Op: graph.OpLe, Value: rf.End},
		}
	}

	paths, err := s.store.Traverse(ctx, graph.TraversalQuery{
		Start: graph.VertexFilter{Label: graph.VertexSurah, Key: rf.Surah},
		Hops: []graph.Hop{
			{
				Edge:          graph.EdgeHasAya,
				Dir:           graph.Out,
				Target:        graph.VertexAya,
				TargetFilters: ayaFilters,
			},
			{
				Edge:        graph.EdgeAyaText,
				Dir:         graph.Out,
				Target:      graph.VertexText,
				EdgeFilters: languageFilterGroups(pairs),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return AssembleVerseResults(tuplesFromTextPaths(paths, 1), OrderByAyaNumber), nil
}

// tuplesFromTextPaths extracts raw tuples from traversals whose step at
// ayaStep lands on the Aya and whose final step follows AYA_TEXT.
func tuplesFromTextPaths(paths []graph.Path, ayaStep int) []TextTuple {
	tuples := make([]TextTuple, 0, len(paths))
	for _, p := range paths {
		if len(p.Steps) <= ayaStep {
			continue
		}
		var ayaKey string
		if ayaStep == 0 {
			ayaKey = p.Start.Key
		} else {
			ayaKey = p.Steps[ayaStep-1].Vertex.Key
		}
		last := p.Steps[len(p.Steps)-1]
		tuples = append(tuples, TextTuple{
			AyaKey:   ayaKey,
			Language: stringPropOf(last.Edge.Props, "language"),
			TextType: stringPropOf(last.Edge.Props, "text_type"),
			Text:     stringPropOf(last.Vertex.Props, "text"),
		})
	}
	return tuples
}

func stringPropOf(props map[string]any, prop string) string {
	s, _ := props[prop].(string)
	return s
}
