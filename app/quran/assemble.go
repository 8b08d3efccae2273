package quran

import (
	"sort"
)

// ResultOrder selects the ordering contract for assembled results:
// by aya number when every verse belongs to one surah (range queries),
// by aya key for cross-surah results (word lookups, search).
type ResultOrder int

const (
	OrderByAyaNumber ResultOrder = iota
	OrderByAyaKey
)

// AssembleVerseResults groups raw traversal tuples into one VerseResult
// per distinct verse, merging every (language, text type, text) entry
// regardless of which traversal produced it. Pure post-processing: the
// input order does not matter.
func AssembleVerseResults(tuples []TextTuple, order ResultOrder) []VerseResult {
	byKey := make(map[string]*VerseResult)
	var keys []string

	for _, t := range tuples {
		vr, ok := byKey[t.AyaKey]
		if !ok {
			vr = &VerseResult{AyaKey: t.AyaKey, Texts: map[string]map[string]string{}}
			byKey[t.AyaKey] = vr
			keys = append(keys, t.AyaKey)
		}
		if _, ok := vr.Texts[t.Language]; !ok {
			vr.Texts[t.Language] = map[string]string{}
		}
		vr.Texts[t.Language][t.TextType] = t.Text
	}

	switch order {
	case OrderByAyaNumber:
		sort.Slice(keys, func(i, j int) bool {
			return ayaNumberFromKey(keys[i]) < ayaNumberFromKey(keys[j])
		})
	default:
		sort.Strings(keys)
	}

	results := make([]VerseResult, 0, len(keys))
	for _, k := range keys {
		results = append(results, *byKey[k])
	}
	return results
}
