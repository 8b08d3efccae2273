package quran

import (
	"strconv"
	"strings"

	"github.com/kashifpk/quranref/app/common"
)

// RangeKind says how a range spec narrows the verses of a surah.
type RangeKind int

const (
	RangeAll RangeKind = iota
	RangeExact
	RangeSpan
)

// RangeFilter is the parsed form of a range spec like "2", "2:255" or
// "2:1-5". A range never crosses surah boundaries.
type RangeFilter struct {
	Surah string
	Kind  RangeKind
	Start int
	End   int
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseRangeSpec parses "surah", "surah:aya" or "surah:start-end".
// Anything that would span more than one surah is a ParseError.
func ParseRangeSpec(spec string) (RangeFilter, error) {
	surah, rest, hasColon := strings.Cut(spec, ":")
	if !isAllDigits(surah) {
		return RangeFilter{}, common.NewParseError(spec, "surah number must be a positive integer")
	}
	if !hasColon {
		return RangeFilter{Surah: surah, Kind: RangeAll}, nil
	}

	if start, end, isSpan := strings.Cut(rest, "-"); isSpan {
		if !isAllDigits(start) || !isAllDigits(end) {
			return RangeFilter{}, common.NewParseError(spec, "aya range must be two integers")
		}
		s, _ := strconv.Atoi(start)
		e, _ := strconv.Atoi(end)
		if s > e {
			return RangeFilter{}, common.NewParseError(spec, "aya range start is after its end")
		}
		return RangeFilter{Surah: surah, Kind: RangeSpan, Start: s, End: e}, nil
	}

	if !isAllDigits(rest) {
		return RangeFilter{}, common.NewParseError(spec, "aya number must be a positive integer")
	}
	n, _ := strconv.Atoi(rest)
	return RangeFilter{Surah: surah, Kind: RangeExact, Start: n, End: n}, nil
}

// LanguagePair names one rendition: a language plus its text type
// (a particular Arabic orthography or a translator).
type LanguagePair struct {
	Language string
	TextType string
}

// ParseLanguageSpec parses "lang1:type1_lang2:type2_..." into a deduped
// list of pairs. An item without a colon, or with an empty side, is a
// ParseError rather than being dropped.
func ParseLanguageSpec(spec string) ([]LanguagePair, error) {
	var pairs []LanguagePair
	seen := make(map[LanguagePair]struct{})

	for _, item := range strings.Split(spec, "_") {
		lang, textType, found := strings.Cut(item, ":")
		if !found || lang == "" || textType == "" {
			return nil, common.NewParseError(spec,
				"language items must look like language:text_type joined by '_'")
		}
		p := LanguagePair{Language: lang, TextType: textType}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}
	return pairs, nil
}
