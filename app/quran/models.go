package quran

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kashifpk/quranref/app/graph"
)

// Surah holds the fixed descriptive attributes of one surah. The graph
// vertex key is the surah number as a string.
type Surah struct {
	SurahNumber    int    `json:"surah_number"`
	ArabicName     string `json:"arabic_name"`
	EnglishName    string `json:"english_name"`
	TranslatedName string `json:"translated_name"`
	NuzoolLocation string `json:"nuzool_location"` // "Meccan" or "Medinan"
	NuzoolOrder    int    `json:"nuzool_order"`
	Rukus          int    `json:"rukus"`
	TotalAyas      int    `json:"total_ayas"`
}

func (s Surah) Key() string {
	return strconv.Itoa(s.SurahNumber)
}

// VerseResult is one verse with all requested renditions merged:
// language -> text type -> text.
type VerseResult struct {
	AyaKey string                       `json:"aya_key"`
	Texts  map[string]map[string]string `json:"texts"`
}

// TextTuple is one raw traversal row before assembly.
type TextTuple struct {
	AyaKey   string
	Language string
	TextType string
	Text     string
}

// WordCount is one word with its distinct-verse count.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// WordCountBucket reports how many words exist at one count value.
type WordCountBucket struct {
	Count     int `json:"count"`
	WordCount int `json:"word_count"`
}

// AyaKey builds the composite verse key, e.g. "2:255".
func AyaKey(surahNumber, ayaNumber int) string {
	return fmt.Sprintf("%d:%d", surahNumber, ayaNumber)
}

func ayaNumberFromKey(key string) int {
	_, num, found := strings.Cut(key, ":")
	if !found {
		return 0
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0
	}
	return n
}

// propsToStruct converts a vertex props map into a typed struct through
// a JSON round trip, matching on the struct's JSON tags.
func propsToStruct(props map[string]any, out any) error {
	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to marshal props: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to unmarshal props: %w", err)
	}
	return nil
}

func structToProps(in any) (map[string]any, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal struct: %w", err)
	}
	props := map[string]any{}
	if err := json.Unmarshal(b, &props); err != nil {
		return nil, fmt.Errorf("failed to unmarshal struct: %w", err)
	}
	return props, nil
}

func surahFromVertex(v graph.Vertex) (Surah, error) {
	var s Surah
	err := propsToStruct(v.Props, &s)
	return s, err
}

func stringProp(v graph.Vertex, prop string) string {
	s, _ := v.Props[prop].(string)
	return s
}

func intProp(props map[string]any, prop string) int {
	switch n := props[prop].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func wordFromVertex(v graph.Vertex) WordCount {
	return WordCount{
		Word:  stringProp(v, "word"),
		Count: intProp(v.Props, "count"),
	}
}
