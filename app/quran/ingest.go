package quran

import (
	"bufio"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/kashifpk/quranref/app/graph"
)

// PopulateSurahs bulk-loads the surah descriptive records. Run once
// before any text import.
func (s *Service) PopulateSurahs(ctx context.Context, surahs []Surah) error {
	vertices := make([]graph.Vertex, 0, len(surahs))
	for _, surah := range surahs {
		props, err := structToProps(surah)
		if err != nil {
			return err
		}
		vertices = append(vertices, graph.Vertex{
			Label: graph.VertexSurah,
			Key:   surah.Key(),
			Props: props,
		})
	}
	return s.store.BulkUpsertVertices(ctx, vertices)
}

// ImportText ingests one rendition from a tanzil.net style stream of
// "surah|aya|text" lines ordered by surah then aya. The first blank
// line ends the stream (translations carry a copyright trailer after
// it). Reimporting the same stream is a no-op for storage.
//
// The first verse of the stream establishes the bismillah text. For
// each later surah whose first verse starts with it and has a non-empty
// remainder, the bismillah is stored as aya 0 and the remainder becomes
// aya 1.
func (s *Service) ImportText(ctx context.Context, r io.Reader, language, textType string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	bismillah := ""
	currentSurah := ""

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}

		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			return fmt.Errorf("malformed import line %q", line)
		}
		surah, aya := parts[0], parts[1]
		content := strings.TrimSpace(parts[2])

		surahNumber, err := strconv.Atoi(surah)
		if err != nil {
			return fmt.Errorf("malformed surah number in line %q", line)
		}
		ayaNumber, err := strconv.Atoi(aya)
		if err != nil {
			return fmt.Errorf("malformed aya number in line %q", line)
		}

		if bismillah == "" {
			bismillah = content
		}

		if currentSurah != surah {
			currentSurah = surah
			if strings.HasPrefix(content, bismillah) {
				remainder := strings.TrimSpace(content[len(bismillah):])
				if remainder != "" {
					if err := s.addAyaText(ctx, surahNumber, 0, bismillah, language, textType); err != nil {
						return err
					}
					content = remainder
				}
			}
		}

		if content == "" {
			continue
		}
		if err := s.addAyaText(ctx, surahNumber, ayaNumber, content, language, textType); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed reading import stream: %w", err)
	}

	slog.Info("text imported", "language", language, "text_type", textType)
	return nil
}

// ImportTextFile imports from a plain or bzip2-compressed file.
func (s *Service) ImportTextFile(ctx context.Context, fileName, language, textType string) error {
	f, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", fileName, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(fileName, ".bz2") {
		r = bzip2.NewReader(f)
	}
	return s.ImportText(ctx, r, language, textType)
}

// addAyaText upserts the aya vertex (with its HAS_AYA edge), interns the
// text blob and links them. Everything is keyed on natural keys, so
// retries and reimports converge.
func (s *Service) addAyaText(ctx context.Context, surahNumber, ayaNumber int, text, language, textType string) error {
	ayaRef := graph.Ref{Label: graph.VertexAya, Key: AyaKey(surahNumber, ayaNumber)}

	err := s.store.UpsertVertex(ctx, graph.Vertex{
		Label: ayaRef.Label,
		Key:   ayaRef.Key,
		Props: map[string]any{
			"surah_key":  strconv.Itoa(surahNumber),
			"aya_number": ayaNumber,
		},
	})
	if err != nil {
		return err
	}

	err = s.store.UpsertEdge(ctx, graph.Edge{
		Label: graph.EdgeHasAya,
		From:  graph.Ref{Label: graph.VertexSurah, Key: strconv.Itoa(surahNumber)},
		To:    ayaRef,
	}, nil)
	if err != nil {
		return err
	}

	textVertex, err := s.store.InternText(ctx, text)
	if err != nil {
		return err
	}

	return s.store.UpsertEdge(ctx, graph.Edge{
		Label: graph.EdgeAyaText,
		From:  ayaRef,
		To:    textVertex.Ref(),
		Props: map[string]any{"language": language, "text_type": textType},
	}, []string{"language", "text_type"})
}

// RemoveBismillah strips a leading bismillah from the stored first-verse
// texts of every surah except the first, per canonical-language text
// type. The first surah's verse 1 is the reference formula for each text
// type. Because blobs are content addressed and may be shared, the
// stripped remainder is interned as a new blob and the AYA_TEXT edge is
// repointed; the old blob stays untouched.
//
// The pass is idempotent: once stripped, a text no longer carries the
// prefix.
func (s *Service) RemoveBismillah(ctx context.Context) error {
	textTypes, err := s.TextTypes(ctx)
	if err != nil {
		return err
	}
	language := s.conf.CanonicalLanguage

	surahs, err := s.Surahs(ctx)
	if err != nil {
		return err
	}

	for _, textType := range textTypes[language] {
		bismillah, found, err := s.firstAyaText(ctx, 1, language, textType)
		if err != nil {
			return err
		}
		if !found {
			continue
		}

		for _, surah := range surahs {
			if surah.SurahNumber == 1 {
				continue
			}
			text, found, err := s.firstAyaText(ctx, surah.SurahNumber, language, textType)
			if err != nil {
				return err
			}
			if !found || !strings.HasPrefix(text, bismillah) {
				continue
			}
			remainder := strings.TrimSpace(text[len(bismillah):])
			if remainder == "" {
				// The verse is just the formula; nothing to split off.
				continue
			}

			slog.Info("removing bismillah", "surah", surah.SurahNumber, "text_type", textType)
			if err := s.repointAyaText(ctx, AyaKey(surah.SurahNumber, 1), remainder, language, textType); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) firstAyaText(ctx context.Context, surahNumber int, language, textType string) (string, bool, error) {
	paths, err := s.store.Traverse(ctx, graph.TraversalQuery{
		Start: graph.VertexFilter{Label: graph.VertexAya, Key: AyaKey(surahNumber, 1)},
		Hops: []graph.Hop{
			{
				Edge:   graph.EdgeAyaText,
				Dir:    graph.Out,
				Target: graph.VertexText,
				EdgeFilters: []graph.FilterGroup{{
					graph.Eq("language", language),
					graph.Eq("text_type", textType),
				}},
			},
		},
		Limit: 1,
	})
	if err != nil {
		return "", false, err
	}
	if len(paths) == 0 {
		return "", false, nil
	}
	return stringPropOf(paths[0].End().Props, "text"), true, nil
}

func (s *Service) repointAyaText(ctx context.Context, ayaKey, newText, language, textType string) error {
	ayaRef := graph.Ref{Label: graph.VertexAya, Key: ayaKey}

	err := s.store.DeleteEdgesFrom(ctx, graph.EdgeAyaText, ayaRef, []graph.PropFilter{
		graph.Eq("language", language),
		graph.Eq("text_type", textType),
	})
	if err != nil {
		return err
	}

	textVertex, err := s.store.InternText(ctx, newText)
	if err != nil {
		return err
	}
	return s.store.UpsertEdge(ctx, graph.Edge{
		Label: graph.EdgeAyaText,
		From:  ayaRef,
		To:    textVertex.Ref(),
		Props: map[string]any{"language": language, "text_type": textType},
	}, []string{"language", "text_type"})
}
