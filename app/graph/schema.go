package graph

import (
	"context"
	"fmt"
)

// Vertex and edge labels of the fixed Quran graph schema. The store is
// not a general purpose graph database; it supports exactly this schema.
const (
	VertexSurah = "Surah"
	VertexAya   = "Aya"
	VertexText  = "Text"
	VertexWord  = "Word"

	EdgeHasAya  = "HAS_AYA"
	EdgeHasWord = "HAS_WORD"
	EdgeAyaText = "AYA_TEXT"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS vertices (
	label TEXT NOT NULL,
	key TEXT NOT NULL,
	props TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (label, key)
);

CREATE TABLE IF NOT EXISTS edges (
	label TEXT NOT NULL,
	from_label TEXT NOT NULL,
	from_key TEXT NOT NULL,
	to_label TEXT NOT NULL,
	to_key TEXT NOT NULL,
	uniq TEXT NOT NULL,
	props TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (label, uniq)
);

CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(label, from_key);
CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(label, to_key);

CREATE INDEX IF NOT EXISTS idx_word_word
	ON vertices(json_extract(props, '$.word')) WHERE label = 'Word';
CREATE INDEX IF NOT EXISTS idx_word_count
	ON vertices(json_extract(props, '$.count')) WHERE label = 'Word';
CREATE INDEX IF NOT EXISTS idx_aya_surah
	ON vertices(json_extract(props, '$.surah_key')) WHERE label = 'Aya';

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Init creates tables and indexes if they do not exist yet.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create graph schema: %w", err)
	}
	return nil
}
