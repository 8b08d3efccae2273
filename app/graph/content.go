package graph

import (
	"context"
)

// InternText stores a text blob under its content digest and returns the
// resulting vertex. Interning the same text twice yields the same vertex;
// racing interns of identical text converge through the vertex upsert.
func (s *Store) InternText(ctx context.Context, text string) (Vertex, error) {
	v := Vertex{
		Label: VertexText,
		Key:   TextToDigest(text),
		Props: map[string]any{"text": text},
	}
	if err := s.UpsertVertex(ctx, v); err != nil {
		return Vertex{}, err
	}
	return v, nil
}
