package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Store is a typed graph kept in two SQLite tables: vertices addressed
// by (label, key) and edges addressed by (label, uniq). Vertex and edge
// attributes live in a JSON props column; the fixed schema's secondary
// indexes are expression indexes over json_extract.
//
// All values coming from callers are passed as bound parameters. Query
// text only ever contains table aliases and operators generated here.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the graph database at dbPath. For ":memory:"
// databases the connection pool is pinned to a single connection so the
// pool cannot fan out into independent in-memory databases.
func Open(dbPath string) (*Store, error) {
	slog.Info("opening graph store", "dbPath", dbPath)
	db, err := sql.Open(sqliteDriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph store: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ref identifies a vertex by label and natural key.
type Ref struct {
	Label string
	Key   string
}

type Vertex struct {
	Label string
	Key   string
	Props map[string]any
}

func (v Vertex) Ref() Ref { return Ref{Label: v.Label, Key: v.Key} }

type Edge struct {
	Label string
	From  Ref
	To    Ref
	Props map[string]any
}

type Direction int

const (
	Out Direction = iota
	In
)

type Op string

const (
	OpEq       Op = "eq"
	OpGe       Op = "ge"
	OpLe       Op = "le"
	OpPrefix   Op = "prefix"
	OpContains Op = "contains"
)

// PropFilter is one predicate over a JSON property. Filters in a slice
// combine with AND; a FilterGroup slice combines with OR.
type PropFilter struct {
	Prop  string
	Op    Op
	Value any
}

type FilterGroup []PropFilter

func Eq(prop string, value any) PropFilter {
	return PropFilter{Prop: prop, Op: OpEq, Value: value}
}

// VertexFilter selects the starting vertices of a traversal.
type VertexFilter struct {
	Label   string
	Key     string // empty means any key
	Filters []PropFilter
}

// Hop is one edge traversal step. EdgeFilters is an OR of AND-groups
// over the edge's attributes; TargetFilters constrain the vertex the
// hop lands on.
type Hop struct {
	Edge          string
	Dir           Direction
	EdgeFilters   []FilterGroup
	Target        string // target vertex label
	TargetFilters []PropFilter
}

type PathStep struct {
	Edge   Edge
	Vertex Vertex
}

type Path struct {
	Start Vertex
	Steps []PathStep
}

// End returns the vertex the path lands on.
func (p Path) End() Vertex {
	if len(p.Steps) == 0 {
		return p.Start
	}
	return p.Steps[len(p.Steps)-1].Vertex
}

// TraversalQuery describes one multi-hop pattern match. Limit bounds the
// number of returned rows; zero means unbounded.
type TraversalQuery struct {
	Start VertexFilter
	Hops  []Hop
	Limit int
}

func marshalProps(props map[string]any) (string, error) {
	if props == nil {
		return "{}", nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("failed to encode props: %w", err)
	}
	return string(b), nil
}

func unmarshalProps(raw string) (map[string]any, error) {
	props := map[string]any{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("failed to decode props: %w", err)
	}
	return props, nil
}

// UpsertVertex inserts the vertex or, when (label, key) already exists,
// replaces its props. Concurrent upserts of the same key converge.
func (s *Store) UpsertVertex(ctx context.Context, v Vertex) error {
	props, err := marshalProps(v.Props)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vertices (label, key, props) VALUES (?, ?, ?)
		 ON CONFLICT(label, key) DO UPDATE SET props = excluded.props`,
		v.Label, v.Key, props)
	if err != nil {
		return fmt.Errorf("failed to upsert vertex %s/%s: %w", v.Label, v.Key, err)
	}
	return nil
}

// upsertBatchSize bounds memory per transaction during bulk imports.
const upsertBatchSize = 20000

// BulkUpsertVertices writes vertices in batched transactions with a
// prepared statement per batch.
func (s *Store) BulkUpsertVertices(ctx context.Context, vs []Vertex) error {
	for start := 0; start < len(vs); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(vs))
		if err := s.bulkUpsertVertexBatch(ctx, vs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) bulkUpsertVertexBatch(ctx context.Context, vs []Vertex) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO vertices (label, key, props) VALUES (?, ?, ?)
		 ON CONFLICT(label, key) DO UPDATE SET props = excluded.props`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range vs {
		props, err := marshalProps(v.Props)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, v.Label, v.Key, props); err != nil {
			return fmt.Errorf("failed to upsert vertex %s/%s: %w", v.Label, v.Key, err)
		}
	}
	return tx.Commit()
}

// edgeUniq derives the edge's dedup key from its endpoints plus the
// uniqueOn attribute values. HAS_* edges pass no uniqueOn and dedupe on
// the endpoint pair alone; AYA_TEXT passes language and text_type so one
// edge exists per (verse, language, text type) triple.
func edgeUniq(e Edge, uniqueOn []string) string {
	parts := []string{e.From.Key, e.To.Key}
	for _, prop := range uniqueOn {
		parts = append(parts, fmt.Sprintf("%v", e.Props[prop]))
	}
	return strings.Join(parts, "|")
}

// UpsertEdge inserts the edge, replacing props when the dedup key
// already exists.
func (s *Store) UpsertEdge(ctx context.Context, e Edge, uniqueOn []string) error {
	props, err := marshalProps(e.Props)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO edges (label, from_label, from_key, to_label, to_key, uniq, props)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(label, uniq) DO UPDATE SET
			from_label = excluded.from_label, from_key = excluded.from_key,
			to_label = excluded.to_label, to_key = excluded.to_key,
			props = excluded.props`,
		e.Label, e.From.Label, e.From.Key, e.To.Label, e.To.Key, edgeUniq(e, uniqueOn), props)
	if err != nil {
		return fmt.Errorf("failed to upsert edge %s %s->%s: %w", e.Label, e.From.Key, e.To.Key, err)
	}
	return nil
}

// BulkUpsertEdges writes edges in batched transactions.
func (s *Store) BulkUpsertEdges(ctx context.Context, es []Edge, uniqueOn []string) error {
	for start := 0; start < len(es); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(es))
		if err := s.bulkUpsertEdgeBatch(ctx, es[start:end], uniqueOn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) bulkUpsertEdgeBatch(ctx context.Context, es []Edge, uniqueOn []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO edges (label, from_label, from_key, to_label, to_key, uniq, props)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(label, uniq) DO UPDATE SET props = excluded.props`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range es {
		props, err := marshalProps(e.Props)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			e.Label, e.From.Label, e.From.Key, e.To.Label, e.To.Key, edgeUniq(e, uniqueOn), props)
		if err != nil {
			return fmt.Errorf("failed to upsert edge %s %s->%s: %w", e.Label, e.From.Key, e.To.Key, err)
		}
	}
	return tx.Commit()
}

// GetVertex fetches one vertex by ref. The second return value reports
// whether it exists.
func (s *Store) GetVertex(ctx context.Context, ref Ref) (Vertex, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT props FROM vertices WHERE label = ? AND key = ?`, ref.Label, ref.Key)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return Vertex{}, false, nil
		}
		return Vertex{}, false, err
	}
	props, err := unmarshalProps(raw)
	if err != nil {
		return Vertex{}, false, err
	}
	return Vertex{Label: ref.Label, Key: ref.Key, Props: props}, true, nil
}

// FindVertex returns the first vertex of the label whose property
// equals value exactly.
func (s *Store) FindVertex(ctx context.Context, label, prop string, value any) (Vertex, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, props FROM vertices WHERE label = ? AND json_extract(props, ?) = ? LIMIT 1`,
		label, propPath(prop), value)
	var key, raw string
	if err := row.Scan(&key, &raw); err != nil {
		if err == sql.ErrNoRows {
			return Vertex{}, false, nil
		}
		return Vertex{}, false, err
	}
	props, err := unmarshalProps(raw)
	if err != nil {
		return Vertex{}, false, err
	}
	return Vertex{Label: label, Key: key, Props: props}, true, nil
}

// OrderBy sorts VerticesWhere results on one JSON property.
type OrderBy struct {
	Prop string
	Desc bool
}

// VerticesWhere returns vertices of a label matching all filters,
// optionally ordered and limited. A zero limit means unbounded.
func (s *Store) VerticesWhere(ctx context.Context, label string, filters []PropFilter,
	order []OrderBy, limit int) ([]Vertex, error) {

	var sb strings.Builder
	args := []any{label}
	sb.WriteString(`SELECT key, props FROM vertices WHERE label = ?`)
	for _, f := range filters {
		sb.WriteString(" AND ")
		compileFilter(&sb, &args, "vertices", f)
	}
	for i, o := range order {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString("json_extract(props, ?)")
		args = append(args, propPath(o.Prop))
		if o.Desc {
			sb.WriteString(" DESC")
		}
	}
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("vertex query failed: %w", err)
	}
	defer rows.Close()

	var out []Vertex
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		props, err := unmarshalProps(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Vertex{Label: label, Key: key, Props: props})
	}
	return out, rows.Err()
}

// DeleteVertices removes every vertex of the label.
func (s *Store) DeleteVertices(ctx context.Context, label string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vertices WHERE label = ?`, label)
	return err
}

// DeleteEdges removes every edge of the label.
func (s *Store) DeleteEdges(ctx context.Context, label string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE label = ?`, label)
	return err
}

// DeleteEdgesFrom removes edges of the label leaving `from` whose
// attributes match all filters.
func (s *Store) DeleteEdgesFrom(ctx context.Context, label string, from Ref, filters []PropFilter) error {
	var sb strings.Builder
	args := []any{label, from.Label, from.Key}
	sb.WriteString(`DELETE FROM edges WHERE label = ? AND from_label = ? AND from_key = ?`)
	for _, f := range filters {
		sb.WriteString(" AND ")
		compileFilter(&sb, &args, "edges", f)
	}
	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

// CountEdgesByTarget returns, per target vertex key, the number of
// edges of the label pointing at it.
func (s *Store) CountEdgesByTarget(ctx context.Context, label string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_key, COUNT(*) FROM edges WHERE label = ? GROUP BY to_key`, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// PropCount is one bucket of GroupVerticesByProp.
type PropCount struct {
	Value int
	N     int
}

// GroupVerticesByProp buckets vertices of a label by an integer property
// and returns the bucket sizes, largest property value first.
func (s *Store) GroupVerticesByProp(ctx context.Context, label, prop string) ([]PropCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json_extract(props, ?) AS v, COUNT(*) FROM vertices
		 WHERE label = ? GROUP BY v ORDER BY v DESC`,
		propPath(prop), label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PropCount
	for rows.Next() {
		var pc PropCount
		if err := rows.Scan(&pc.Value, &pc.N); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// DistinctEdgeProps returns the distinct combinations of the named
// attributes over all edges of the label.
func (s *Store) DistinctEdgeProps(ctx context.Context, label string, props []string) ([]map[string]string, error) {
	var sb strings.Builder
	args := []any{}
	sb.WriteString("SELECT DISTINCT ")
	for i := range props {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("json_extract(props, ?)")
		args = append(args, propPath(props[i]))
	}
	sb.WriteString(" FROM edges WHERE label = ?")
	args = append(args, label)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		vals := make([]any, len(props))
		for i := range vals {
			vals[i] = new(sql.NullString)
		}
		if err := rows.Scan(vals...); err != nil {
			return nil, err
		}
		rec := make(map[string]string, len(props))
		for i, p := range props {
			ns := vals[i].(*sql.NullString)
			rec[p] = ns.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Meta is a small key-value side table for records that do not belong in
// the graph itself, like the text-types registry.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Traverse compiles the query into one join chain over the vertices and
// edges tables and executes it. Each returned Path carries the start
// vertex plus, per hop, the traversed edge and the vertex it lands on.
func (s *Store) Traverse(ctx context.Context, q TraversalQuery) ([]Path, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT v0.key, v0.props")
	for i := range q.Hops {
		fmt.Fprintf(&sb, ", e%d.from_key, e%d.to_key, e%d.props, v%d.key, v%d.props",
			i+1, i+1, i+1, i+1, i+1)
	}
	sb.WriteString(" FROM vertices v0")

	for i, hop := range q.Hops {
		e := fmt.Sprintf("e%d", i+1)
		vPrev := fmt.Sprintf("v%d", i)
		vNext := fmt.Sprintf("v%d", i+1)
		if hop.Dir == Out {
			fmt.Fprintf(&sb,
				" JOIN edges %s ON %s.label = ? AND %s.from_label = %s.label AND %s.from_key = %s.key",
				e, e, e, vPrev, e, vPrev)
			args = append(args, hop.Edge)
			fmt.Fprintf(&sb,
				" JOIN vertices %s ON %s.label = ? AND %s.label = %s.to_label AND %s.key = %s.to_key",
				vNext, vNext, vNext, e, vNext, e)
			args = append(args, hop.Target)
		} else {
			fmt.Fprintf(&sb,
				" JOIN edges %s ON %s.label = ? AND %s.to_label = %s.label AND %s.to_key = %s.key",
				e, e, e, vPrev, e, vPrev)
			args = append(args, hop.Edge)
			fmt.Fprintf(&sb,
				" JOIN vertices %s ON %s.label = ? AND %s.label = %s.from_label AND %s.key = %s.from_key",
				vNext, vNext, vNext, e, vNext, e)
			args = append(args, hop.Target)
		}
	}

	sb.WriteString(" WHERE v0.label = ?")
	args = append(args, q.Start.Label)
	if q.Start.Key != "" {
		sb.WriteString(" AND v0.key = ?")
		args = append(args, q.Start.Key)
	}
	for _, f := range q.Start.Filters {
		sb.WriteString(" AND ")
		compileFilter(&sb, &args, "v0", f)
	}

	for i, hop := range q.Hops {
		if len(hop.EdgeFilters) > 0 {
			e := fmt.Sprintf("e%d", i+1)
			sb.WriteString(" AND (")
			for gi, group := range hop.EdgeFilters {
				if gi > 0 {
					sb.WriteString(" OR ")
				}
				sb.WriteString("(")
				for fi, f := range group {
					if fi > 0 {
						sb.WriteString(" AND ")
					}
					compileFilter(&sb, &args, e, f)
				}
				sb.WriteString(")")
			}
			sb.WriteString(")")
		}
		for _, f := range hop.TargetFilters {
			sb.WriteString(" AND ")
			compileFilter(&sb, &args, fmt.Sprintf("v%d", i+1), f)
		}
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("traversal failed: %w", err)
	}
	defer rows.Close()

	var paths []Path
	for rows.Next() {
		cols := make([]any, 2+5*len(q.Hops))
		for i := range cols {
			cols[i] = new(string)
		}
		if err := rows.Scan(cols...); err != nil {
			return nil, err
		}

		startProps, err := unmarshalProps(*cols[1].(*string))
		if err != nil {
			return nil, err
		}
		p := Path{Start: Vertex{
			Label: q.Start.Label,
			Key:   *cols[0].(*string),
			Props: startProps,
		}}

		prevLabel := q.Start.Label
		for i, hop := range q.Hops {
			base := 2 + 5*i
			edgeProps, err := unmarshalProps(*cols[base+2].(*string))
			if err != nil {
				return nil, err
			}
			vertexProps, err := unmarshalProps(*cols[base+4].(*string))
			if err != nil {
				return nil, err
			}
			fromKey := *cols[base].(*string)
			toKey := *cols[base+1].(*string)

			edge := Edge{Label: hop.Edge, Props: edgeProps}
			if hop.Dir == Out {
				edge.From = Ref{Label: prevLabel, Key: fromKey}
				edge.To = Ref{Label: hop.Target, Key: toKey}
			} else {
				edge.From = Ref{Label: hop.Target, Key: fromKey}
				edge.To = Ref{Label: prevLabel, Key: toKey}
			}
			p.Steps = append(p.Steps, PathStep{
				Edge: edge,
				Vertex: Vertex{
					Label: hop.Target,
					Key:   *cols[base+3].(*string),
					Props: vertexProps,
				},
			})
			prevLabel = hop.Target
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func propPath(prop string) string {
	return "$." + prop
}

// compileFilter appends one predicate over alias.props to the query,
// pushing every value into args.
func compileFilter(sb *strings.Builder, args *[]any, alias string, f PropFilter) {
	field := alias + ".props"
	switch f.Op {
	case OpGe:
		fmt.Fprintf(sb, "json_extract(%s, ?) >= ?", field)
		*args = append(*args, propPath(f.Prop), f.Value)
	case OpLe:
		fmt.Fprintf(sb, "json_extract(%s, ?) <= ?", field)
		*args = append(*args, propPath(f.Prop), f.Value)
	case OpPrefix:
		// substr instead of LIKE: LIKE is case-folding for ASCII.
		fmt.Fprintf(sb, "substr(json_extract(%s, ?), 1, length(?)) = ?", field)
		*args = append(*args, propPath(f.Prop), f.Value, f.Value)
	case OpContains:
		fmt.Fprintf(sb, "instr(json_extract(%s, ?), ?) > 0", field)
		*args = append(*args, propPath(f.Prop), f.Value)
	default:
		fmt.Fprintf(sb, "json_extract(%s, ?) = ?", field)
		*args = append(*args, propPath(f.Prop), f.Value)
	}
}
