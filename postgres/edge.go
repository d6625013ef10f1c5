package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/storygraph"
)

const edgeColumns = `id, source, target, src_port, dst_port`

// ListEdges returns all edges of a project in insertion order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListEdges(ctx context.Context, project string) ([]storygraph.Edge, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+edgeColumns+` FROM storygraph_edges WHERE project_id = $1 ORDER BY ordinal`, project)
	if err != nil {
		return nil, fmt.Errorf("storygraph: list edges: %w", err)
	}
	defer rows.Close()

	edges := []storygraph.Edge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("storygraph: scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storygraph: rows edges: %w", err)
	}
	return edges, nil
}

func scanEdge(row pgx.Row) (storygraph.Edge, error) {
	var e storygraph.Edge
	var src, dst string
	if err := row.Scan(&e.ID, &e.Source, &e.Target, &src, &dst); err != nil {
		return storygraph.Edge{}, err
	}
	e.SrcPort, e.DstPort = storygraph.Port(src), storygraph.Port(dst)
	return e, nil
}
