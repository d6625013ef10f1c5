package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/storygraph"
)

// ListNodes returns all nodes of a project in stored order.
// Returns an empty slice (not nil) if none found.
func (s *PGStore) ListNodes(ctx context.Context, project string) ([]*storygraph.Node, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, data FROM storygraph_nodes WHERE project_id = $1 ORDER BY ordinal`, project)
	if err != nil {
		return nil, fmt.Errorf("storygraph: list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []*storygraph.Node{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("storygraph: scan node: %w", err)
		}
		n, err := decodeNode(id, data)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storygraph: rows nodes: %w", err)
	}
	return nodes, nil
}

func decodeNode(id string, data []byte) (*storygraph.Node, error) {
	var n storygraph.Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("storygraph: decode node %s: %w", id, err)
	}
	n.ID = id
	return &n, nil
}
