package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/meikuraledutech/storygraph"
)

// Save stores a full project (settings, nodes and edges) in one
// transaction, replacing whatever was stored under the name before.
func (s *PGStore) Save(ctx context.Context, project string, p *storygraph.Project) error {
	settings, err := json.Marshal(p.Settings)
	if err != nil {
		return fmt.Errorf("storygraph: encode settings: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storygraph: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO storygraph_projects (id, settings) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = NOW()`,
		project, settings,
	); err != nil {
		return fmt.Errorf("storygraph: upsert project: %w", err)
	}

	// Replace semantics: drop the old graph, then insert the new one.
	if _, err := tx.Exec(ctx, `DELETE FROM storygraph_edges WHERE project_id = $1`, project); err != nil {
		return fmt.Errorf("storygraph: delete edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM storygraph_nodes WHERE project_id = $1`, project); err != nil {
		return fmt.Errorf("storygraph: delete nodes: %w", err)
	}

	ids := make([]string, 0, len(p.Nodes))
	for id := range p.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		n := p.Nodes[id]
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("storygraph: encode node %s: %w", id, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO storygraph_nodes (project_id, id, type, status, data, ordinal) VALUES ($1, $2, $3, $4, $5, $6)`,
			project, id, string(n.Type), string(n.Status), data, i,
		); err != nil {
			return fmt.Errorf("storygraph: insert node %s: %w", id, err)
		}
	}

	for i, e := range p.Edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO storygraph_edges (project_id, id, source, target, src_port, dst_port, ordinal) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			project, e.ID, e.Source, e.Target, string(e.SrcPort), string(e.DstPort), i,
		); err != nil {
			return fmt.Errorf("storygraph: insert edge %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storygraph: commit: %w", err)
	}
	return nil
}

// Load retrieves a full project. A project that was never saved loads
// empty.
func (s *PGStore) Load(ctx context.Context, project string) (*storygraph.Project, error) {
	p := storygraph.NewProject()

	var settings []byte
	err := s.db.QueryRow(ctx,
		`SELECT settings FROM storygraph_projects WHERE id = $1`, project,
	).Scan(&settings)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storygraph: get project: %w", err)
	}
	if err := json.Unmarshal(settings, &p.Settings); err != nil {
		return nil, fmt.Errorf("storygraph: decode settings: %w", err)
	}

	nodes, err := s.ListNodes(ctx, project)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		p.Nodes[n.ID] = n
	}

	edges, err := s.ListEdges(ctx, project)
	if err != nil {
		return nil, err
	}
	p.Edges = edges
	return p, nil
}

// Delete removes a project with its nodes and edges.
// No error if the project doesn't exist.
func (s *PGStore) Delete(ctx context.Context, project string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM storygraph_projects WHERE id = $1`, project); err != nil {
		return fmt.Errorf("storygraph: delete project: %w", err)
	}
	return nil
}
