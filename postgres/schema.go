package postgres

import "context"

// Edges carry no foreign keys: a stored graph may hold edges whose
// endpoints were removed, and readers skip them.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS storygraph_projects (
    id         TEXT PRIMARY KEY,
    settings   JSONB NOT NULL DEFAULT '{}',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS storygraph_nodes (
    project_id TEXT NOT NULL REFERENCES storygraph_projects(id) ON DELETE CASCADE,
    id         TEXT NOT NULL,
    type       TEXT NOT NULL,
    status     TEXT NOT NULL,
    data       JSONB NOT NULL,
    ordinal    INT NOT NULL,
    PRIMARY KEY (project_id, id)
);

CREATE TABLE IF NOT EXISTS storygraph_edges (
    project_id TEXT NOT NULL REFERENCES storygraph_projects(id) ON DELETE CASCADE,
    id         TEXT NOT NULL,
    source     TEXT NOT NULL,
    target     TEXT NOT NULL,
    src_port   TEXT NOT NULL,
    dst_port   TEXT NOT NULL,
    ordinal    INT NOT NULL,
    PRIMARY KEY (project_id, id)
);

CREATE INDEX IF NOT EXISTS idx_storygraph_edges_target ON storygraph_edges(project_id, target, dst_port);
`

// CreateSchema creates the storygraph tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the storygraph tables.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS storygraph_edges, storygraph_nodes, storygraph_projects CASCADE;`)
	return err
}
