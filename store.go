package storygraph

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound      = errors.New("storygraph: node not found")
	ErrEdgeNotFound      = errors.New("storygraph: edge not found")
	ErrUnknownNodeType   = errors.New("storygraph: unknown node type")
	ErrIllegalTransition = errors.New("storygraph: illegal status transition")
	ErrAlreadyRunning    = errors.New("storygraph: node is already running")
	ErrNoGenerator       = errors.New("storygraph: node has no generation step")
	ErrGeneration        = errors.New("storygraph: generation failed")
	ErrSuperseded        = errors.New("storygraph: generation result superseded")
	ErrInvalidArgument   = errors.New("storygraph: invalid argument")
)

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	NodeID string
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("storygraph: node %s cannot go from %s to %s", e.NodeID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// Store is the persistence gateway for projects.
type Store interface {
	// Load returns the stored project, or an empty project when none exists.
	Load(ctx context.Context, project string) (*Project, error)
	// Save replaces the whole stored project.
	Save(ctx context.Context, project string, p *Project) error
}

// Deleter is implemented by stores that can drop a whole project.
type Deleter interface {
	Delete(ctx context.Context, project string) error
}

// Migrator is implemented by stores that manage a database schema.
type Migrator interface {
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error
}
