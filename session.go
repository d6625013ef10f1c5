package storygraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/meikuraledutech/storygraph/log"
)

const interruptedLog = "interrupted: the session ended while this node was running"

// errNoChange lets a mutation report that it left the project untouched,
// so nothing is flushed.
var errNoChange = errors.New("no change")

// Session owns one project's graph for the lifetime of an editing session.
//
// Every mutation is applied to a copy of the project, saved through the
// Store and only then made current, so the cached graph never runs ahead of
// the stored one. Mutations are serialised by the session; generation calls
// run outside the lock.
type Session struct {
	mu       sync.Mutex
	name     string
	project  *Project
	store    Store
	gen      Generator
	docs     DocReader
	defaults Settings

	// inflight maps a running node to the token of its current dispatch.
	inflight map[string]uint64
	seq      uint64
}

// Option configures a Session.
type Option func(*Session)

// WithGenerator sets the backend that runs generation requests.
func WithGenerator(g Generator) Option {
	return func(s *Session) { s.gen = g }
}

// WithDocReader sets the reader used for script and reference documents.
func WithDocReader(r DocReader) Option {
	return func(s *Session) { s.docs = r }
}

// WithDefaults sets the settings consulted after the project's own.
func WithDefaults(d Settings) Option {
	return func(s *Session) { s.defaults = Settings(cloneMap(d)) }
}

// Open loads the named project and starts a session on it. Nodes left
// running by a previous session are moved to error, since their results can
// no longer arrive.
func Open(ctx context.Context, store Store, name string, opts ...Option) (*Session, error) {
	p, err := store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("storygraph: load %s: %w", name, err)
	}
	if p == nil {
		p = NewProject()
	}
	p.normalize()

	s := &Session{
		name:     name,
		project:  p,
		store:    store,
		defaults: Settings{},
		inflight: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}

	var stale []string
	for id, n := range p.Nodes {
		if n.Status == StatusRunning {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		sort.Strings(stale)
		err := s.mutate(ctx, "recover", func(p *Project) error {
			for _, id := range stale {
				if err := p.Nodes[id].fail(interruptedLog); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		log.Warnf("project %s: %d interrupted nodes moved to error: %v", name, len(stale), stale)
	}
	log.Infof("project %s opened (%d nodes, %d edges)", name, len(p.Nodes), len(p.Edges))
	return s, nil
}

// Name returns the project name.
func (s *Session) Name() string { return s.name }

// Project returns a copy of the current project.
func (s *Session) Project() *Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Clone()
}

// Node returns a copy of the node.
func (s *Session) Node(id string) (*Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.project.Nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Edges returns the edges in insertion order.
func (s *Session) Edges() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.ListEdges()
}

// Settings returns a copy of the project settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Settings(cloneMap(s.project.Settings))
}

// Resolve returns the payload feeding a node's input port.
func (s *Session) Resolve(id string, port Port) (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project.Resolve(id, port)
}

// Running reports whether a generation is in flight for the node.
func (s *Session) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[id]
	return ok
}

// CreateNode adds an idle node.
func (s *Session) CreateNode(ctx context.Context, t NodeType, pos Position) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created *Node
	err := s.mutate(ctx, "create node", func(p *Project) error {
		n, err := p.CreateNode(t, pos)
		created = n
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infof("node %s created", created.ID)
	return created.Clone(), nil
}

// DeleteNode removes the node and its edges. Deleting a missing node is a
// no-op.
func (s *Session) DeleteNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutate(ctx, "delete node", func(p *Project) error {
		if !p.DeleteNode(id) {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return err
	}
	delete(s.inflight, id)
	return nil
}

// CreateEdge connects two nodes. ok is false when the graph refused the
// edge; that is not an error.
func (s *Session) CreateEdge(ctx context.Context, source, target string, srcPort, dstPort Port) (*Edge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created Edge
	var ok bool
	err := s.mutate(ctx, "create edge", func(p *Project) error {
		created, ok = p.CreateEdge(source, target, srcPort, dstPort)
		if !ok {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		log.Debugf("edge %s.%s -> %s.%s refused", source, srcPort, target, dstPort)
		return nil, false, nil
	}
	return &created, true, nil
}

// DeleteEdge removes an edge. Deleting a missing edge is a no-op.
func (s *Session) DeleteEdge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, "delete edge", func(p *Project) error {
		if !p.DeleteEdge(id) {
			return errNoChange
		}
		return nil
	})
}

// UpdateData merges patch into the node's data. A nil value removes the key.
func (s *Session) UpdateData(ctx context.Context, id string, patch map[string]any) (*Node, error) {
	return s.editNode(ctx, "update data", id, func(n *Node) error {
		for k, v := range patch {
			if v == nil {
				delete(n.Data, k)
				continue
			}
			n.Data[k] = cloneValue(v)
		}
		return nil
	})
}

// SetOutput replaces the node's text output, as when a user edits a
// generated result by hand. The status is left alone.
func (s *Session) SetOutput(ctx context.Context, id string, output *string) (*Node, error) {
	return s.editNode(ctx, "set output", id, func(n *Node) error {
		if output == nil {
			n.Output = nil
			return nil
		}
		text := *output
		n.Output = &text
		return nil
	})
}

// Move sets the node's canvas position.
func (s *Session) Move(ctx context.Context, id string, pos Position) (*Node, error) {
	return s.editNode(ctx, "move", id, func(n *Node) error {
		n.X, n.Y = pos.X, pos.Y
		return nil
	})
}

// SelectImage picks which generated image the node passes downstream.
func (s *Session) SelectImage(ctx context.Context, id string, index int) (*Node, error) {
	return s.editNode(ctx, "select image", id, func(n *Node) error {
		if index < 0 || index >= len(n.OutputImages) {
			return fmt.Errorf("%w: image index %d out of range [0,%d)", ErrInvalidArgument, index, len(n.OutputImages))
		}
		n.Data["selected_image"] = index
		return nil
	})
}

// Approve moves a done node to approved and runs the expansion its type
// calls for. A storyboard whose output has no usable shots is still
// approved; the returned Expansion carries a warning instead.
func (s *Session) Approve(ctx context.Context, id string) (*Node, *Expansion, error) {
	return s.approve(ctx, "approve", id, false, func(p *Project, n *Node) *Expansion {
		switch n.Type {
		case TypeStoryboard:
			return p.expandStoryboard(n)
		case TypePicPrompt:
			return p.expandPicPrompt(n)
		default:
			return newExpansion()
		}
	})
}

// Confirm approves a shot text node and chains an image-prompt node to it.
func (s *Session) Confirm(ctx context.Context, id string) (*Node, *Expansion, error) {
	return s.approve(ctx, "confirm", id, true, func(p *Project, n *Node) *Expansion {
		return p.expandShotText(n)
	})
}

func (s *Session) approve(ctx context.Context, op, id string, confirm bool, expand func(*Project, *Node) *Expansion) (*Node, *Expansion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var x *Expansion
	err := s.mutate(ctx, op, func(p *Project) error {
		n, ok := p.Nodes[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if confirm && n.Type != TypeShotText {
			return fmt.Errorf("%w: only %s nodes can be confirmed", ErrInvalidArgument, TypeShotText)
		}
		if err := n.approve(); err != nil {
			return err
		}
		x = expand(p, n)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if x.Warning != "" {
		log.Warnf("node %s approved without expansion: %s", id, x.Warning)
	} else {
		log.Infof("node %s approved: %d nodes, %d edges added", id, len(x.Nodes), len(x.Edges))
	}
	return s.project.Nodes[id].Clone(), x, nil
}

// Refresh returns a node to idle, clearing its output, and invalidates
// everything downstream of it. A generation still in flight for any reset
// node is abandoned; its result will be discarded.
func (s *Session) Refresh(ctx context.Context, id string) (*Node, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reset []string
	err := s.mutate(ctx, "refresh", func(p *Project) error {
		n, ok := p.Nodes[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if err := n.reset(); err != nil {
			return err
		}
		reset = p.Invalidate(id)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	delete(s.inflight, id)
	for _, r := range reset {
		delete(s.inflight, r)
	}
	log.Infof("node %s refreshed, %d downstream nodes invalidated", id, len(reset))
	return s.project.Nodes[id].Clone(), reset, nil
}

// ReplaceSettings swaps the project settings.
func (s *Session) ReplaceSettings(ctx context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, "replace settings", func(p *Project) error {
		p.Settings = Settings(cloneMap(settings))
		return nil
	})
}

// Replace swaps the whole project, as on an import.
func (s *Session) Replace(ctx context.Context, project *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutate(ctx, "replace", func(p *Project) error {
		next := project.Clone()
		next.normalize()
		if err := next.validate(); err != nil {
			return err
		}
		*p = *next
		return nil
	})
	if err != nil {
		return err
	}
	for id := range s.inflight {
		if n, ok := s.project.Nodes[id]; !ok || n.Status != StatusRunning {
			delete(s.inflight, id)
		}
	}
	return nil
}

// Clear removes every node and edge and keeps the settings.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutate(ctx, "clear", func(p *Project) error {
		p.Graph = *NewGraph()
		return nil
	})
	if err != nil {
		return err
	}
	s.inflight = make(map[string]uint64)
	return nil
}

func (s *Session) editNode(ctx context.Context, op, id string, fn func(*Node) error) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutate(ctx, op, func(p *Project) error {
		n, ok := p.Nodes[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		return fn(n)
	})
	if err != nil {
		return nil, err
	}
	return s.project.Nodes[id].Clone(), nil
}

// mutate applies fn to a copy of the project, saves the copy and makes it
// current. The caller holds s.mu.
func (s *Session) mutate(ctx context.Context, op string, fn func(p *Project) error) error {
	next := s.project.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	if err := s.store.Save(ctx, s.name, next); err != nil {
		return fmt.Errorf("storygraph: save after %s: %w", op, err)
	}
	s.project = next
	log.Debugf("project %s: %s (%d nodes, %d edges)", s.name, op, len(next.Nodes), len(next.Edges))
	return nil
}
