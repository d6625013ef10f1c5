package storygraph

import (
	"context"
	"fmt"

	"github.com/meikuraledutech/storygraph/log"
)

// Dispatch is a generation that has been started: the node is running and
// its request is assembled. Execute performs the backend call.
type Dispatch struct {
	s      *Session
	nodeID string
	token  uint64
	req    *Request
	done   bool
}

// NodeID returns the id of the node being generated.
func (d *Dispatch) NodeID() string { return d.nodeID }

// Request returns the assembled request, or nil for nodes that need no
// backend call.
func (d *Dispatch) Request() *Request { return d.req }

// Start moves the node to running, persists that, and assembles its
// generation request from upstream payloads.
//
// A node that is already running is refused with ErrAlreadyRunning. Shot
// text nodes have no backend: their edited text becomes the output and the
// node finishes immediately. A request that cannot be assembled (for
// example a workflow that is not valid JSON) puts the node in error.
//
// The request is built from a snapshot without holding the session lock,
// so reading large script documents does not block other calls.
func (s *Session) Start(ctx context.Context, id string) (*Dispatch, error) {
	d, snapshot, err := s.claim(ctx, id)
	if err != nil || d.done {
		return d, err
	}

	b := &requestBuilder{
		graph:    &snapshot.Graph,
		settings: snapshot.Settings,
		defaults: s.defaults,
		docs:     s.docs,
	}
	req, buildErr := b.build(ctx, snapshot.Nodes[id])
	if err := s.settle(context.WithoutCancel(ctx), d, buildErr); err != nil {
		return nil, err
	}
	d.req = req
	log.Infof("node %s running", id)
	return d, nil
}

// claim marks the node running under a fresh in-flight token and returns a
// snapshot of the project to build the request from.
func (s *Session) claim(ctx context.Context, id string) (*Dispatch, *Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.project.Nodes[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if _, busy := s.inflight[id]; busy || n.Status == StatusRunning {
		return nil, nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, id)
	}
	if !CanTransition(n.Status, StatusRunning) {
		return nil, nil, &TransitionError{NodeID: id, From: n.Status, To: StatusRunning}
	}

	if n.Type == TypeShotText {
		err := s.mutate(ctx, "run shot text", func(p *Project) error {
			m := p.Nodes[id]
			if err := m.start(); err != nil {
				return err
			}
			return m.complete(TextResult(firstNonEmpty(m.DataString("shot_text"), m.OutputText())))
		})
		if err != nil {
			return nil, nil, err
		}
		return &Dispatch{s: s, nodeID: id, done: true}, nil, nil
	}
	if n.Type.IsInput() || s.gen == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoGenerator, n.Type)
	}

	err := s.mutate(ctx, "start", func(p *Project) error {
		return p.Nodes[id].start()
	})
	if err != nil {
		return nil, nil, err
	}
	s.seq++
	s.inflight[id] = s.seq
	return &Dispatch{s: s, nodeID: id, token: s.seq}, s.project.Clone(), nil
}

// settle checks that the claim survived request assembly. A request that
// could not be assembled releases the claim and moves the node to error.
func (s *Session) settle(ctx context.Context, d *Dispatch, buildErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := d.nodeID
	if tok, ok := s.inflight[id]; !ok || tok != d.token {
		log.Warnf("node %s: claim superseded while assembling the request", id)
		return fmt.Errorf("%w: %s", ErrSuperseded, id)
	}
	if buildErr == nil {
		return nil
	}
	delete(s.inflight, id)

	log.Errorf("node %s: cannot assemble request: %v", id, buildErr)
	err := s.mutate(ctx, "fail start", func(p *Project) error {
		n, ok := p.Nodes[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		return n.fail(buildErr.Error())
	})
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: node %s: %w", ErrGeneration, id, buildErr)
}

// Execute calls the generator and records the outcome on the node. It must
// be called at most once per Dispatch.
//
// A failed generation leaves the node in error with the failure in its
// error log and returns an error wrapping ErrGeneration. If the node was
// refreshed or deleted while the call was in flight the result is dropped
// and ErrSuperseded is returned.
func (d *Dispatch) Execute(ctx context.Context) (*Node, error) {
	if d.done {
		n, ok := d.s.Node(d.nodeID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, d.nodeID)
		}
		return n, nil
	}
	res, genErr := d.s.gen.Generate(ctx, d.req)
	return d.s.finish(context.WithoutCancel(ctx), d, res, genErr)
}

// Run starts and executes a generation for the node.
func (s *Session) Run(ctx context.Context, id string) (*Node, error) {
	d, err := s.Start(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.Execute(ctx)
}

func (s *Session) finish(ctx context.Context, d *Dispatch, res *Result, genErr error) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := d.nodeID
	if tok, ok := s.inflight[id]; !ok || tok != d.token {
		log.Warnf("node %s: discarding result of a superseded generation", id)
		return nil, fmt.Errorf("%w: %s", ErrSuperseded, id)
	}
	delete(s.inflight, id)

	err := s.mutate(ctx, "finish", func(p *Project) error {
		n, ok := p.Nodes[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		if genErr != nil {
			return n.fail(genErr.Error())
		}
		return n.complete(res)
	})
	if err != nil {
		log.Errorf("node %s: cannot record generation outcome: %v", id, err)
		return nil, err
	}

	n := s.project.Nodes[id].Clone()
	if genErr != nil {
		log.Errorf("node %s: generation failed: %v", id, genErr)
		return n, fmt.Errorf("%w: node %s: %w", ErrGeneration, id, genErr)
	}
	log.Infof("node %s done", id)
	return n, nil
}
