package storygraph

import "slices"

// maxKeptImages bounds how many generated images a node keeps; older ones
// are dropped first.
const maxKeptImages = 3

var transitions = map[Status][]Status{
	StatusIdle:     {StatusRunning},
	StatusRunning:  {StatusDone, StatusError, StatusIdle},
	StatusDone:     {StatusApproved, StatusIdle},
	StatusApproved: {StatusIdle},
	StatusError:    {StatusRunning, StatusIdle},
}

// CanTransition reports whether a node may move from one status to another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

func (n *Node) transition(to Status) error {
	if !CanTransition(n.Status, to) {
		return &TransitionError{NodeID: n.ID, From: n.Status, To: to}
	}
	n.Status = to
	return nil
}

// start dispatches a generation: idle or error -> running.
func (n *Node) start() error {
	if err := n.transition(StatusRunning); err != nil {
		return err
	}
	n.ErrorLog = ""
	return nil
}

// complete records a successful generation: running -> done.
func (n *Node) complete(res *Result) error {
	if err := n.transition(StatusDone); err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	if res.Output != nil {
		out := *res.Output
		n.Output = &out
	}
	if len(res.Images) > 0 {
		images := append(append([]string{}, n.OutputImages...), res.Images...)
		if len(images) > maxKeptImages {
			images = images[len(images)-maxKeptImages:]
		}
		n.OutputImages = images
	}
	if n.Type == TypeVideo || len(res.Videos) > 0 {
		n.OutputVideos = append([]string{}, res.Videos...)
	}
	return nil
}

// fail records a failed generation: running -> error.
func (n *Node) fail(msg string) error {
	if err := n.transition(StatusError); err != nil {
		return err
	}
	n.ErrorLog = msg
	return nil
}

// approve confirms a finished result: done -> approved.
func (n *Node) approve() error {
	return n.transition(StatusApproved)
}

// reset returns a non-idle node to idle and drops its text output.
func (n *Node) reset() error {
	if err := n.transition(StatusIdle); err != nil {
		return err
	}
	n.Output = nil
	return nil
}
