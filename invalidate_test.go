package storygraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidateStopsAtIdle(t *testing.T) {
	g := NewGraph()
	a := mustNode(t, g, TypeShotText)
	b := mustNode(t, g, TypePicPrompt)
	c := mustNode(t, g, TypeVideoPrompt)
	d := mustNode(t, g, TypeVideo)
	mustEdge(t, g, a, b, PortShotText, PortShotText)
	mustEdge(t, g, b, c, PortPicPrompts, PortPicPrompts)
	mustEdge(t, g, c, d, PortVideoPrompts, PortVideoPrompts)

	a.Status = StatusDone
	b.Status = StatusIdle
	c.Status = StatusDone
	d.Status = StatusDone

	reset := g.Invalidate(a.ID)
	assert.Empty(t, reset)
	assert.Equal(t, StatusDone, c.Status)
	assert.Equal(t, StatusDone, d.Status)
}

func TestInvalidateWalksDownstream(t *testing.T) {
	g := NewGraph()
	a := mustNode(t, g, TypeShotText)
	b := mustNode(t, g, TypePicPrompt)
	c := mustNode(t, g, TypeVideoPrompt)
	mustEdge(t, g, a, b, PortShotText, PortShotText)
	mustEdge(t, g, a, c, PortShotText, PortShotText)
	mustEdge(t, g, b, c, PortPicPrompts, PortPicPrompts)

	b.Status, b.Output = StatusApproved, strPtr("prompts")
	c.Status, c.ErrorLog = StatusError, "bad"

	reset := g.Invalidate(a.ID)
	assert.ElementsMatch(t, []string{b.ID, c.ID}, reset)
	assert.Equal(t, StatusIdle, b.Status)
	assert.Nil(t, b.Output)
	assert.Equal(t, StatusIdle, c.Status)
}

func TestInvalidateTerminatesOnCycle(t *testing.T) {
	g := NewGraph()
	a := mustNode(t, g, TypePicPrompt)
	b := mustNode(t, g, TypeVideoPrompt)
	a.Status, b.Status = StatusDone, StatusDone
	// Cycles cannot be built through the port schema; write them directly.
	g.Edges = append(g.Edges,
		Edge{ID: "e1", Source: a.ID, Target: b.ID, SrcPort: PortPicPrompts, DstPort: PortPicPrompts},
		Edge{ID: "e2", Source: b.ID, Target: a.ID, SrcPort: PortVideoPrompts, DstPort: PortShotText},
	)

	reset := g.Invalidate(a.ID)
	assert.Equal(t, []string{b.ID}, reset)
	assert.Equal(t, StatusDone, a.Status)
}

func TestInvalidateSkipsDanglingEdges(t *testing.T) {
	g := NewGraph()
	a := mustNode(t, g, TypeShotText)
	g.Edges = append(g.Edges, Edge{ID: "e", Source: a.ID, Target: "gone", SrcPort: PortShotText, DstPort: PortShotText})
	assert.Empty(t, g.Invalidate(a.ID))
}
