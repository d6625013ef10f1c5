package storygraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoShots = "```json\n" + `{"shots":[{"shot_id":"1_1","scene":"harbour"},{"shot_id":"1_2","scene":"market"}]}` + "\n```"

func TestExpandStoryboard(t *testing.T) {
	g := NewGraph()
	board, err := g.CreateNode(TypeStoryboard, Position{X: 100, Y: 50})
	require.NoError(t, err)
	board.Output = strPtr(twoShots)

	x := g.expandStoryboard(board)
	assert.Empty(t, x.Warning)
	require.Len(t, x.Nodes, 2)
	assert.Empty(t, x.Edges)
	assert.Empty(t, g.Edges)

	for i, id := range x.Nodes {
		n := g.Nodes[id]
		assert.Equal(t, TypeShotText, n.Type)
		assert.Equal(t, StatusDone, n.Status)
		assert.Equal(t, Position{X: 380, Y: 50 + float64(i)*180}, n.Position())
		assert.Equal(t, n.OutputText(), n.DataString("shot_text"))
	}
	assert.Equal(t, "1_1", g.Nodes[x.Nodes[0]].DataString("shot_label"))
	assert.Equal(t, "1_2", g.Nodes[x.Nodes[1]].DataString("shot_label"))
	assert.Contains(t, g.Nodes[x.Nodes[1]].OutputText(), `"scene": "market"`)
}

func TestExpandStoryboardWithoutShots(t *testing.T) {
	g := NewGraph()
	board := mustNode(t, g, TypeStoryboard)
	board.Output = strPtr("not json")

	x := g.expandStoryboard(board)
	assert.Equal(t, warnNoShots, x.Warning)
	assert.Empty(t, x.Nodes)
	assert.Len(t, g.Nodes, 1)
}

func TestExpandShotText(t *testing.T) {
	g := NewGraph()
	shot, err := g.CreateNode(TypeShotText, Position{X: 10, Y: 20})
	require.NoError(t, err)
	shot.Data["shot_label"] = "2_3"

	x := g.expandShotText(shot)
	require.Len(t, x.Nodes, 1)
	require.Len(t, x.Edges, 1)

	pic := g.Nodes[x.Nodes[0]]
	assert.Equal(t, TypePicPrompt, pic.Type)
	assert.Equal(t, StatusIdle, pic.Status)
	assert.Equal(t, "2_3", pic.DataString("shot_label"))
	assert.Equal(t, Position{X: 290, Y: 20}, pic.Position())
	assert.Equal(t, Edge{ID: x.Edges[0], Source: shot.ID, Target: pic.ID, SrcPort: PortShotText, DstPort: PortShotText}, g.Edges[0])
}

func TestExpandPicPrompt(t *testing.T) {
	g := NewGraph()
	shot := mustNode(t, g, TypeShotText)
	shot.Data["shot_label"] = "1_2"
	x := g.expandShotText(shot)
	pic := g.Nodes[x.Nodes[0]]

	x = g.expandPicPrompt(pic)
	require.Len(t, x.Nodes, 1)
	require.Len(t, x.Edges, 2)

	vid := g.Nodes[x.Nodes[0]]
	assert.Equal(t, TypeVideoPrompt, vid.Type)
	assert.Equal(t, "1_2", vid.DataString("shot_label"))

	in := g.EdgesTo(vid.ID, "")
	require.Len(t, in, 2)
	assert.Equal(t, shot.ID, in[0].Source)
	assert.Equal(t, PortShotText, in[0].DstPort)
	assert.Equal(t, pic.ID, in[1].Source)
	assert.Equal(t, PortPicPrompts, in[1].DstPort)
}

func TestExpandPicPromptWithoutShot(t *testing.T) {
	g := NewGraph()
	pic := mustNode(t, g, TypePicPrompt)

	x := g.expandPicPrompt(pic)
	require.Len(t, x.Nodes, 1)
	require.Len(t, x.Edges, 1)
	assert.Equal(t, PortPicPrompts, g.Edges[0].DstPort)
}
