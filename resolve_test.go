package storygraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveShotTextPrefersData(t *testing.T) {
	g := NewGraph()
	shot := mustNode(t, g, TypeShotText)
	pic := mustNode(t, g, TypePicPrompt)
	mustEdge(t, g, shot, pic, PortShotText, PortShotText)

	shot.Output = strPtr("generated")
	p, ok := g.Resolve(pic.ID, PortShotText)
	require.True(t, ok)
	assert.Equal(t, "generated", p.Text)
	assert.Equal(t, shot.ID, p.SourceID)

	shot.Data["shot_text"] = "edited"
	p, ok = g.Resolve(pic.ID, PortShotText)
	require.True(t, ok)
	assert.Equal(t, "edited", p.Text)
}

func TestResolveInputFiles(t *testing.T) {
	g := NewGraph()
	script := mustNode(t, g, TypeScript)
	board := mustNode(t, g, TypeStoryboard)
	mustEdge(t, g, script, board, PortScript, PortScript)
	script.Data["script_files"] = []any{
		map[string]any{"name": "ep1.docx", "serverName": "abc.docx", "url": "/api/file/abc.docx"},
	}

	p, ok := g.Resolve(board.ID, PortScript)
	require.True(t, ok)
	assert.Equal(t, []FileRef{{Name: "ep1.docx", ServerName: "abc.docx", URL: "/api/file/abc.docx"}}, p.Files)
}

func TestResolveKeyframes(t *testing.T) {
	g := NewGraph()
	key := mustNode(t, g, TypeKeyImage)
	vid := mustNode(t, g, TypeVideo)
	mustEdge(t, g, key, vid, PortKeyframes, PortKeyframes)
	key.OutputImages = []string{"/api/file/a.png", "/api/file/b.png"}

	p, ok := g.Resolve(vid.ID, PortKeyframes)
	require.True(t, ok)
	assert.Equal(t, "/api/file/a.png", p.Text)
	assert.Equal(t, key.OutputImages, p.Images)

	key.Data["selected_image"] = float64(1)
	p, _ = g.Resolve(vid.ID, PortKeyframes)
	assert.Equal(t, "/api/file/b.png", p.Text)
}

func TestResolveUnfed(t *testing.T) {
	g := NewGraph()
	pic := mustNode(t, g, TypePicPrompt)
	_, ok := g.Resolve(pic.ID, PortShotText)
	assert.False(t, ok)

	g.Edges = append(g.Edges, Edge{ID: "e", Source: "gone", Target: pic.ID, SrcPort: PortShotText, DstPort: PortShotText})
	_, ok = g.Resolve(pic.ID, PortShotText)
	assert.False(t, ok)
}
