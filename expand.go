package storygraph

// Layout of nodes created by expansion, relative to the parent.
const (
	columnStep = 280
	rowStep    = 180
)

// Expansion describes the nodes and edges an approval added.
// Warning is set when the expansion was skipped for a data problem; the
// approval itself still stands.
type Expansion struct {
	Nodes   []string `json:"nodes"`
	Edges   []string `json:"edges"`
	Warning string   `json:"warning,omitempty"`
}

func newExpansion() *Expansion {
	return &Expansion{Nodes: []string{}, Edges: []string{}}
}

const warnNoShots = "storyboard output has no parseable shots list; no shot nodes were created"

// expandStoryboard creates one done Shot_Text node per shot in the
// storyboard output. The shots are copied by value, so no edges are added.
func (g *Graph) expandStoryboard(parent *Node) *Expansion {
	x := newExpansion()
	shots, ok := ParseOutput(parent.OutputText()).Shots()
	if !ok || len(shots) == 0 {
		x.Warning = warnNoShots
		return x
	}

	for i, shot := range shots {
		n, _ := g.CreateNode(TypeShotText, Position{
			X: parent.X + columnStep,
			Y: parent.Y + float64(i)*rowStep,
		})
		text := shot.Pretty()
		n.Status = StatusDone
		n.Output = &text
		n.Data["shot_label"] = shot.ID
		n.Data["shot_text"] = text
		x.Nodes = append(x.Nodes, n.ID)
	}
	return x
}

// expandShotText creates the image-prompt node for a confirmed shot.
func (g *Graph) expandShotText(parent *Node) *Expansion {
	x := newExpansion()
	n := g.chainNode(parent, TypePicPrompt)
	x.Nodes = append(x.Nodes, n.ID)
	if e, ok := g.CreateEdge(parent.ID, n.ID, PortShotText, PortShotText); ok {
		x.Edges = append(x.Edges, e.ID)
	}
	return x
}

// expandPicPrompt creates the video-prompt node for an approved image
// prompt. The new node is fed both by the image prompt and, when the image
// prompt has one, by the shot text upstream of it.
func (g *Graph) expandPicPrompt(parent *Node) *Expansion {
	x := newExpansion()
	upstream := g.EdgesTo(parent.ID, PortShotText)

	n := g.chainNode(parent, TypeVideoPrompt)
	x.Nodes = append(x.Nodes, n.ID)
	if len(upstream) > 0 {
		if e, ok := g.CreateEdge(upstream[0].Source, n.ID, PortShotText, PortShotText); ok {
			x.Edges = append(x.Edges, e.ID)
		}
	}
	if e, ok := g.CreateEdge(parent.ID, n.ID, PortPicPrompts, PortPicPrompts); ok {
		x.Edges = append(x.Edges, e.ID)
	}
	return x
}

// chainNode creates an idle node of type t one column right of parent,
// carrying the parent's shot label.
func (g *Graph) chainNode(parent *Node, t NodeType) *Node {
	n, _ := g.CreateNode(t, Position{X: parent.X + columnStep, Y: parent.Y})
	n.Data["shot_label"] = parent.DataString("shot_label")
	return n
}
