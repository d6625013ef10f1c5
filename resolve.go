package storygraph

// Payload is what flows on the wire into an input port.
type Payload struct {
	Port     Port      `json:"port"`
	SourceID string    `json:"source_id"`
	Text     string    `json:"text,omitempty"`
	Files    []FileRef `json:"files,omitempty"`
	Images   []string  `json:"images,omitempty"`
}

// Resolve returns the payload feeding nodeID's input port.
//
// The first edge into the port wins. ok is false when no edge feeds the
// port or its source node no longer exists; callers then fall back to the
// node's own data.
func (g *Graph) Resolve(nodeID string, port Port) (Payload, bool) {
	var edge *Edge
	for i := range g.Edges {
		if g.Edges[i].Target == nodeID && g.Edges[i].DstPort == port {
			edge = &g.Edges[i]
			break
		}
	}
	if edge == nil {
		return Payload{}, false
	}
	src, ok := g.Nodes[edge.Source]
	if !ok {
		return Payload{}, false
	}

	p := Payload{Port: port, SourceID: src.ID}
	switch port {
	case PortCharacters:
		p.Files = src.Files("characters")
	case PortEnvImage:
		p.Files = src.Files("env_images")
	case PortScript:
		p.Files = src.Files("script_files")
	case PortShotText:
		if text := src.DataString("shot_text"); text != "" {
			p.Text = text
		} else {
			p.Text = src.OutputText()
		}
	case PortKeyframes:
		p.Images = append([]string{}, src.OutputImages...)
		if i := src.DataInt("selected_image", 0); i >= 0 && i < len(src.OutputImages) {
			p.Text = src.OutputImages[i]
		}
	default:
		p.Text = src.OutputText()
	}
	return p, true
}
