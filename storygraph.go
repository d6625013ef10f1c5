// Package storygraph is the graph engine behind the film pipeline editor:
// typed nodes joined by named ports, a five-state node lifecycle, downstream
// invalidation and the auto-chaining rules that grow the graph as stages
// are approved.
package storygraph

import (
	"encoding/json"
	"fmt"
)

// NodeType is the kind of a node. It selects the port schema and the
// generation step that applies to the node.
type NodeType string

// Node kinds. The string values are the persisted type tags.
const (
	TypeCharacter   NodeType = "Input_Character"
	TypeEnv         NodeType = "Input_Env"
	TypeScript      NodeType = "Input_Script"
	TypeStoryboard  NodeType = "Output_Storyboard"
	TypeShotText    NodeType = "Shot_Text"
	TypePicPrompt   NodeType = "Output_Pic_ShotPrompt"
	TypeVideoPrompt NodeType = "Output_Video_ShotPrompt"
	TypeKeyImage    NodeType = "Output_KeyPic"
	TypeVideo       NodeType = "Output_Video"
)

// Status is a node's lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusApproved Status = "approved"
	StatusError    Status = "error"
)

// Port names the payload carried by an edge.
type Port string

const (
	PortCharacters   Port = "characters"
	PortEnvImage     Port = "env_image"
	PortScript       Port = "script"
	PortStoryboard   Port = "storyboard"
	PortShotText     Port = "shot_text"
	PortPicPrompts   Port = "pic_prompts"
	PortVideoPrompts Port = "video_prompts"
	PortKeyframes    Port = "keyframes"
	PortVideo        Port = "video"
)

// Position is where a node sits on the canvas. The engine only stores it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a unit of pipeline work.
// Data holds node configuration (prompts, API overrides, uploaded files,
// shot_label, shot_text, selected_image); Output and the media slices hold
// generation results.
type Node struct {
	ID           string         `json:"id"`
	Type         NodeType       `json:"type"`
	X            float64        `json:"x"`
	Y            float64        `json:"y"`
	Status       Status         `json:"status"`
	Data         map[string]any `json:"data"`
	Output       *string        `json:"output"`
	OutputImages []string       `json:"output_images"`
	OutputVideos []string       `json:"output_videos"`
	ErrorLog     string         `json:"error_log"`
}

// Edge routes the srcPort output of Source into the dstPort input of Target.
type Edge struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	SrcPort Port   `json:"srcPort"`
	DstPort Port   `json:"dstPort"`
}

// Graph is the set of nodes keyed by id plus the edges in insertion order.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges []Edge           `json:"edges"`
}

// Settings are the project-wide generation settings (llm_url, llm_key,
// llm_model, comfyui_url, ...).
type Settings map[string]any

// String returns the setting as a string, or "" when unset or not a string.
func (s Settings) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Project is the persisted document: the graph plus its settings.
type Project struct {
	Graph
	Settings Settings `json:"settings"`
}

// FileRef is an uploaded file as stored in node data.
type FileRef struct {
	Name       string `json:"name"`
	ServerName string `json:"serverName"`
	URL        string `json:"url"`
}

// NewProject returns an empty project.
func NewProject() *Project {
	return &Project{Graph: *NewGraph(), Settings: Settings{}}
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	return &Project{
		Graph:    *p.Graph.Clone(),
		Settings: Settings(cloneMap(p.Settings)),
	}
}

// normalize fills the zero values a decoded document may carry.
func (p *Project) normalize() {
	if p.Nodes == nil {
		p.Nodes = make(map[string]*Node)
	}
	if p.Edges == nil {
		p.Edges = []Edge{}
	}
	if p.Settings == nil {
		p.Settings = Settings{}
	}
	for id, n := range p.Nodes {
		if n == nil {
			delete(p.Nodes, id)
			continue
		}
		n.ID = id
		if n.Status == "" {
			n.Status = StatusIdle
		}
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		if n.OutputImages == nil {
			n.OutputImages = []string{}
		}
		if n.OutputVideos == nil {
			n.OutputVideos = []string{}
		}
	}
}

// validate rejects nodes of an unknown type or status.
func (p *Project) validate() error {
	for id, n := range p.Nodes {
		if !n.Type.Valid() {
			return fmt.Errorf("%w: node %s: %q", ErrUnknownNodeType, id, n.Type)
		}
		if _, ok := transitions[n.Status]; !ok {
			return fmt.Errorf("%w: node %s: unknown status %q", ErrInvalidArgument, id, n.Status)
		}
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Data = cloneMap(n.Data)
	if n.Output != nil {
		out := *n.Output
		c.Output = &out
	}
	c.OutputImages = append([]string{}, n.OutputImages...)
	c.OutputVideos = append([]string{}, n.OutputVideos...)
	return &c
}

// Position returns the node's canvas position.
func (n *Node) Position() Position {
	return Position{X: n.X, Y: n.Y}
}

// OutputText returns the output or "" when there is none.
func (n *Node) OutputText() string {
	if n.Output == nil {
		return ""
	}
	return *n.Output
}

// DataString returns data[key] as a string. Non-string values yield "".
func (n *Node) DataString(key string) string {
	v, _ := n.Data[key].(string)
	return v
}

// DataInt returns data[key] as an int, accepting JSON numbers.
func (n *Node) DataInt(key string, def int) int {
	switch v := n.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// Files decodes data[key] as a list of uploaded file references.
// Malformed entries are skipped.
func (n *Node) Files(key string) []FileRef {
	switch v := n.Data[key].(type) {
	case []FileRef:
		return append([]FileRef{}, v...)
	case []any:
		refs := make([]FileRef, 0, len(v))
		for _, item := range v {
			raw, err := json.Marshal(item)
			if err != nil {
				continue
			}
			var ref FileRef
			if err := json.Unmarshal(raw, &ref); err != nil {
				continue
			}
			refs = append(refs, ref)
		}
		return refs
	}
	return []FileRef{}
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s, %s)", n.ID, n.Type, n.Status)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string{}, t...)
	case []FileRef:
		return append([]FileRef{}, t...)
	default:
		return v
	}
}
