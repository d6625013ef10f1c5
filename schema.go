package storygraph

import "slices"

// PortSchema lists a node type's input and output ports in display order.
type PortSchema struct {
	Inputs  []Port `json:"in"`
	Outputs []Port `json:"out"`
}

// nodeTypes is the closed set of node kinds in palette order.
var nodeTypes = []NodeType{
	TypeCharacter,
	TypeEnv,
	TypeScript,
	TypeStoryboard,
	TypeShotText,
	TypePicPrompt,
	TypeVideoPrompt,
	TypeKeyImage,
	TypeVideo,
}

var schemas = map[NodeType]PortSchema{
	TypeCharacter:   {Outputs: []Port{PortCharacters}},
	TypeEnv:         {Outputs: []Port{PortEnvImage}},
	TypeScript:      {Outputs: []Port{PortScript}},
	TypeStoryboard:  {Inputs: []Port{PortScript}, Outputs: []Port{PortStoryboard}},
	TypeShotText:    {Outputs: []Port{PortShotText}},
	TypePicPrompt:   {Inputs: []Port{PortShotText}, Outputs: []Port{PortPicPrompts}},
	TypeVideoPrompt: {Inputs: []Port{PortShotText, PortPicPrompts}, Outputs: []Port{PortVideoPrompts}},
	TypeKeyImage:    {Inputs: []Port{PortCharacters, PortPicPrompts}, Outputs: []Port{PortKeyframes}},
	TypeVideo:       {Inputs: []Port{PortKeyframes, PortVideoPrompts}, Outputs: []Port{PortVideo}},
}

// NodeTypes returns every node kind.
func NodeTypes() []NodeType {
	return slices.Clone(nodeTypes)
}

// SchemaOf returns the port schema of t.
func SchemaOf(t NodeType) (PortSchema, bool) {
	s, ok := schemas[t]
	return s, ok
}

// Valid reports whether t is a known node kind.
func (t NodeType) Valid() bool {
	_, ok := schemas[t]
	return ok
}

// IsInput reports whether t is one of the upload-only input kinds.
func (t NodeType) IsInput() bool {
	return t == TypeCharacter || t == TypeEnv || t == TypeScript
}

// HasInput reports whether p is one of the schema's input ports.
func (s PortSchema) HasInput(p Port) bool { return slices.Contains(s.Inputs, p) }

// HasOutput reports whether p is one of the schema's output ports.
func (s PortSchema) HasOutput(p Port) bool { return slices.Contains(s.Outputs, p) }
