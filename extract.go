package storygraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// OutputKind classifies a node's text output.
type OutputKind int

const (
	// Freeform output carries no parseable structure.
	Freeform OutputKind = iota
	// Structured output parsed as JSON.
	Structured
)

// Provenance records where structured data was found in the text.
type Provenance int

const (
	FromNone Provenance = iota
	// FromFence means the JSON came out of a ``` fenced block.
	FromFence
	// FromWhole means the whole (trimmed) text parsed as JSON.
	FromWhole
)

// Output is a text output classified at the boundary.
type Output struct {
	Kind   OutputKind
	Source Provenance
	Text   string
	Raw    json.RawMessage
	Value  any
}

// Shot is one element of a "shots" list.
type Shot struct {
	ID     string
	Raw    json.RawMessage
	Fields map[string]any
}

var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ParseOutput classifies text. The first fenced block is preferred over the
// whole string; anything that does not parse as JSON is Freeform.
func ParseOutput(text string) Output {
	out := Output{Kind: Freeform, Text: text}
	if strings.TrimSpace(text) == "" {
		return out
	}

	candidate, source := text, FromWhole
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		candidate, source = m[1], FromFence
	}
	candidate = strings.TrimSpace(candidate)

	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return out
	}
	out.Kind = Structured
	out.Source = source
	out.Raw = json.RawMessage(candidate)
	out.Value = v
	return out
}

// Shots returns the elements of the top-level "shots" array. ok is false
// when the output is not structured or has no shots array.
func (o Output) Shots() ([]Shot, bool) {
	if o.Kind != Structured {
		return nil, false
	}
	var doc struct {
		Shots []json.RawMessage `json:"shots"`
	}
	if err := json.Unmarshal(o.Raw, &doc); err != nil || doc.Shots == nil {
		return nil, false
	}

	shots := make([]Shot, 0, len(doc.Shots))
	for _, raw := range doc.Shots {
		s := Shot{Raw: raw}
		if err := json.Unmarshal(raw, &s.Fields); err == nil {
			s.ID = scalarString(s.Fields["shot_id"])
		}
		shots = append(shots, s)
	}
	return shots, true
}

// FindShot returns the shot with the given id, else the first shot.
func FindShot(shots []Shot, id string) (Shot, bool) {
	for _, s := range shots {
		if s.ID == id {
			return s, true
		}
	}
	if len(shots) > 0 {
		return shots[0], true
	}
	return Shot{}, false
}

// Pretty returns the shot as indented JSON, keeping the source key order.
func (s Shot) Pretty() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, s.Raw, "", "  "); err != nil {
		return string(s.Raw)
	}
	return buf.String()
}

// Field returns a string field of the shot, or "".
func (s Shot) Field(key string) string {
	return scalarString(s.Fields[key])
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
