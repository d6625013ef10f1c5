package storygraph

import (
	"context"
	"encoding/json"
)

// Image generation modes (data.keypic_gen_mode).
const (
	ImageModeComfyUI = "comfyui"
	ImageModeAPI     = "api"
)

// Video generation modes (data.vid_gen_mode).
const (
	VideoModeComfyUI = "comfyui"
	VideoModeAPIImg  = "api_img"
	VideoModeAPIText = "api_text"
)

// Endpoint is a resolved backend address with credentials.
type Endpoint struct {
	URL    string `json:"url"`
	APIKey string `json:"-"`
	Model  string `json:"model,omitempty"`
}

// Request is the assembled input of one generation. Exactly one of Text,
// Image and Video is set, according to the node type.
type Request struct {
	NodeID string        `json:"node_id"`
	Type   NodeType      `json:"type"`
	Text   *TextRequest  `json:"text,omitempty"`
	Image  *ImageRequest `json:"image,omitempty"`
	Video  *VideoRequest `json:"video,omitempty"`
}

// TextRequest is a chat completion with one system and one user message.
type TextRequest struct {
	Endpoint    Endpoint `json:"endpoint"`
	System      string   `json:"system"`
	User        string   `json:"user"`
	Temperature float64  `json:"temperature"`
}

// ImageRequest generates key frame images, through an images API or a
// ComfyUI workflow.
type ImageRequest struct {
	Mode     string          `json:"mode"`
	Endpoint Endpoint        `json:"endpoint"`
	Prompt   string          `json:"prompt"`
	Size     string          `json:"size,omitempty"`
	Workflow json.RawMessage `json:"workflow,omitempty"`
}

// VideoRequest generates a clip, through ComfyUI or a video API.
type VideoRequest struct {
	Mode     string          `json:"mode"`
	Endpoint Endpoint        `json:"endpoint"`
	Prompt   string          `json:"prompt"`
	ImageURL string          `json:"image_url,omitempty"`
	Workflow json.RawMessage `json:"workflow,omitempty"`
}

// Result is a successful generation.
type Result struct {
	Output *string  `json:"output,omitempty"`
	Images []string `json:"images,omitempty"`
	Videos []string `json:"videos,omitempty"`
}

// TextResult wraps text in a Result.
func TextResult(text string) *Result {
	return &Result{Output: &text}
}

// Generator runs one generation request against a backend.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req *Request) (*Result, error)

// Generate calls f(ctx, req).
func (f GeneratorFunc) Generate(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// DocReader extracts the text of uploaded documents.
type DocReader interface {
	ReadText(ctx context.Context, files []FileRef) (string, error)
}
