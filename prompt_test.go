package storygraph

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocs struct {
	texts map[string]string
	err   error
}

func (f *fakeDocs) ReadText(_ context.Context, files []FileRef) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	parts := make([]string, 0, len(files))
	for _, ref := range files {
		parts = append(parts, f.texts[ref.ServerName])
	}
	return strings.Join(parts, "\n"), nil
}

func TestBuildStoryboardRequest(t *testing.T) {
	g := NewGraph()
	script := mustNode(t, g, TypeScript)
	board := mustNode(t, g, TypeStoryboard)
	mustEdge(t, g, script, board, PortScript, PortScript)
	script.Data["script_files"] = []any{map[string]any{"name": "ep1.txt", "serverName": "s1.txt"}}
	board.Data["custom_prompt"] = "keep it short"

	b := &requestBuilder{
		graph:    g,
		settings: Settings{"llm_model": "gpt-4o-mini", "llm_key": "sk-project"},
		defaults: Settings{"llm_url": "http://llm.local/v1", "llm_model": "ignored"},
		docs:     &fakeDocs{texts: map[string]string{"s1.txt": "INT. HARBOUR - NIGHT"}},
	}
	req, err := b.build(context.Background(), board)
	require.NoError(t, err)
	require.NotNil(t, req.Text)
	assert.Nil(t, req.Image)

	assert.Equal(t, Endpoint{URL: "http://llm.local/v1", APIKey: "sk-project", Model: "gpt-4o-mini"}, req.Text.Endpoint)
	assert.Equal(t, defaultSystemPrompts[TypeStoryboard], req.Text.System)
	assert.Contains(t, req.Text.User, "[Script]\nINT. HARBOUR - NIGHT")
	assert.Contains(t, req.Text.User, "[Requirements]\nkeep it short")
	assert.InDelta(t, 0.7, req.Text.Temperature, 1e-9)
}

func TestBuildNodeOverridesSettings(t *testing.T) {
	g := NewGraph()
	pic := mustNode(t, g, TypePicPrompt)
	pic.Data["api_url"] = "http://node.local"
	pic.Data["model"] = "local-model"
	pic.Data["system_prompt"] = "be terse"
	pic.Data["shot_text"] = "a lone boat"

	b := &requestBuilder{graph: g, settings: Settings{"llm_url": "http://settings.local"}, defaults: Settings{}}
	req, err := b.build(context.Background(), pic)
	require.NoError(t, err)
	assert.Equal(t, "http://node.local", req.Text.Endpoint.URL)
	assert.Equal(t, "local-model", req.Text.Endpoint.Model)
	assert.Equal(t, "be terse", req.Text.System)
	assert.Contains(t, req.Text.User, "[Shot]\na lone boat")
}

func TestBuildVideoPromptRequest(t *testing.T) {
	g := NewGraph()
	shot := mustNode(t, g, TypeShotText)
	pic := mustNode(t, g, TypePicPrompt)
	vid := mustNode(t, g, TypeVideoPrompt)
	mustEdge(t, g, shot, vid, PortShotText, PortShotText)
	mustEdge(t, g, pic, vid, PortPicPrompts, PortPicPrompts)
	shot.Data["shot_text"] = "boat at dawn"
	pic.Output = strPtr("golden light")

	b := &requestBuilder{graph: g, settings: Settings{}, defaults: Settings{}}
	req, err := b.build(context.Background(), vid)
	require.NoError(t, err)
	assert.Contains(t, req.Text.User, "[Shot]\nboat at dawn")
	assert.Contains(t, req.Text.User, "[Image prompt]\ngolden light")
	assert.Contains(t, req.Text.User, defaultVideoNotes)
	assert.Equal(t, DefaultLLMURL, req.Text.Endpoint.URL)
	assert.Equal(t, DefaultLLMModel, req.Text.Endpoint.Model)
}

func TestBuildKeyImageComfyUI(t *testing.T) {
	g := NewGraph()
	pic := mustNode(t, g, TypePicPrompt)
	key := mustNode(t, g, TypeKeyImage)
	mustEdge(t, g, pic, key, PortPicPrompts, PortPicPrompts)
	pic.Output = strPtr(`{"shots":[{"shot_id":"1_1","positive_prompt":"a \"red\" door"},{"shot_id":"1_2","positive_prompt":"sea","negative_prompt":"people"}]}`)
	key.Data["shot_label"] = "1_2"

	b := &requestBuilder{graph: g, settings: Settings{"comfyui_url": "http://comfy:8188"}, defaults: Settings{}}
	req, err := b.build(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, req.Image)
	assert.Equal(t, ImageModeComfyUI, req.Image.Mode)
	assert.Equal(t, "http://comfy:8188", req.Image.Endpoint.URL)
	assert.Equal(t, "sea", req.Image.Prompt)

	var wf map[string]struct {
		Inputs map[string]any `json:"inputs"`
	}
	require.NoError(t, json.Unmarshal(req.Image.Workflow, &wf))
	assert.Equal(t, "sea", wf["6"].Inputs["text"])
	assert.Equal(t, "people", wf["7"].Inputs["text"])
}

func TestBuildKeyImageEscapesPrompt(t *testing.T) {
	g := NewGraph()
	key := mustNode(t, g, TypeKeyImage)
	key.Data["custom_prompt"] = `a "red" door`
	key.Data["workflow"] = `{"1":{"inputs":{"text":"{{positive_prompt}}","w":"{{width}}"}}}`
	key.Data["keypic_ratio"] = "9:16"

	b := &requestBuilder{graph: g, settings: Settings{}, defaults: Settings{}}
	req, err := b.build(context.Background(), key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"inputs":{"text":"a \"red\" door","w":"1080"}}}`, string(req.Image.Workflow))
}

func TestBuildKeyImageAPI(t *testing.T) {
	g := NewGraph()
	key := mustNode(t, g, TypeKeyImage)
	key.Data["keypic_gen_mode"] = ImageModeAPI
	key.Data["custom_prompt"] = "harbour at night"

	b := &requestBuilder{
		graph:    g,
		settings: Settings{"llm_key": "sk-1"},
		defaults: Settings{"image_model": "gpt-image-1"},
	}
	req, err := b.build(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, ImageModeAPI, req.Image.Mode)
	assert.Equal(t, "sk-1", req.Image.Endpoint.APIKey)
	assert.Equal(t, "gpt-image-1", req.Image.Endpoint.Model)
	assert.Equal(t, "1792x1024", req.Image.Size)
	assert.Equal(t, "harbour at night", req.Image.Prompt)
}

func TestBuildBadWorkflow(t *testing.T) {
	g := NewGraph()
	key := mustNode(t, g, TypeKeyImage)
	key.Data["workflow"] = "{not json"

	b := &requestBuilder{graph: g, settings: Settings{}, defaults: Settings{}}
	_, err := b.build(context.Background(), key)
	assert.ErrorIs(t, err, errWorkflowJSON)
}

func TestBuildVideo(t *testing.T) {
	g := NewGraph()
	key := mustNode(t, g, TypeKeyImage)
	vp := mustNode(t, g, TypeVideoPrompt)
	vid := mustNode(t, g, TypeVideo)
	mustEdge(t, g, key, vid, PortKeyframes, PortKeyframes)
	mustEdge(t, g, vp, vid, PortVideoPrompts, PortVideoPrompts)
	key.OutputImages = []string{"/api/file/k.png"}
	vp.Output = strPtr(`{"shots":[{"shot_id":"1_1","motion_prompt":"slow push in"}]}`)

	b := &requestBuilder{graph: g, settings: Settings{}, defaults: Settings{}}

	vid.Data["vid_gen_mode"] = VideoModeAPIImg
	_, err := b.build(context.Background(), vid)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	vid.Data["vid_api_url"] = "http://video.local/v1"
	vid.Data["vid_model"] = "kling"
	req, err := b.build(context.Background(), vid)
	require.NoError(t, err)
	require.NotNil(t, req.Video)
	assert.Equal(t, "slow push in", req.Video.Prompt)
	assert.Equal(t, "/api/file/k.png", req.Video.ImageURL)
	assert.Equal(t, "kling", req.Video.Endpoint.Model)

	vid.Data["vid_gen_mode"] = VideoModeAPIText
	req, err = b.build(context.Background(), vid)
	require.NoError(t, err)
	assert.Empty(t, req.Video.ImageURL)
}

func TestBuildDocReadError(t *testing.T) {
	g := NewGraph()
	board := mustNode(t, g, TypeStoryboard)
	board.Data["ref_docs"] = []any{map[string]any{"serverName": "r.docx"}}

	b := &requestBuilder{graph: g, settings: Settings{}, defaults: Settings{}, docs: &fakeDocs{err: errors.New("corrupt")}}
	_, err := b.build(context.Background(), board)
	assert.ErrorContains(t, err, "corrupt")
}

func TestBuildInputNode(t *testing.T) {
	g := NewGraph()
	script := mustNode(t, g, TypeScript)
	b := &requestBuilder{graph: g, settings: Settings{}, defaults: Settings{}}
	_, err := b.build(context.Background(), script)
	assert.ErrorIs(t, err, ErrNoGenerator)
}
