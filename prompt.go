package storygraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Built-in fallbacks used when neither the node, the project settings nor
// the configured defaults name a value.
const (
	DefaultLLMURL     = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o"
	DefaultImageModel = "dall-e-3"
	DefaultComfyUIURL = "http://127.0.0.1:8188"

	defaultShotLabel   = "1_1"
	defaultTemperature = 0.7
	defaultVideoNotes  = "16:9, 24fps"
	defaultPositive    = "cinematic shot"
	defaultNegative    = "blurry, low quality"
)

var defaultSystemPrompts = map[NodeType]string{
	TypeStoryboard: `You are a professional film storyboard artist. Turn the script into a detailed shot list.
Answer with JSON only, in this shape:
{"shots":[{"shot_id":"1_1","scene":"scene description","action":"action","camera":"camera movement","dialogue":"dialogue","duration":"seconds"}]}`,

	TypePicPrompt: `You are an expert prompt engineer for image generation. Write image prompts for each shot.
Answer with JSON only, in this shape:
{"shots":[{"shot_id":"1_1","positive_prompt":"english positive prompt","negative_prompt":"english negative prompt","style":"style"}]}`,

	TypeVideoPrompt: `You are an expert prompt engineer for image-to-video generation. Using the shot and its image prompt, write the motion prompt.
Answer with JSON only, in this shape:
{"shots":[{"shot_id":"1_1","motion_prompt":"english motion prompt","camera_motion":"camera movement","aspect_ratio":"16:9","fps":24}]}`,
}

// defaultTxt2ImgWorkflow is a minimal ComfyUI text-to-image graph. Users
// normally replace it with their own workflow in data.workflow.
const defaultTxt2ImgWorkflow = `{
  "3": {"class_type": "KSampler", "inputs": {"seed": 42, "steps": 20, "cfg": 7, "sampler_name": "euler", "scheduler": "normal", "denoise": 1, "model": ["4", 0], "positive": ["6", 0], "negative": ["7", 0], "latent_image": ["5", 0]}},
  "4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "v1-5-pruned-emaonly.ckpt"}},
  "5": {"class_type": "EmptyLatentImage", "inputs": {"width": 512, "height": 512, "batch_size": 1}},
  "6": {"class_type": "CLIPTextEncode", "inputs": {"text": "{{positive_prompt}}", "clip": ["4", 1]}},
  "7": {"class_type": "CLIPTextEncode", "inputs": {"text": "{{negative_prompt}}", "clip": ["4", 1]}},
  "8": {"class_type": "VAEDecode", "inputs": {"samples": ["3", 0], "vae": ["4", 2]}},
  "9": {"class_type": "SaveImage", "inputs": {"filename_prefix": "film_studio", "images": ["8", 0]}}
}`

const defaultImg2VidWorkflow = `{"_comment": "replace with your ComfyUI image-to-video workflow"}`

var errWorkflowJSON = errors.New("workflow is not valid JSON")

// requestBuilder assembles generation requests from resolved ports, node
// data, project settings and configured defaults, in that order of
// precedence for endpoint values.
type requestBuilder struct {
	graph    *Graph
	settings Settings
	defaults Settings
	docs     DocReader
}

func (b *requestBuilder) build(ctx context.Context, n *Node) (*Request, error) {
	req := &Request{NodeID: n.ID, Type: n.Type}
	var err error
	switch n.Type {
	case TypeStoryboard:
		req.Text, err = b.storyboard(ctx, n)
	case TypePicPrompt:
		req.Text, err = b.picPrompt(ctx, n)
	case TypeVideoPrompt:
		req.Text, err = b.videoPrompt(ctx, n)
	case TypeKeyImage:
		req.Image, err = b.keyImage(n)
	case TypeVideo:
		req.Video, err = b.video(n)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoGenerator, n.Type)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (b *requestBuilder) storyboard(ctx context.Context, n *Node) (*TextRequest, error) {
	files := n.Files("script_files")
	if p, ok := b.graph.Resolve(n.ID, PortScript); ok {
		files = p.Files
	}
	script, err := b.readDocs(ctx, files)
	if err != nil {
		return nil, err
	}
	refs, err := b.readDocs(ctx, n.Files("ref_docs"))
	if err != nil {
		return nil, err
	}
	user := section("Script", script) + section("Storyboard reference", refs) +
		section("Requirements", n.DataString("custom_prompt"))
	return b.text(n, user), nil
}

func (b *requestBuilder) picPrompt(ctx context.Context, n *Node) (*TextRequest, error) {
	shot := b.text1(n, PortShotText)
	if shot == "" {
		shot = n.DataString("shot_text")
	}
	refs, err := b.readDocs(ctx, n.Files("ref_docs"))
	if err != nil {
		return nil, err
	}
	user := section("Shot", shot) + section("Reference", refs) +
		section("Requirements", n.DataString("custom_prompt"))
	return b.text(n, user), nil
}

func (b *requestBuilder) videoPrompt(ctx context.Context, n *Node) (*TextRequest, error) {
	refs, err := b.readDocs(ctx, n.Files("ref_docs"))
	if err != nil {
		return nil, err
	}
	notes := firstNonEmpty(n.DataString("custom_prompt"), defaultVideoNotes)
	user := section("Shot", b.text1(n, PortShotText)) +
		section("Image prompt", b.text1(n, PortPicPrompts)) +
		section("Reference", refs) +
		section("Aspect ratio / frame rate / notes", notes)
	return b.text(n, user), nil
}

func (b *requestBuilder) keyImage(n *Node) (*ImageRequest, error) {
	shots, _ := ParseOutput(b.text1(n, PortPicPrompts)).Shots()
	shot, _ := FindShot(shots, firstNonEmpty(n.DataString("shot_label"), defaultShotLabel))
	positive := firstNonEmpty(shot.Field("positive_prompt"), n.DataString("custom_prompt"), defaultPositive)
	negative := firstNonEmpty(shot.Field("negative_prompt"), defaultNegative)

	apiSize, width, height := "1792x1024", "1920", "1080"
	if n.DataString("keypic_ratio") == "9:16" {
		apiSize, width, height = "1024x1792", "1080", "1920"
	}

	if firstNonEmpty(n.DataString("keypic_gen_mode"), ImageModeComfyUI) == ImageModeAPI {
		return &ImageRequest{
			Mode: ImageModeAPI,
			Endpoint: Endpoint{
				URL:    b.lookup(n, "img_api_url", "llm_url", DefaultLLMURL),
				APIKey: b.lookup(n, "img_api_key", "llm_key", ""),
				Model:  firstNonEmpty(n.DataString("img_model"), b.defaults.String("image_model"), DefaultImageModel),
			},
			Prompt: positive,
			Size:   firstNonEmpty(n.DataString("img_size"), apiSize),
		}, nil
	}

	wf, err := renderWorkflow(n.Data["workflow"], defaultTxt2ImgWorkflow, map[string]string{
		"positive_prompt": positive,
		"negative_prompt": negative,
		"width":           width,
		"height":          height,
	})
	if err != nil {
		return nil, err
	}
	return &ImageRequest{
		Mode:     ImageModeComfyUI,
		Endpoint: Endpoint{URL: b.lookup(n, "comfyui_url", "comfyui_url", DefaultComfyUIURL)},
		Prompt:   positive,
		Workflow: wf,
	}, nil
}

func (b *requestBuilder) video(n *Node) (*VideoRequest, error) {
	prompts := b.text1(n, PortVideoPrompts)
	motion := prompts
	if shots, ok := ParseOutput(prompts).Shots(); ok {
		shot, _ := FindShot(shots, firstNonEmpty(n.DataString("shot_label"), defaultShotLabel))
		motion = firstNonEmpty(shot.Field("motion_prompt"), prompts)
	}
	image := b.text1(n, PortKeyframes)

	mode := firstNonEmpty(n.DataString("vid_gen_mode"), VideoModeComfyUI)
	switch mode {
	case VideoModeAPIImg, VideoModeAPIText:
		url := n.DataString("vid_api_url")
		if url == "" {
			return nil, fmt.Errorf("%w: video api url is not set", ErrInvalidArgument)
		}
		req := &VideoRequest{
			Mode: mode,
			Endpoint: Endpoint{
				URL:    url,
				APIKey: b.lookup(n, "vid_api_key", "llm_key", ""),
				Model:  n.DataString("vid_model"),
			},
			Prompt: motion,
		}
		if mode == VideoModeAPIImg {
			req.ImageURL = image
		}
		return req, nil
	default:
		wf, err := renderWorkflow(n.Data["workflow"], defaultImg2VidWorkflow, map[string]string{
			"motion_prompt": motion,
			"image_url":     image,
		})
		if err != nil {
			return nil, err
		}
		return &VideoRequest{
			Mode:     VideoModeComfyUI,
			Endpoint: Endpoint{URL: b.lookup(n, "comfyui_url", "comfyui_url", DefaultComfyUIURL)},
			Prompt:   motion,
			ImageURL: image,
			Workflow: wf,
		}, nil
	}
}

func (b *requestBuilder) text(n *Node, user string) *TextRequest {
	return &TextRequest{
		Endpoint: Endpoint{
			URL:    b.lookup(n, "api_url", "llm_url", DefaultLLMURL),
			APIKey: b.lookup(n, "api_key", "llm_key", ""),
			Model:  b.lookup(n, "model", "llm_model", DefaultLLMModel),
		},
		System:      firstNonEmpty(n.DataString("system_prompt"), defaultSystemPrompts[n.Type]),
		User:        user,
		Temperature: defaultTemperature,
	}
}

// text1 returns the text payload of port, or "" when nothing feeds it.
func (b *requestBuilder) text1(n *Node, port Port) string {
	p, _ := b.graph.Resolve(n.ID, port)
	return p.Text
}

// lookup resolves a value through node data, project settings, configured
// defaults and finally def.
func (b *requestBuilder) lookup(n *Node, dataKey, settingsKey, def string) string {
	return firstNonEmpty(
		n.DataString(dataKey),
		b.settings.String(settingsKey),
		b.defaults.String(settingsKey),
		def,
	)
}

func (b *requestBuilder) readDocs(ctx context.Context, files []FileRef) (string, error) {
	if len(files) == 0 || b.docs == nil {
		return "", nil
	}
	text, err := b.docs.ReadText(ctx, files)
	if err != nil {
		return "", fmt.Errorf("read documents: %w", err)
	}
	return text, nil
}

// renderWorkflow fills {{name}} placeholders in a ComfyUI workflow. Values
// are JSON-escaped so they stay valid inside string literals.
func renderWorkflow(custom any, def string, vars map[string]string) (json.RawMessage, error) {
	tmpl := def
	switch v := custom.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			tmpl = v
		}
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errWorkflowJSON
		}
		tmpl = string(raw)
	}

	for name, val := range vars {
		quoted, _ := json.Marshal(val)
		tmpl = strings.ReplaceAll(tmpl, "{{"+name+"}}", string(quoted[1:len(quoted)-1]))
	}
	if !json.Valid([]byte(tmpl)) {
		return nil, errWorkflowJSON
	}
	return json.RawMessage(tmpl), nil
}

func section(title, body string) string {
	return fmt.Sprintf("[%s]\n%s\n\n", title, body)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
