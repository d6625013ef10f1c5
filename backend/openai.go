package backend

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/meikuraledutech/storygraph"
)

func (b *Backend) openaiClient(ep storygraph.Endpoint) (openai.Client, error) {
	if ep.URL == "" {
		return openai.Client{}, ErrNoEndpoint
	}
	opts := []openaiopt.RequestOption{
		openaiopt.WithBaseURL(ep.URL),
		openaiopt.WithHTTPClient(b.client),
		openaiopt.WithMaxRetries(0),
	}
	if ep.APIKey != "" {
		opts = append(opts, openaiopt.WithAPIKey(ep.APIKey))
	}
	return openai.NewClient(opts...), nil
}

// chat runs a chat completion and returns the first choice's content.
func (b *Backend) chat(ctx context.Context, req *storygraph.TextRequest) (string, error) {
	client, err := b.openaiClient(req.Endpoint)
	if err != nil {
		return "", err
	}
	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Endpoint.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("backend: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion has no choices", ErrBadResponse)
	}
	return completion.Choices[0].Message.Content, nil
}

// generateImages calls an images API and caches every returned image.
func (b *Backend) generateImages(ctx context.Context, req *storygraph.ImageRequest) ([]string, error) {
	client, err := b.openaiClient(req.Endpoint)
	if err != nil {
		return nil, err
	}
	params := openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(req.Endpoint.Model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}
	if req.Size != "" {
		params.Size = openai.ImageGenerateParamsSize(req.Size)
	}
	resp, err := client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("backend: image generation: %w", err)
	}

	images := make([]string, 0, len(resp.Data))
	for i, img := range resp.Data {
		var data []byte
		switch {
		case img.B64JSON != "":
			data, err = base64.StdEncoding.DecodeString(img.B64JSON)
		case img.URL != "":
			data, err = b.fetch(ctx, img.URL)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("backend: image %d: %w", i, err)
		}
		ref, err := b.save(data, ".png")
		if err != nil {
			return nil, err
		}
		images = append(images, ref)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: image generation returned no images", ErrBadResponse)
	}
	return images, nil
}
