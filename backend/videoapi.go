package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/meikuraledutech/storygraph"
)

type videoRequest struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url,omitempty"`
}

// videoResponse accepts both {"data":[{"url":...}]} and {"url":...}.
type videoResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	URL string `json:"url"`
}

func (r videoResponse) videoURL() string {
	if len(r.Data) > 0 {
		return r.Data[0].URL
	}
	return r.URL
}

// generateVideo calls POST {url}/videos/generations and caches the clip it
// points to. A response without a clip url yields no videos.
func (b *Backend) generateVideo(ctx context.Context, req *storygraph.VideoRequest) ([]string, error) {
	if req.Endpoint.URL == "" {
		return nil, ErrNoEndpoint
	}
	payload := videoRequest{Model: req.Endpoint.Model, Prompt: req.Prompt}
	if req.Mode == storygraph.VideoModeAPIImg {
		payload.ImageURL = req.ImageURL
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(req.Endpoint.URL, "videos/generations"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Endpoint.APIKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend: video generation: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(httpReq, resp); err != nil {
		return nil, err
	}

	var out videoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: video generation: %v", ErrBadResponse, err)
	}
	clip := out.videoURL()
	if clip == "" {
		return []string{}, nil
	}
	data, err := b.fetch(ctx, clip)
	if err != nil {
		return nil, err
	}
	ref, err := b.save(data, ".mp4")
	if err != nil {
		return nil, err
	}
	return []string{ref}, nil
}
