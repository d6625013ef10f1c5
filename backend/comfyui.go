package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/storygraph/log"
)

// Output lists ComfyUI reports files under, per kind of generation.
var (
	comfyImageKinds = []string{"images"}
	comfyVideoKinds = []string{"gifs", "videos"}
)

type comfyFile struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type comfyHistory struct {
	Outputs map[string]map[string]json.RawMessage `json:"outputs"`
}

// comfyRun queues a workflow, waits for it to appear in the history and
// caches every output file of the given kinds.
func (b *Backend) comfyRun(ctx context.Context, base string, workflow json.RawMessage, kinds []string, polls int, defExt string) ([]string, error) {
	if base == "" {
		return nil, ErrNoEndpoint
	}
	pid, err := b.comfySubmit(ctx, base, workflow)
	if err != nil {
		return nil, err
	}
	log.Infof("comfyui: queued prompt %s on %s", pid, base)

	for i := 0; i < polls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.pollInterval):
		}

		hist, ok, err := b.comfyHistory(ctx, base, pid)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		files := collectComfyFiles(hist, kinds)
		refs := make([]string, 0, len(files))
		for _, f := range files {
			ref, err := b.comfyDownload(ctx, base, f, defExt)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		return refs, nil
	}
	return nil, fmt.Errorf("%w: comfyui prompt %s after %d polls", ErrTimeout, pid, polls)
}

func (b *Backend) comfySubmit(ctx context.Context, base string, workflow json.RawMessage) (string, error) {
	body, err := json.Marshal(map[string]any{
		"prompt":    workflow,
		"client_id": uuid.NewString(),
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(base, "prompt"), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("backend: comfyui submit: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return "", err
	}

	var out struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: comfyui submit: %v", ErrBadResponse, err)
	}
	if out.PromptID == "" {
		return "", fmt.Errorf("%w: comfyui submit returned no prompt_id", ErrBadResponse)
	}
	return out.PromptID, nil
}

// comfyHistory reports ok == false while the prompt is still queued.
func (b *Backend) comfyHistory(ctx context.Context, base, pid string) (comfyHistory, bool, error) {
	data, err := b.fetch(ctx, joinURL(base, "history/"+url.PathEscape(pid)))
	if err != nil {
		return comfyHistory{}, false, err
	}
	var hist map[string]comfyHistory
	if err := json.Unmarshal(data, &hist); err != nil {
		return comfyHistory{}, false, fmt.Errorf("%w: comfyui history: %v", ErrBadResponse, err)
	}
	h, ok := hist[pid]
	return h, ok, nil
}

func (b *Backend) comfyDownload(ctx context.Context, base string, f comfyFile, defExt string) (string, error) {
	typ := f.Type
	if typ == "" {
		typ = "output"
	}
	q := url.Values{}
	q.Set("filename", f.Filename)
	q.Set("subfolder", f.Subfolder)
	q.Set("type", typ)

	data, err := b.fetch(ctx, joinURL(base, "view")+"?"+q.Encode())
	if err != nil {
		return "", err
	}
	return b.save(data, extOf(f.Filename, defExt))
}

// collectComfyFiles walks output nodes in id order. Output entries that are
// not file lists (text outputs and the like) are skipped.
func collectComfyFiles(h comfyHistory, kinds []string) []comfyFile {
	nodes := make([]string, 0, len(h.Outputs))
	for id := range h.Outputs {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	var files []comfyFile
	for _, id := range nodes {
		for _, kind := range kinds {
			raw, ok := h.Outputs[id][kind]
			if !ok {
				continue
			}
			var list []comfyFile
			if err := json.Unmarshal(raw, &list); err != nil {
				continue
			}
			for _, f := range list {
				if f.Filename != "" {
					files = append(files, f)
				}
			}
		}
	}
	return files
}
