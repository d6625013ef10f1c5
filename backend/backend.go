// Package backend runs generation requests against the model services the
// pipeline talks to: OpenAI-compatible chat and image APIs, a ComfyUI
// server and a generic video generation API. Generated media is downloaded
// into the local media store.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/meikuraledutech/storygraph"
	"github.com/meikuraledutech/storygraph/log"
	"github.com/meikuraledutech/storygraph/media"
)

var (
	ErrTimeout     = errors.New("backend: generation timed out")
	ErrBadResponse = errors.New("backend: unexpected response")
	ErrNoEndpoint  = errors.New("backend: endpoint url is not set")
)

const (
	defaultPollInterval = time.Second
	defaultImagePolls   = 300
	defaultVideoPolls   = 600
	maxErrorBody        = 512
)

// Backend implements storygraph.Generator.
type Backend struct {
	media        *media.Store
	client       *http.Client
	pollInterval time.Duration
	imagePolls   int
	videoPolls   int
}

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient sets the client used for every outgoing call.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.client = c }
}

// WithPollInterval sets the delay between ComfyUI history polls.
func WithPollInterval(d time.Duration) Option {
	return func(b *Backend) { b.pollInterval = d }
}

// WithPollBudget sets how many times ComfyUI is polled for images and for
// videos before giving up.
func WithPollBudget(image, video int) Option {
	return func(b *Backend) {
		b.imagePolls = image
		b.videoPolls = video
	}
}

// New returns a Backend that saves generated media into m.
func New(m *media.Store, opts ...Option) *Backend {
	b := &Backend{
		media:        m,
		client:       &http.Client{Timeout: 10 * time.Minute},
		pollInterval: defaultPollInterval,
		imagePolls:   defaultImagePolls,
		videoPolls:   defaultVideoPolls,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Generate runs req and returns its result.
func (b *Backend) Generate(ctx context.Context, req *storygraph.Request) (*storygraph.Result, error) {
	start := time.Now()
	res, err := b.generate(ctx, req)
	if err != nil {
		log.Debugf("backend: %s (%s) failed after %s: %v", req.NodeID, req.Type, time.Since(start), err)
		return nil, err
	}
	log.Debugf("backend: %s (%s) finished in %s", req.NodeID, req.Type, time.Since(start))
	return res, nil
}

func (b *Backend) generate(ctx context.Context, req *storygraph.Request) (*storygraph.Result, error) {
	switch {
	case req.Text != nil:
		text, err := b.chat(ctx, req.Text)
		if err != nil {
			return nil, err
		}
		return storygraph.TextResult(text), nil

	case req.Image != nil:
		var images []string
		var err error
		if req.Image.Mode == storygraph.ImageModeAPI {
			images, err = b.generateImages(ctx, req.Image)
		} else {
			images, err = b.comfyRun(ctx, req.Image.Endpoint.URL, req.Image.Workflow, comfyImageKinds, b.imagePolls, ".png")
		}
		if err != nil {
			return nil, err
		}
		return &storygraph.Result{Images: images}, nil

	case req.Video != nil:
		var videos []string
		var err error
		if req.Video.Mode == storygraph.VideoModeComfyUI {
			videos, err = b.comfyRun(ctx, req.Video.Endpoint.URL, req.Video.Workflow, comfyVideoKinds, b.videoPolls, ".mp4")
		} else {
			videos, err = b.generateVideo(ctx, req.Video)
		}
		if err != nil {
			return nil, err
		}
		return &storygraph.Result{Videos: videos}, nil
	}
	return nil, fmt.Errorf("%w: request for %s carries no payload", storygraph.ErrInvalidArgument, req.NodeID)
}

// fetch downloads url. Non-2xx answers are errors.
func (b *Backend) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(req, resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// save stores downloaded media and returns its served reference.
func (b *Backend) save(data []byte, ext string) (string, error) {
	name, err := b.media.Save(data, ext)
	if err != nil {
		return "", err
	}
	return media.URL(name), nil
}

func checkStatus(req *http.Request, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: %s %s: %d %s", ErrBadResponse, req.Method, req.URL.Redacted(),
		resp.StatusCode, strings.TrimSpace(string(body)))
}

func joinURL(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

// extOf returns the extension of a file name, or def when it has none.
func extOf(name, def string) string {
	if ext := path.Ext(name); ext != "" {
		return ext
	}
	return def
}
