// Package trainrt is the HTTP client for the external training runtime
// that owns all learned-parameter math: model construction, forward passes,
// backpropagation, the optimizer, and state-dict serialization. This repo
// only ships batches in and checkpoints out.
package trainrt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/w-garcia/nextvlad-go/internal/feature"
)

// Options configures a runtime client.
type Options struct {
	// BaseURL of the runtime service, e.g. "http://localhost".
	BaseURL string
	// Port the runtime listens on.
	Port int
	// Logger for request-level debug logging. Optional.
	Logger *slog.Logger
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// Client talks to one training runtime instance.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ModelSpec describes the NeXtVLAD classifier the runtime should build.
// The learning-rate schedule is owned by the runtime.
type ModelSpec struct {
	Arch         string  `json:"arch"`
	NumClasses   int     `json:"num_classes"`
	MaxFrames    int     `json:"max_frames"`
	FeatureDim   int     `json:"feature_dim"`
	LearningRate float64 `json:"lr"`
	LRStep       int     `json:"lr_step"`
}

// NewClient builds a runtime client from opts.
func NewClient(opts *Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	baseURL := opts.BaseURL
	if opts.Port != 0 {
		baseURL = fmt.Sprintf("%s:%d", opts.BaseURL, opts.Port)
	}
	return &Client{baseURL: baseURL, http: httpClient, logger: logger}
}

// Health probes the runtime before a run so a missing service fails fast
// instead of mid-epoch.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("trainrt: runtime unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trainrt: runtime health check returned %s", resp.Status)
	}
	return nil
}

// CreateModel asks the runtime to build a model and returns its id.
func (c *Client) CreateModel(ctx context.Context, spec ModelSpec) (string, error) {
	var out struct {
		ModelID string `json:"model_id"`
	}
	if err := c.postJSON(ctx, "/api/models", spec, &out); err != nil {
		return "", err
	}
	if out.ModelID == "" {
		return "", fmt.Errorf("trainrt: runtime returned empty model id")
	}
	c.logger.Debug("created runtime model", "model_id", out.ModelID, "arch", spec.Arch)
	return out.ModelID, nil
}

type stepRequest struct {
	Features wireTensor  `json:"features"`
	Mask     wireTensor  `json:"mask"`
	Labels   *wireTensor `json:"labels,omitempty"`
}

// TrainStep runs one optimization step (forward, BCE loss, backward,
// optimizer step) on a batch and returns the loss.
func (c *Client) TrainStep(ctx context.Context, modelID string, features, mask, labels *feature.Tensor) (float64, error) {
	wl := toWire(labels)
	req := stepRequest{Features: toWire(features), Mask: toWire(mask), Labels: &wl}
	var out struct {
		Loss float64 `json:"loss"`
	}
	if err := c.postJSON(ctx, "/api/models/"+modelID+"/train", req, &out); err != nil {
		return 0, err
	}
	return out.Loss, nil
}

// Forward runs inference on a batch and returns per-video class
// probabilities, shaped [B, NumClasses].
func (c *Client) Forward(ctx context.Context, modelID string, features, mask *feature.Tensor) (*feature.Tensor, error) {
	req := stepRequest{Features: toWire(features), Mask: toWire(mask)}
	var out struct {
		Outputs wireTensor `json:"outputs"`
	}
	if err := c.postJSON(ctx, "/api/models/"+modelID+"/forward", req, &out); err != nil {
		return nil, err
	}
	return fromWire(out.Outputs)
}

// ExportState fetches the runtime's serialized state dict. The bytes are
// opaque to this repo; the trainer only names and writes the file.
func (c *Client) ExportState(ctx context.Context, modelID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/models/"+modelID+"/state", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trainrt: exporting state: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trainrt: state export returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("trainrt: POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("trainrt: POST %s returned %s: %s", path, resp.Status, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
