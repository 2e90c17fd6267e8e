// Package replicate implements the polling-based prediction provider.
// A submit creates a prediction against a model endpoint and returns its
// id; status is observed later by fetching the prediction.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/infra"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/providers"
)

// ErrMissingAPIToken indicates that the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// Options configures the Replicate client.
type Options struct {
	APIToken       string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type predictionRequest struct {
	Input predictionInput `json:"input"`
}

// predictionInput is the flat input object the prediction API expects.
// The source media field is named start_image here; other providers name
// the same semantic value differently.
type predictionInput struct {
	Prompt        string `json:"prompt"`
	StartImage    string `json:"start_image,omitempty"`
	Duration      int    `json:"duration,omitempty"`
	AspectRatio   string `json:"aspect_ratio,omitempty"`
	GenerateAudio bool   `json:"generate_audio"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	Logs   string          `json:"logs"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIToken) == "" {
		return nil, ErrMissingAPIToken
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiToken:   strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Submit creates a prediction for the given model and returns its external id.
func (c *Client) Submit(ctx context.Context, spec providers.SubmitSpec) (*providers.ExternalJob, error) {
	payload := predictionRequest{
		Input: predictionInput{
			Prompt:        spec.Prompt,
			StartImage:    spec.SourceMediaURL,
			Duration:      intParam(spec.Parameters, "duration"),
			AspectRatio:   stringParam(spec.Parameters, "aspect_ratio"),
			GenerateAudio: boolParam(spec.Parameters, "generate_audio"),
		},
	}
	endpoint := fmt.Sprintf("%s/v1/models/%s/predictions", c.baseURL, spec.ModelRef)

	var decoded predictionResponse
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &decoded); err != nil {
		return nil, err
	}
	if decoded.ID == "" {
		return nil, fmt.Errorf("replicate: accept response without prediction id: %w", domain.ErrProviderRejected)
	}
	c.logger.Debug().
		Str("model", spec.ModelRef).
		Str("prediction_id", decoded.ID).
		Str("status", decoded.Status).
		Msg("replicate: prediction created")
	return &providers.ExternalJob{
		ExternalID: decoded.ID,
		Status:     mapStatus(decoded.Status),
	}, nil
}

// Fetch retrieves the current state of a prediction. Predictions live in
// a global id namespace, so the model ref is not needed here.
func (c *Client) Fetch(ctx context.Context, spec providers.FetchSpec) (*providers.ExternalStatus, error) {
	endpoint := fmt.Sprintf("%s/v1/predictions/%s", c.baseURL, spec.ExternalID)

	var decoded predictionResponse
	raw, err := c.doRaw(ctx, http.MethodGet, endpoint, nil, &decoded)
	if err != nil {
		return nil, err
	}
	return &providers.ExternalStatus{
		Status:    mapStatus(decoded.Status),
		OutputURL: providers.ExtractOutputURL(decoded.Output),
		ErrorText: errorText(decoded.Error),
		Raw:       raw,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	_, err := c.doRaw(ctx, method, endpoint, in, out)
	return err
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, in, out any) (json.RawMessage, error) {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("replicate: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: http request: %v: %w", err, domain.ErrProviderUnreachable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %v: %w", err, domain.ErrProviderUnreachable)
	}

	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
			return nil, fmt.Errorf("replicate: status %d: %s: %w", resp.StatusCode, detail.Detail, domain.ErrProviderRejected)
		}
		return nil, fmt.Errorf("replicate: status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(raw)), domain.ErrProviderRejected)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("replicate: decode response: %w", err)
	}
	return raw, nil
}

// mapStatus folds prediction statuses into the local lifecycle. Anything
// unrecognized counts as processing so the state machine never blocks.
func mapStatus(s string) domain.JobStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "starting", "queued":
		return domain.JobStatusQueued
	case "processing":
		return domain.JobStatusProcessing
	case "succeeded":
		return domain.JobStatusSucceeded
	case "failed", "canceled":
		return domain.JobStatusFailed
	default:
		return domain.JobStatusProcessing
	}
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func boolParam(params map[string]any, key string) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

var _ providers.Adapter = (*Client)(nil)
