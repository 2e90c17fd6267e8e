// Package fal implements the synchronous-submit request provider. A
// submit posts the job body to the model endpoint and gets a request id
// back immediately; status is observed through the queue API.
package fal

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

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// Options configures the fal client.
type Options struct {
	APIKey         string
	BaseURL        string
	QueueBaseURL   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the fal run and queue APIs.
type Client struct {
	apiKey       string
	baseURL      string
	queueBaseURL string
	httpClient   *http.Client
	logger       *infra.Logger
}

// submitRequest is the fal body. The source media field is named
// video_url here, unlike the prediction API's start_image.
type submitRequest struct {
	Prompt            string `json:"prompt"`
	VideoURL          string `json:"video_url,omitempty"`
	KeepOriginalSound bool   `json:"keep_original_sound"`
}

type submitResponse struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Video     json.RawMessage `json:"video"`
	Detail    json.RawMessage `json:"detail"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type resultResponse struct {
	Video  json.RawMessage `json:"video"`
	Output json.RawMessage `json:"output"`
	URL    string          `json:"url"`
	Error  string          `json:"error"`
	Detail string          `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
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
		baseURL = "https://fal.run"
	}
	queueBaseURL := strings.TrimRight(opts.QueueBaseURL, "/")
	if queueBaseURL == "" {
		queueBaseURL = "https://queue.fal.run"
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
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		queueBaseURL: queueBaseURL,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Submit posts the job to the model endpoint and returns the request id.
func (c *Client) Submit(ctx context.Context, spec providers.SubmitSpec) (*providers.ExternalJob, error) {
	payload := submitRequest{
		Prompt:            spec.Prompt,
		VideoURL:          spec.SourceMediaURL,
		KeepOriginalSound: keepOriginalSound(spec.Parameters),
	}
	endpoint := c.baseURL + "/" + strings.Trim(spec.ModelRef, "/")

	var decoded submitResponse
	if _, err := c.do(ctx, http.MethodPost, endpoint, payload, &decoded); err != nil {
		return nil, err
	}
	if decoded.RequestID == "" {
		return nil, fmt.Errorf("fal: accept response without request id: %w", domain.ErrProviderRejected)
	}
	c.logger.Debug().
		Str("model", spec.ModelRef).
		Str("request_id", decoded.RequestID).
		Msg("fal: request accepted")
	status := domain.JobStatusQueued
	if decoded.Status != "" {
		status = mapStatus(decoded.Status)
	}
	return &providers.ExternalJob{ExternalID: decoded.RequestID, Status: status}, nil
}

// Fetch reads the queue status for a request; once the queue reports the
// request complete it also fetches the result payload for the output URL.
func (c *Client) Fetch(ctx context.Context, spec providers.FetchSpec) (*providers.ExternalStatus, error) {
	model := strings.Trim(spec.ModelRef, "/")
	statusEndpoint := fmt.Sprintf("%s/%s/requests/%s/status", c.queueBaseURL, model, spec.ExternalID)

	var st statusResponse
	raw, err := c.do(ctx, http.MethodGet, statusEndpoint, nil, &st)
	if err != nil {
		return nil, err
	}

	status := mapStatus(st.Status)
	observed := &providers.ExternalStatus{Status: status, Raw: raw}
	if status != domain.JobStatusSucceeded && status != domain.JobStatusFailed {
		return observed, nil
	}

	resultEndpoint := fmt.Sprintf("%s/%s/requests/%s", c.queueBaseURL, model, spec.ExternalID)
	var result resultResponse
	raw, err = c.do(ctx, http.MethodGet, resultEndpoint, nil, &result)
	if err != nil {
		return nil, err
	}
	observed.Raw = raw
	observed.OutputURL = extractOutput(result)
	if result.Error != "" {
		observed.ErrorText = result.Error
	} else if result.Detail != "" {
		observed.ErrorText = result.Detail
	}
	return observed, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) (json.RawMessage, error) {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("fal: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("fal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fal: http request: %v: %w", err, domain.ErrProviderUnreachable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fal: read response: %v: %w", err, domain.ErrProviderUnreachable)
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fal: status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(raw)), domain.ErrProviderRejected)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("fal: decode response: %w", err)
	}
	return raw, nil
}

func extractOutput(result resultResponse) string {
	if u := providers.ExtractOutputURL(result.Video); u != "" {
		return u
	}
	if u := providers.ExtractOutputURL(result.Output); u != "" {
		return u
	}
	if result.URL != "" {
		b, _ := json.Marshal(result.URL)
		return providers.ExtractOutputURL(b)
	}
	return ""
}

// mapStatus folds queue statuses into the local lifecycle. Anything
// unrecognized counts as processing so the state machine never blocks.
func mapStatus(s string) domain.JobStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN_QUEUE", "QUEUED":
		return domain.JobStatusQueued
	case "IN_PROGRESS":
		return domain.JobStatusProcessing
	case "COMPLETED", "OK":
		return domain.JobStatusSucceeded
	case "ERROR", "FAILED", "CANCELLED":
		return domain.JobStatusFailed
	default:
		return domain.JobStatusProcessing
	}
}

func keepOriginalSound(params map[string]any) bool {
	v, ok := params["keep_original_sound"]
	if !ok {
		return true
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if s, ok := v.(string); ok {
		return s != "false"
	}
	return true
}

var _ providers.Adapter = (*Client)(nil)
