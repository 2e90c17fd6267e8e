package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/infra"
)

// removeBatchSize bounds one delete call; the object store caps batch sizes.
const removeBatchSize = 200

// ObjectStore is the object-storage surface the sweeper needs.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Remove(ctx context.Context, bucket string, paths []string) error
}

// ObjectInfo describes one stored object or folder entry.
type ObjectInfo struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreClient talks to the object-storage HTTP API.
type StoreClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewStoreClient constructs an object-storage client.
func NewStoreClient(baseURL, serviceKey string, httpClient *http.Client) *StoreClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &StoreClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: httpClient,
	}
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
}

type removeRequest struct {
	Prefixes []string `json:"prefixes"`
}

// List returns the entries under prefix in a bucket.
func (c *StoreClient) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	payload, err := json.Marshal(listRequest{Prefix: prefix, Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("storage: encode list request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/storage/v1/object/list/%s", c.baseURL, bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("storage: build list request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: list objects: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read list response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("storage: list status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var entries []ObjectInfo
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("storage: decode list response: %w", err)
	}
	return entries, nil
}

// Remove deletes the named objects from a bucket.
func (c *StoreClient) Remove(ctx context.Context, bucket string, paths []string) error {
	payload, err := json.Marshal(removeRequest{Prefixes: paths})
	if err != nil {
		return fmt.Errorf("storage: encode remove request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s", c.baseURL, bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("storage: build remove request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: remove objects: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("storage: remove status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

func (c *StoreClient) authorize(req *http.Request) {
	if c.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
		req.Header.Set("apikey", c.serviceKey)
	}
}

var _ ObjectStore = (*StoreClient)(nil)

// Sweeper removes uploaded input objects older than the TTL. Inputs are
// stored one folder per user, so the sweep lists the bucket root for
// folders and then each folder for files.
type Sweeper struct {
	store  ObjectStore
	bucket string
	ttl    time.Duration
	logger infra.Logger
	now    func() time.Time
}

// NewSweeper constructs a sweeper over the given bucket.
func NewSweeper(store ObjectStore, bucket string, ttl time.Duration, logger infra.Logger) *Sweeper {
	return &Sweeper{store: store, bucket: bucket, ttl: ttl, logger: logger, now: time.Now}
}

// Sweep performs one pass and returns the number of removed objects.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)

	folders, err := s.store.List(ctx, s.bucket, "")
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, folder := range folders {
		if folder.Name == "" {
			continue
		}
		files, err := s.store.List(ctx, s.bucket, folder.Name)
		if err != nil {
			// A root entry may be a plain file rather than a folder; skip it.
			continue
		}
		for _, f := range files {
			if f.Name == "" {
				continue
			}
			observed := f.UpdatedAt
			if observed.IsZero() {
				observed = f.CreatedAt
			}
			if observed.IsZero() || !observed.Before(cutoff) {
				continue
			}
			stale = append(stale, folder.Name+"/"+f.Name)
		}
	}

	removed := 0
	for start := 0; start < len(stale); start += removeBatchSize {
		end := start + removeBatchSize
		if end > len(stale) {
			end = len(stale)
		}
		if err := s.store.Remove(ctx, s.bucket, stale[start:end]); err != nil {
			return removed, err
		}
		removed += end - start
	}

	s.logger.Info().
		Int("removed", removed).
		Dur("ttl", s.ttl).
		Msg("storage: input sweep finished")
	return removed, nil
}
