package fal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/providers"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestSubmitTranslatesFields(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"request_id": "req-1"})
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL, QueueBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	job, err := client.Submit(context.Background(), providers.SubmitSpec{
		ModelRef:       "fal-ai/video-restyle",
		Prompt:         "a cat",
		SourceMediaURL: "https://storage.example.com/inputs_video/u1/clip.mp4",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ExternalID != "req-1" || job.Status != domain.JobStatusQueued {
		t.Fatalf("job = %+v", job)
	}
	if gotPath != "/fal-ai/video-restyle" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Key key" {
		t.Fatalf("auth = %q", gotAuth)
	}
	// Same semantic value as the prediction API's start_image, but this
	// back-end names it video_url.
	if gotBody["video_url"] != "https://storage.example.com/inputs_video/u1/clip.mp4" {
		t.Fatalf("video_url = %v", gotBody["video_url"])
	}
	if gotBody["keep_original_sound"] != true {
		t.Fatalf("keep_original_sound = %v", gotBody["keep_original_sound"])
	}
}

func TestSubmitRejectedOnNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"detail": "unsupported input"})
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Submit(context.Background(), providers.SubmitSpec{ModelRef: "fal-ai/x", Prompt: "p"})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("err = %v, want ErrProviderRejected", err)
	}
}

func TestFetchInProgressSkipsResultCall(t *testing.T) {
	var resultCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fal-ai/x/requests/req-1/status":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "IN_PROGRESS"})
		default:
			resultCalled = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL, QueueBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	st, err := client.Fetch(context.Background(), providers.FetchSpec{ExternalID: "req-1", ModelRef: "fal-ai/x"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if st.Status != domain.JobStatusProcessing {
		t.Fatalf("status = %s", st.Status)
	}
	if st.OutputURL != "" {
		t.Fatalf("output url = %q", st.OutputURL)
	}
	if resultCalled {
		t.Fatalf("result endpoint should not be called before completion")
	}
}

func TestFetchCompletedReadsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fal-ai/x/requests/req-1/status":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "COMPLETED"})
		case "/fal-ai/x/requests/req-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"video": map[string]any{"url": "https://v3.fal.media/files/out.mp4"},
			})
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	client, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL, QueueBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	st, err := client.Fetch(context.Background(), providers.FetchSpec{ExternalID: "req-1", ModelRef: "fal-ai/x"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if st.Status != domain.JobStatusSucceeded {
		t.Fatalf("status = %s", st.Status)
	}
	if st.OutputURL != "https://v3.fal.media/files/out.mp4" {
		t.Fatalf("output url = %q", st.OutputURL)
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL, QueueBaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Fetch(context.Background(), providers.FetchSpec{ExternalID: "req-1", ModelRef: "fal-ai/x"})
	if !errors.Is(err, domain.ErrProviderUnreachable) {
		t.Fatalf("err = %v, want ErrProviderUnreachable", err)
	}
}
