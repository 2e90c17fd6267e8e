package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/generation"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/storage"
)

type submitRequest struct {
	PresetID   string         `json:"preset_id"`
	Scene      string         `json:"scene"`
	Parameters map[string]any `json:"parameters"`
	// PrimaryAsset is the source media as a data URI or fetchable URL.
	PrimaryAsset string `json:"primary_asset"`
	// AssetBase64 plus AssetMIME carry raw inline bytes instead of a
	// ready-made data URI.
	AssetBase64 string `json:"asset_base64"`
	AssetMIME   string `json:"asset_mime"`
	// StoragePath references an object already uploaded to the inputs
	// bucket; mutually exclusive with PrimaryAsset.
	StoragePath string `json:"storage_path"`
}

type submitResponse struct {
	ExternalID       string `json:"external_id"`
	Status           string `json:"status"`
	RemainingCredits int64  `json:"remaining_credits"`
}

type reconcileResponse struct {
	ExternalID string          `json:"external_id"`
	Status     string          `json:"status"`
	OutputURL  string          `json:"output_url,omitempty"`
	ErrorText  string          `json:"error_text,omitempty"`
	Provider   json.RawMessage `json:"provider_payload,omitempty"`
}

// GenerationsSubmit accepts a new generation job.
func (a *App) GenerationsSubmit(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.PresetID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "preset_id is required")
		return
	}

	sourceMedia := strings.TrimSpace(req.PrimaryAsset)
	if sourceMedia == "" && req.AssetBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(req.AssetBase64)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "asset_base64 is not valid base64")
			return
		}
		sourceMedia = storage.DataURI(req.AssetMIME, raw)
	}
	if sourceMedia == "" && req.StoragePath != "" {
		sourceMedia = storage.PublicObjectURL(a.StorageBaseURL, a.InputsBucket, req.StoragePath)
	}

	res, err := a.Service.Submit(r.Context(), user.ID, generation.SubmitInput{
		PresetID:       req.PresetID,
		Scene:          req.Scene,
		Overrides:      req.Parameters,
		SourceMediaURL: sourceMedia,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, submitResponse{
		ExternalID:       res.ExternalID,
		Status:           string(res.Status),
		RemainingCredits: res.RemainingCredits,
	})
}

// GenerationsReconcile polls the provider for one owned job and returns
// the merged durable record.
func (a *App) GenerationsReconcile(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	externalID := strings.TrimSpace(chi.URLParam(r, "external_id"))
	if externalID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "external_id is required")
		return
	}

	res, err := a.Service.Reconcile(r.Context(), user.ID, externalID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, reconcileResponse{
		ExternalID: res.Job.ExternalID,
		Status:     string(res.Job.Status),
		OutputURL:  res.Job.OutputURL,
		ErrorText:  res.Job.ErrorText,
		Provider:   res.Raw,
	})
}
