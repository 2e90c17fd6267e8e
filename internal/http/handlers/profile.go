package handlers

import (
	"encoding/json"
	"net/http"
)

type profileResponse struct {
	UserID      string `json:"user_id"`
	HasPassword bool   `json:"has_password"`
}

type profileUpdateRequest struct {
	HasPassword bool `json:"has_password"`
}

// ProfileGet returns the caller's profile, creating the row on first access.
func (a *App) ProfileGet(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Profiles.Ensure(r.Context(), user.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	profile, err := a.Profiles.Get(r.Context(), user.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, profileResponse{UserID: profile.UserID, HasPassword: profile.HasPassword})
}

// ProfileUpdate records that the user set a password. The flag is
// one-way; only has_password=true is accepted.
func (a *App) ProfileUpdate(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !req.HasPassword {
		a.error(w, http.StatusBadRequest, "bad_request", "only has_password=true is allowed")
		return
	}
	if err := a.Profiles.Ensure(r.Context(), user.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Profiles.MarkPasswordSet(r.Context(), user.ID); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, profileResponse{UserID: user.ID, HasPassword: true})
}
