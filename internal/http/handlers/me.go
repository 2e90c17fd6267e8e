package handlers

import (
	"net/http"
	"time"
)

const recentJobsLimit = 24

type meUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type meGeneration struct {
	ExternalID string    `json:"external_id"`
	Status     string    `json:"status"`
	OutputURL  string    `json:"output_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type meResponse struct {
	User        meUser         `json:"user"`
	Credits     int64          `json:"credits"`
	Generations []meGeneration `json:"generations"`
}

// Me returns the caller's identity, balance and recent generations. A
// missing balance row reads as zero credits rather than an error.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	user := a.currentUser(r)
	if user == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	credits, err := a.Balances.Credits(r.Context(), user.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	jobs, err := a.Jobs.ListRecentByOwner(r.Context(), user.ID, recentJobsLimit)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	generations := make([]meGeneration, 0, len(jobs))
	for _, job := range jobs {
		generations = append(generations, meGeneration{
			ExternalID: job.ExternalID,
			Status:     string(job.Status),
			OutputURL:  job.OutputURL,
			CreatedAt:  job.CreatedAt,
		})
	}

	a.json(w, http.StatusOK, meResponse{
		User:        meUser{ID: user.ID, Email: user.Email},
		Credits:     credits,
		Generations: generations,
	})
}
