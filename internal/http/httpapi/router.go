package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/http/handlers"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/identity"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/middleware"
)

// RouterOptions carries the cross-cutting pieces the router wires in
// front of the handlers.
type RouterOptions struct {
	Verifier        identity.Verifier
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	// Public
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/presets", app.PresetsList)

	// Authenticated
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(opts.Verifier))

		r.Post("/v1/generations", app.GenerationsSubmit)
		r.Get("/v1/generations/{external_id}", app.GenerationsReconcile)
		r.Get("/v1/me", app.Me)
		r.Get("/v1/profile", app.ProfileGet)
		r.Post("/v1/profile", app.ProfileUpdate)
	})

	return r
}
