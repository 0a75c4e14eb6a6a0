package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"santa.share/config"
	"santa.share/internal/links"
	"santa.share/internal/logging"
	"santa.share/internal/notify"
	"santa.share/web"
)

func SetupRouter(backend links.Backend, mailer *notify.Mailer, cfg *config.Config, log logging.Logger) *chi.Mux {
	h := NewHandler(backend, mailer, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(CORS(CORSConfig{
		AllowedOrigins: []string{cfg.Server.BaseURL},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health
	r.Get("/health", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		reveal := func(next http.Handler) http.Handler { return next }

		// Apply rate limiting if enabled
		if cfg.RateLimit.Enabled {
			apiLimiter := NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
			revealLimiter := NewRateLimiter(cfg.RateLimit.RevealPerMin, time.Minute)

			r.Use(apiLimiter.Middleware)
			reveal = revealLimiter.Middleware
		}

		r.Use(JSONOnly)

		r.Post("/store", h.StoreMatches)
		r.With(reveal).Get("/reveal", h.RevealMatch)
		r.Post("/notify", h.Notify)
	})

	// Frontend
	r.Get("/", h.Index)
	r.Get("/reveal/{id}", h.RevealPage)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))

	return r
}
