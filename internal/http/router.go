package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/taskrewards/server/internal/auth"
	"github.com/taskrewards/server/internal/http/handlers"
	"github.com/taskrewards/server/internal/metrics"
	"github.com/taskrewards/server/internal/middleware"
	"github.com/taskrewards/server/internal/repo"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	authHandler *handlers.AuthHandler,
	rewardsHandler *handlers.RewardsHandler,
	adminHandler *handlers.AdminHandler,
	sessions *auth.SessionService,
	userRepo repo.UserRepo,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
	})

	// Protected routes (require valid JWT)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(sessions, userRepo))
		r.Get("/auth/session", authHandler.HandleSession)
		r.Get("/tasks/limits", rewardsHandler.HandleCheckLimits)
		r.Post("/rewards/claim", rewardsHandler.HandleClaim)
		r.Get("/referrals/eligibility", rewardsHandler.HandleReferralEligibility)
		r.Post("/violations/report", rewardsHandler.HandleReportViolation)
	})

	r.Post("/admin/action", adminHandler.HandleAction)

	return r
}
