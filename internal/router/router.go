package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/FACorreiaa/driving-lms-auth/config"
	"github.com/FACorreiaa/driving-lms-auth/internal/api"
	"github.com/FACorreiaa/driving-lms-auth/internal/api/auth"
	"github.com/FACorreiaa/driving-lms-auth/internal/types"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler            *auth.HandlerImpl
	AuthenticateMiddleware func(http.Handler) http.Handler
	AllowedOrigins         []string
	RateLimit              config.RateLimitConfig
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (request id, logging, recoverer) is applied in main.go
// before this router is mounted.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSONResponse(w, r, http.StatusOK, api.Response{Success: true, Message: "pong"})
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes, rate limited per client IP.
		r.Group(func(r chi.Router) {
			if cfg.RateLimit.Requests > 0 {
				window := cfg.RateLimit.Window
				if window <= 0 {
					window = time.Minute
				}
				r.Use(httprate.LimitByIP(cfg.RateLimit.Requests, window))
			}
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/signup", cfg.AuthHandler.Signup)
			r.Post("/auth/password/forgot", cfg.AuthHandler.ForgotPassword)
			r.Post("/auth/password/reset", cfg.AuthHandler.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Get("/auth/me", cfg.AuthHandler.Me)
			r.Patch("/auth/me/profile", cfg.AuthHandler.UpdateProfile)
			r.Put("/auth/me/password", cfg.AuthHandler.ChangePassword)

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/", cfg.AuthHandler.GetUser)
				r.With(auth.RequireRole(types.RoleSchoolAdmin, types.RoleSuperAdmin)).
					Patch("/status", cfg.AuthHandler.SetUserStatus)
			})
		})
	})

	return r
}
