package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"

	"github.com/guardhq/workforce-management/internal/auth"
	"github.com/guardhq/workforce-management/internal/authz"
	"github.com/guardhq/workforce-management/internal/transport/middleware"
	"github.com/guardhq/workforce-management/internal/transport/swagger"
)

// RegisterAllRoutes wires the full HTTP surface: health probes, auth, and the
// admin permission endpoints guarded by the authorization enforcer.
func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, authHandler *auth.Handler, permHandler *authz.Handler, enforcer *authz.Enforcer, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))

	// OpenAPI spec and Swagger UI live outside the API prefix.
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if authHandler != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", authHandler.Login)
				sr.Post("/refresh", authHandler.RefreshToken)
				sr.Post("/logout", authHandler.Logout)
			})
		}

		if authHandler != nil && permHandler != nil {
			r.Route("/permissions", func(pr chi.Router) {
				pr.Use(authHandler.AuthMiddleware)
				permHandler.RegisterRoutes(pr, enforcer)
			})
		}
	})
}
