package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wadjakorntonsri/go-collections/pkg/config"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, collections ports.CollectionService, ai ports.AIService, users ports.UserRepository, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := NewSessions(cfg.JWTSecret)
	mw := NewMiddleware(sessions)
	ch := NewCollectionHandler(collections, logger)
	ah := NewAIHandler(ai, logger)
	authHandler := NewAuthHandler(cfg, users, sessions, logger)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusOK, "ok")
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /oauth/login/{provider}", authHandler.Login)
	mux.HandleFunc("GET /oauth/callback/{provider}", authHandler.Callback)
	mux.HandleFunc("GET /oauth/logout", authHandler.Logout)

	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, mw.AuthMiddleware(h))
	}

	// Collection Routes
	protect("GET /api/v1/collection/tree", ch.GetTree)
	protect("GET /api/v1/collection", ch.ListCollections)
	protect("GET /api/v1/collection/{$}", ch.ListCollections)
	protect("POST /api/v1/collection", ch.CreateCollection)
	protect("POST /api/v1/collection/{$}", ch.CreateCollection)
	protect("GET /api/v1/collection/{id}", ch.GetCollection)
	protect("PUT /api/v1/collection/{id}", ch.UpdateCollection)
	protect("DELETE /api/v1/collection/{id}", ch.DeleteCollection)
	protect("GET /api/v1/collection/{id}/items", ch.GetItems)
	protect("POST /api/v1/collection/{id}/items", ch.AddItems)
	protect("DELETE /api/v1/collection/{id}/items", ch.RemoveItems)
	protect("GET /api/v1/collection/{id}/permissions", ch.GetPermissions)
	protect("POST /api/v1/collection/{id}/permissions", ch.SetPermissions)

	protect("POST /api/v1/ai/sql", ah.GenerateSQL)

	// Anything else under the API still needs a session, then 404s.
	mux.Handle("/api/", mw.AuthMiddleware(http.NotFoundHandler()))

	return MetricsMiddleware(mux)
}
