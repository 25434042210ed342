package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Public
	r.Get("/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth(s.secCfg.BearerToken))

		r.Post("/init-db", s.handleInitDB)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetUser)
				r.Patch("/", s.handleUpdateUser)
				r.Delete("/", s.handleDeleteUser)
			})
		})

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", s.handleListTodos)
			r.Post("/", s.handleCreateTodo)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTodo)
				r.Put("/", s.handleUpdateTodo)
				r.Delete("/", s.handleDeleteTodo)
			})
		})

		r.Get("/audit", s.handleListAuditLogs)
		r.Get("/api/metrics", s.handleMetrics)
	})

	// MCP tools over streamable HTTP, behind their own token.
	if s.mcpCfg.Enabled && s.mcpHandler != nil {
		r.With(s.bearerAuth(s.mcpToken)).Handle(s.mcpCfg.Path, s.mcpHandler)
	}

	return r
}
