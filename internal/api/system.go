package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/sqlgate/internal/audit"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/users"
)

// healthTimeout bounds the database probe in /health.
const healthTimeout = 2 * time.Second

// serviceName is reported by /health.
const serviceName = "sqlgate"

// handleHealth reports liveness plus database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	err := database.Use(ctx, s.dbCfg, func(db *database.DB) error {
		return db.HealthCheck(ctx)
	})
	if err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"service": serviceName,
			"version": s.version,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"version": s.version,
	})
}

// handleStatus is a static liveness probe.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInitDB creates the users table when it is missing.
func (s *Server) handleInitDB(w http.ResponseWriter, r *http.Request) {
	var created bool
	err := s.withDB(r, func(db *database.DB) error {
		var err error
		created, err = users.NewRepository(db).Init(r.Context())
		return err
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	if created {
		s.auditLog(r, "init", users.Table, "", nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "created": created})
}

// auditLog enqueues an audit entry attributed to the request's actor.
// It is a no-op when auditing is disabled.
func (s *Server) auditLog(r *http.Request, action, entityType, entityID string, details map[string]any) {
	s.audit.Record(audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actorFrom(r.Context()),
		Source:     audit.SourceAPI,
		Details:    details,
	})
}

// publishChange announces a committed row change. Failures are logged only.
func (s *Server) publishChange(table, op string, id int64) {
	if s.changes == nil {
		return
	}
	if err := s.changes.PublishChange(table, op, id); err != nil {
		s.logger.Warn("publishing change event failed",
			"table", table,
			"op", op,
			"id", id,
			"error", err,
		)
	}
}
