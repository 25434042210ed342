package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/sqlgate/internal/audit"
	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: filter by action (create, update, delete, init, tool_call)
//   - entity_type: filter by table or tool name
//   - entity_id: filter by specific row id
//   - actor: filter by token subject
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Actor:      q.Get("actor"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	var result *audit.ListResult
	err = s.withDB(r, func(db *database.DB) error {
		var err error
		result, err = audit.NewSQLRepository(db).List(r.Context(), filter)
		return err
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional integer query parameter. Empty yields 0.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
