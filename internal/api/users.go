package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/infrastructure/mqtt"
	"github.com/nerrad567/sqlgate/internal/users"
)

// User-facing messages.
const (
	msgUserNotFound   = "User not found"
	msgCreateConflict = "Email/Phone number already exists"
	msgUpdateConflict = "Email already exists"
	msgNoFields       = "No fields to update"
)

// ─── Handlers ──────────────────────────────────────────────────────

// handleCreateUser inserts a user from a schema-validated body.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := users.ValidateCreateJSON(body); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	var in users.CreateInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var created *users.User
	err := s.withDB(r, func(db *database.DB) error {
		var err error
		created, err = users.NewRepository(db).Create(r.Context(), in)
		return err
	})
	switch {
	case errors.Is(err, users.ErrConflict):
		writeConflict(w, msgCreateConflict)
		return
	case errors.Is(err, users.ErrInvalid):
		writeValidationError(w, err.Error())
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	s.afterWrite(r, users.Table, mqtt.OpInsert, created.ID, map[string]any{"email": created.Email})
	writeJSON(w, http.StatusCreated, created)
}

// handleListUsers returns users, newest first.
//
// Query parameters:
//   - email, name: exact match filters
//   - phone: exact match on the numeric phone
//   - limit: 1 to 1000 (default 100)
//   - offset: pagination offset
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := users.ListFilter{
		Email: q.Get("email"),
		Name:  q.Get("name"),
	}

	if v := q.Get("phone"); v != "" {
		phone, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "phone must be an integer")
			return
		}
		filter.Phone = &phone
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if q.Has("limit") && filter.Limit == 0 {
		writeValidationError(w, "limit must be between 1 and 1000")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	var list []users.User
	err = s.withDB(r, func(db *database.DB) error {
		var err error
		list, err = users.NewRepository(db).List(r.Context(), filter)
		return err
	})
	switch {
	case errors.Is(err, users.ErrInvalid):
		writeValidationError(w, err.Error())
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// handleGetUser returns a single user by id.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var u *users.User
	err := s.withDB(r, func(db *database.DB) error {
		var err error
		u, err = users.NewRepository(db).Get(r.Context(), id)
		return err
	})
	switch {
	case errors.Is(err, users.ErrNotFound):
		writeNotFound(w, msgUserNotFound)
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// handleUpdateUser applies a partial update. Fields absent or null in the
// body are left unchanged.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := users.ValidateUpdateJSON(body); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	var in users.UpdateInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var updated *users.User
	err := s.withDB(r, func(db *database.DB) error {
		var err error
		updated, err = users.NewRepository(db).Update(r.Context(), id, in)
		return err
	})
	switch {
	case errors.Is(err, users.ErrNoFields):
		writeBadRequest(w, msgNoFields)
		return
	case errors.Is(err, users.ErrNotFound):
		writeNotFound(w, msgUserNotFound)
		return
	case errors.Is(err, users.ErrConflict):
		writeConflict(w, msgUpdateConflict)
		return
	case errors.Is(err, users.ErrInvalid):
		writeValidationError(w, err.Error())
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	s.afterWrite(r, users.Table, mqtt.OpUpdate, id, nil)
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteUser removes a user by id.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var deleted int64
	err := s.withDB(r, func(db *database.DB) error {
		var err error
		deleted, err = users.NewRepository(db).Delete(r.Context(), id)
		return err
	})
	switch {
	case errors.Is(err, users.ErrNotFound):
		writeNotFound(w, msgUserNotFound)
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	s.afterWrite(r, users.Table, mqtt.OpDelete, id, nil)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}

// ─── Helpers ───────────────────────────────────────────────────────

// afterWrite publishes the change event and records the audit entry for a
// committed write.
func (s *Server) afterWrite(r *http.Request, table, op string, id int64, details map[string]any) {
	s.publishChange(table, op, id)
	s.auditLog(r, auditAction(op), table, strconv.FormatInt(id, 10), details)
}

// auditAction maps change operations to audit actions.
func auditAction(op string) string {
	switch op {
	case mqtt.OpInsert:
		return "create"
	case mqtt.OpUpdate:
		return "update"
	case mqtt.OpDelete:
		return "delete"
	default:
		return op
	}
}

// idParam parses the {id} path parameter, writing a 400 when it is not an
// integer.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "id must be an integer")
		return 0, false
	}
	return id, true
}

// readBody reads the request body, writing 413 or 400 on failure.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return nil, false
		}
		writeBadRequest(w, "invalid request body")
		return nil, false
	}
	return body, true
}
