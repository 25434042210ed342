package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
	"github.com/nerrad567/sqlgate/internal/infrastructure/mqtt"
	"github.com/nerrad567/sqlgate/internal/todos"
)

const msgTodoNotFound = "Todo not found"

// handleCreateTodo inserts a todo.
func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := todos.ValidateCreateJSON(body); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	var in todos.CreateInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var created *todos.Todo
	err := s.withDB(r, func(db *database.DB) error {
		var err error
		created, err = todos.NewRepository(db).Create(r.Context(), in)
		return err
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.afterWrite(r, todos.Table, mqtt.OpInsert, created.ID, nil)
	writeJSON(w, http.StatusCreated, created)
}

// handleListTodos returns todos in id order.
//
// Query parameters:
//   - skip: rows to skip (default 0)
//   - limit: max results (default 100)
func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := intParam(q.Get("skip"))
	if err != nil {
		writeBadRequest(w, "skip must be an integer")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}

	var list []todos.Todo
	err = s.withDB(r, func(db *database.DB) error {
		var err error
		list, err = todos.NewRepository(db).List(r.Context(), skip, limit)
		return err
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// handleGetTodo returns a single todo by id.
func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var t *todos.Todo
	err := s.withDB(r, func(db *database.DB) error {
		var err error
		t, err = todos.NewRepository(db).Get(r.Context(), id)
		return err
	})
	switch {
	case errors.Is(err, todos.ErrNotFound):
		writeNotFound(w, msgTodoNotFound)
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTodo sets the fields present in the body.
func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := todos.ValidateUpdateJSON(body); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	var in todos.UpdateInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var updated *todos.Todo
	err := s.withDB(r, func(db *database.DB) error {
		var err error
		updated, err = todos.NewRepository(db).Update(r.Context(), id, in)
		return err
	})
	switch {
	case errors.Is(err, todos.ErrNotFound):
		writeNotFound(w, msgTodoNotFound)
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	s.afterWrite(r, todos.Table, mqtt.OpUpdate, id, nil)
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteTodo removes a todo by id.
func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	err := s.withDB(r, func(db *database.DB) error {
		return todos.NewRepository(db).Delete(r.Context(), id)
	})
	switch {
	case errors.Is(err, todos.ErrNotFound):
		writeNotFound(w, msgTodoNotFound)
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	s.afterWrite(r, todos.Table, mqtt.OpDelete, id, nil)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
