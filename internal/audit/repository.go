// Package audit records and queries the sqlgate activity trail stored in the
// audit_logs table.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

const (
	table = "audit_logs"

	defaultLimit = 50
	maxLimit     = 200

	// timeLayout has fixed width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// Sources of audit entries.
const (
	SourceAPI = "api"
	SourceMCP = "mcp"
	SourceCLI = "cli"
)

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Actor      string         `json:"actor,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action     string // optional: create, update, delete, init, tool_call
	EntityType string // optional: table or tool name
	EntityID   string // optional: specific row id
	Actor      string // optional: token subject
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLRepository stores audit logs through the data-access layer.
type SQLRepository struct {
	db *database.DB
}

// NewSQLRepository creates a new audit log repository.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create inserts a new audit log entry. The ID and CreatedAt are generated if empty.
func (r *SQLRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = "aud-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	row := database.Row{
		"id":          log.ID,
		"action":      log.Action,
		"entity_type": log.EntityType,
		"entity_id":   nullableString(log.EntityID),
		"actor":       nullableString(log.Actor),
		"source":      log.Source,
		"details":     nil,
		"created_at":  log.CreatedAt.UTC().Format(timeLayout),
	}
	if log.Details != nil {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		row["details"] = string(b)
	}

	if _, err := r.db.Insert(ctx, table, row, database.InsertOptions{DiscardIDs: true}); err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so nullable TEXT columns stay NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns audit logs matching the filter, most recent first.
func (r *SQLRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where := database.Where{}
	for col, v := range map[string]string{
		"action":      filter.Action,
		"entity_type": filter.EntityType,
		"entity_id":   filter.EntityID,
		"actor":       filter.Actor,
	} {
		if v != "" {
			where[col] = v
		}
	}

	total, err := r.db.Count(ctx, table, where)
	if err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	rows, err := r.db.Select(ctx, table, database.SelectOptions{
		Where:   where,
		OrderBy: `"created_at" DESC, "id" DESC`,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}

	logs := make([]AuditLog, 0, len(rows))
	for _, row := range rows {
		log, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func fromRow(row database.Row) (AuditLog, error) {
	var log AuditLog
	log.ID, _ = row["id"].(string)
	log.Action, _ = row["action"].(string)
	log.EntityType, _ = row["entity_type"].(string)
	log.EntityID, _ = row["entity_id"].(string)
	log.Actor, _ = row["actor"].(string)
	log.Source, _ = row["source"].(string)

	if details, ok := row["details"].(string); ok && details != "" {
		var m map[string]any
		if json.Unmarshal([]byte(details), &m) == nil {
			log.Details = m
		}
	}

	createdAt, _ := row["created_at"].(string)
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return AuditLog{}, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	log.CreatedAt = t
	return log, nil
}
