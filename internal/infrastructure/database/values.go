package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Row is one record keyed by column name.
// Values are string, int64, float64 or nil. Booleans are stored as 0/1.
type Row map[string]any

// Where is an equality filter keyed by column name.
//
//	scalar     -> "col" = ?
//	nil        -> "col" IS NULL
//	slice      -> "col" IN (?, ?, ...)
//	empty slice -> 1=0 (matches nothing)
//
// Predicates are AND-joined.
type Where map[string]any

// Result is a decoded result set with its column order preserved.
type Result struct {
	Columns []string
	Rows    []Row
}

// encodeValue normalizes a caller value into a driver-bindable scalar.
func encodeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, validationErrorf("integer %d overflows int64", x)
		}
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, validationErrorf("integer %d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, validationErrorf("invalid number %q", x.String())
		}
		return f, nil
	default:
		return nil, validationErrorf("unsupported value type %T", v)
	}
}

// decodeValue converts a driver value into a Row scalar.
func decodeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return formatTime(x)
	default:
		return v
	}
}

// formatTime renders a driver-parsed DATE/DATETIME/TIMESTAMP value in
// SQLite's own datetime() layout, keeping fractional seconds and a non-UTC
// offset when present. Select avoids the parse entirely; this covers
// Execute and Query results.
func formatTime(t time.Time) string {
	layout := "2006-01-02 15:04:05.999999999"
	if _, offset := t.Zone(); offset != 0 {
		layout += "-07:00"
	}
	return t.Format(layout)
}

// scanRows reads every remaining row into a Result.
func scanRows(rows *sql.Rows) (Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("reading columns: %w", err)
	}

	res := Result{Columns: columns, Rows: []Row{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = decodeValue(values[i])
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterating rows: %w", err)
	}
	return res, nil
}
