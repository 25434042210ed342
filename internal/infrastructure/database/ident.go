package database

import (
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// identPattern is the identifier whitelist. Dots separate schema and table.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9_$.]+$`)

// validateIdent rejects anything outside the whitelist, including quotes,
// backticks, semicolons, whitespace and empty dotted parts.
func validateIdent(name string) error {
	if !identPattern.MatchString(name) {
		return validationErrorf("invalid identifier %q", name)
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return validationErrorf("invalid identifier %q", name)
		}
	}
	return nil
}

// validateIdents validates each name in order and stops at the first failure.
func validateIdents(names []string) error {
	for _, name := range names {
		if err := validateIdent(name); err != nil {
			return err
		}
	}
	return nil
}

// quoteIdent double-quotes an already validated identifier.
// "main.users" becomes "main"."users".
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

// quoteIdents quotes and comma-joins validated identifiers.
func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// sortedKeys returns map keys in ascending order.
func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// buildWhere renders a WHERE clause (without the keyword) and its bound values.
// An empty filter yields an empty clause.
func buildWhere(where Where) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(where))
	var args []any
	for _, col := range sortedKeys(where) {
		if err := validateIdent(col); err != nil {
			return "", nil, err
		}
		qcol := quoteIdent(col)
		value := where[col]

		if value == nil {
			clauses = append(clauses, qcol+" IS NULL")
			continue
		}

		if list, ok := listValues(value); ok {
			if len(list) == 0 {
				clauses = append(clauses, "1=0")
				continue
			}
			for _, item := range list {
				encoded, err := encodeValue(item)
				if err != nil {
					return "", nil, err
				}
				args = append(args, encoded)
			}
			clauses = append(clauses, qcol+" IN ("+placeholders(len(list))+")")
			continue
		}

		encoded, err := encodeValue(value)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, qcol+" = ?")
		args = append(args, encoded)
	}
	return strings.Join(clauses, " AND "), args, nil
}

// listValues unpacks slice and array filter values.
func listValues(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
