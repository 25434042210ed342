package dbtools

import (
	"fmt"
	"strings"
)

// Checker messages returned by CheckQuery.
const (
	MsgEmpty     = "Query is empty."
	MsgSemicolon = "Avoid using semicolons (;) in agent-submitted queries."
	MsgValid     = "Query appears syntactically valid. Ready to execute."
)

var (
	allowedKeywords = map[string]bool{"select": true, "with": true}
	dmlKeywords     = map[string]bool{"insert": true, "update": true, "delete": true}
)

// CheckQuery is the read-only gate applied to agent-submitted SQL.
// It reports whether query may run and a human-readable verdict.
//
// The check is lexical: the first word must be SELECT or WITH and the text
// may not contain a semicolon, which rules out stacked statements.
func CheckQuery(query string) (ok bool, message string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return false, MsgEmpty
	}

	first := strings.ToLower(strings.Fields(query)[0])
	if dmlKeywords[first] {
		return false, fmt.Sprintf("Execution of DML queries ('%s') is not allowed.", strings.ToUpper(first))
	}
	if !allowedKeywords[first] {
		return false, fmt.Sprintf("Query starts with '%s', which is not allowed. Use SELECT, or WITH.", first)
	}
	if strings.Contains(query, ";") {
		return false, MsgSemicolon
	}
	return true, MsgValid
}
