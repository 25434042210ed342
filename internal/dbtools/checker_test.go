package dbtools

import "testing"

func TestCheckQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantOK  bool
		wantMsg string
	}{
		{"empty", "", false, MsgEmpty},
		{"whitespace", "  \n\t ", false, MsgEmpty},
		{"select", "SELECT * FROM users", true, MsgValid},
		{"lower select padded", "   select id from users  ", true, MsgValid},
		{"with", "WITH t AS (SELECT 1) SELECT * FROM t", true, MsgValid},
		{"insert", "INSERT INTO users VALUES (1)", false, "Execution of DML queries ('INSERT') is not allowed."},
		{"update", "update users set name = 'x'", false, "Execution of DML queries ('UPDATE') is not allowed."},
		{"delete", "Delete FROM users", false, "Execution of DML queries ('DELETE') is not allowed."},
		{"drop", "DROP TABLE users", false, "Query starts with 'drop', which is not allowed. Use SELECT, or WITH."},
		{"pragma", "PRAGMA table_info(users)", false, "Query starts with 'pragma', which is not allowed. Use SELECT, or WITH."},
		{"stacked", "SELECT 1; DROP TABLE users", false, MsgSemicolon},
		{"trailing semicolon", "SELECT 1;", false, MsgSemicolon},
		{"semicolon in literal", "SELECT ';'", false, MsgSemicolon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := CheckQuery(tt.query)
			if ok != tt.wantOK || msg != tt.wantMsg {
				t.Errorf("CheckQuery(%q) = %v, %q; want %v, %q", tt.query, ok, msg, tt.wantOK, tt.wantMsg)
			}
		})
	}
}
