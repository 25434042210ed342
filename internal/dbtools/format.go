package dbtools

import (
	"fmt"
	"strings"

	"github.com/nerrad567/sqlgate/internal/infrastructure/database"
)

// schemaNameWidth pads column names in rendered schemas.
const schemaNameWidth = 30

// renderSchema renders a table layout as an uppercased CREATE TABLE
// statement. Columns with no declared type are shown as TEXT.
func renderSchema(table string, cols []database.ColumnInfo) string {
	lines := make([]string, 0, len(cols))
	for _, col := range cols {
		typ := strings.ToUpper(strings.TrimSpace(col.Type))
		if typ == "" || typ == "NULL" {
			typ = "TEXT"
		}
		lines = append(lines, fmt.Sprintf("    %-*s %s", schemaNameWidth, strings.ToUpper(col.Name), typ))
	}
	return "CREATE TABLE " + strings.ToUpper(table) + " (\n" + strings.Join(lines, ",\n") + "\n);"
}

// renderSampleRows renders rows as a tab-separated block inside a SQL
// comment, columns in cols order. No rows renders nothing.
func renderSampleRows(table string, cols []database.ColumnInfo, rows []database.Row) string {
	if len(rows) == 0 {
		return ""
	}

	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "/*\n%d rows from %s table:\n", len(rows), strings.ToUpper(table))
	b.WriteString(strings.Join(names, "\t"))
	for _, row := range rows {
		vals := make([]string, len(names))
		for i, name := range names {
			vals[i] = cellText(row[name])
		}
		b.WriteString("\n" + strings.Join(vals, "\t"))
	}
	b.WriteString("\n*/")
	return b.String()
}

// markdownTable renders a query result as a Markdown table. Headers follow
// the result's column order; an empty result renders as "".
func markdownTable(res database.Result) string {
	if len(res.Rows) == 0 {
		return ""
	}

	lines := make([]string, 0, len(res.Rows)+2)
	lines = append(lines, "| "+strings.Join(res.Columns, " | ")+" |")

	sep := make([]string, len(res.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(sep, " | ")+" |")

	for _, row := range res.Rows {
		vals := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			vals[i] = cellText(row[col])
		}
		lines = append(lines, "| "+strings.Join(vals, " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

func cellText(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
