package store

import (
	"strings"

	"github.com/johndauphine/plasticc-ingest/internal/schema"
	"github.com/johndauphine/plasticc-ingest/internal/typemap"
)

// quoteIdent quotes an identifier for SQLite or PostgreSQL, escaping
// embedded quotes. Both accept the standard double-quote form.
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// qualifyTable returns schema.table, or just the table when schema is empty.
func qualifyTable(schema, table string) string {
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}

// indexName names the index on table(column).
func indexName(table, column string) string {
	return "idx_" + table + "_" + column
}

// columnList quotes and joins the table's column names.
func columnList(t schema.Table) string {
	quoted := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		quoted[i] = quoteIdent(c.Name)
	}
	return strings.Join(quoted, ", ")
}

// generateDDL builds a CREATE TABLE statement with column types for backend.
func generateDDL(qualified string, t schema.Table, backend typemap.Backend, ifNotExists bool) string {
	typeName := typemap.For(backend)
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if ifNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(qualified)
	sb.WriteString(" (\n")
	for i, c := range t.Columns {
		if i > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString("    ")
		sb.WriteString(quoteIdent(c.Name))
		sb.WriteString(" ")
		sb.WriteString(typeName(c.Type))
		if c.Name == t.Key {
			sb.WriteString(" PRIMARY KEY")
		}
	}
	sb.WriteString("\n)")
	return sb.String()
}
