// Package typemap maps logical column types to backend column types.
package typemap

import (
	"strings"

	"github.com/johndauphine/plasticc-ingest/internal/schema"
)

// Backend identifies a store engine.
type Backend string

const (
	SQLite   Backend = "sqlite"
	Postgres Backend = "postgres"
)

// ParseBackend maps a store.type value to a Backend. Unknown names return "".
func ParseBackend(s string) Backend {
	switch strings.ToLower(s) {
	case string(SQLite):
		return SQLite
	case string(Postgres):
		return Postgres
	default:
		return ""
	}
}

// ToSQLite returns the SQLite declared type. BOOLEAN is kept as a declared
// type so readers can tell flag columns from counts; values are stored as 0/1.
func ToSQLite(t schema.Type) string {
	switch t {
	case schema.TypeInt:
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	case schema.TypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// ToPostgres returns the PostgreSQL column type.
func ToPostgres(t schema.Type) string {
	switch t {
	case schema.TypeInt:
		return "bigint"
	case schema.TypeFloat:
		return "double precision"
	case schema.TypeBool:
		return "boolean"
	default:
		return "text"
	}
}

// For returns the mapping function for backend b.
func For(b Backend) func(schema.Type) string {
	if b == Postgres {
		return ToPostgres
	}
	return ToSQLite
}
