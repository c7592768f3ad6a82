package typemap

import (
	"testing"

	"github.com/johndauphine/plasticc-ingest/internal/schema"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		input    string
		expected Backend
	}{
		{"sqlite", SQLite},
		{"SQLite", SQLite},
		{"postgres", Postgres},
		{"sqlite3", ""},
		{"postgresql", ""},
		{"mssql", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseBackend(tt.input); got != tt.expected {
				t.Errorf("ParseBackend(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMapType(t *testing.T) {
	tests := []struct {
		backend  Backend
		typ      schema.Type
		expected string
	}{
		{SQLite, schema.TypeInt, "INTEGER"},
		{SQLite, schema.TypeFloat, "REAL"},
		{SQLite, schema.TypeBool, "BOOLEAN"},
		{SQLite, schema.TypeString, "TEXT"},
		{Postgres, schema.TypeInt, "bigint"},
		{Postgres, schema.TypeFloat, "double precision"},
		{Postgres, schema.TypeBool, "boolean"},
		{Postgres, schema.TypeString, "text"},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend)+"/"+tt.typ.String(), func(t *testing.T) {
			if got := For(tt.backend)(tt.typ); got != tt.expected {
				t.Errorf("For(%s)(%s) = %q, want %q", tt.backend, tt.typ, got, tt.expected)
			}
		})
	}
}

func TestEveryObservationColumnMaps(t *testing.T) {
	for _, c := range schema.ObservationsTable.Columns {
		if ToSQLite(c.Type) == "" || ToPostgres(c.Type) == "" {
			t.Errorf("column %s has no mapping", c.Name)
		}
	}
}
