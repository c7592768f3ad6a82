// Package store writes converted tables into an output container. A
// container is a SQLite file or a PostgreSQL schema, holding named tables.
package store

import (
	"context"
	"fmt"

	"github.com/johndauphine/plasticc-ingest/internal/config"
	"github.com/johndauphine/plasticc-ingest/internal/schema"
	"github.com/johndauphine/plasticc-ingest/internal/typemap"
)

// Mode selects how WriteTable treats an existing table.
type Mode int

const (
	// ModeOverwrite replaces the table.
	ModeOverwrite Mode = iota
	// ModeAppend adds rows, creating the table if needed.
	ModeAppend
)

func (m Mode) String() string {
	switch m {
	case ModeOverwrite:
		return "overwrite"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// TableInfo summarizes a stored table.
type TableInfo struct {
	Name string
	Rows int64
}

// Store is an output container.
//
// Each WriteTable call is committed on its own. A failure part way through a
// sequence of calls leaves the earlier calls in place.
type Store interface {
	// Reset drops every table in the container.
	Reset(ctx context.Context) error

	// WriteTable writes rows, each ordered like table.Columns.
	WriteTable(ctx context.Context, table schema.Table, rows [][]any, mode Mode) error

	// CreateIndexes builds the indexes listed in table.Indexed.
	CreateIndexes(ctx context.Context, table schema.Table) error

	// Tables lists the tables in the container with their row counts.
	Tables(ctx context.Context) ([]TableInfo, error)

	Close() error
}

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Postgres)(nil)
)

// Open opens the container for the named split ("train" or "test") using the
// configured backend.
func Open(ctx context.Context, cfg *config.Config, split string) (Store, error) {
	switch typemap.ParseBackend(cfg.Store.Type) {
	case typemap.SQLite:
		s, err := OpenSQLite(ctx, cfg.OutputPath(split))
		if err != nil {
			return nil, err
		}
		return s, nil
	case typemap.Postgres:
		p, err := OpenPostgres(ctx, cfg.Store.DSN, cfg.OutputName(split))
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}
}

// writeError wraps a backend error with the table it concerns.
func writeError(table string, mode Mode, err error) error {
	return fmt.Errorf("writing %s (%s): %w", table, mode, err)
}
