package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/johndauphine/plasticc-ingest/internal/logging"
	"github.com/johndauphine/plasticc-ingest/internal/schema"
	"github.com/johndauphine/plasticc-ingest/internal/typemap"

	_ "modernc.org/sqlite"
)

// SQLite is a container held in a single SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating directory for %s: %w", path, err)
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// One writer at a time; keeps pragmas and transactions on one connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	logging.Debug("Opened SQLite container %s", path)
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Reset drops every user table in the file.
func (s *SQLite) Reset(ctx context.Context) error {
	names, err := s.tableNames(ctx)
	if err != nil {
		return fmt.Errorf("resetting %s: %w", s.path, err)
	}
	for _, name := range names {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			return fmt.Errorf("resetting %s: dropping %s: %w", s.path, name, err)
		}
	}
	logging.Debug("Reset %s (%d tables dropped)", s.path, len(names))
	return nil
}

// WriteTable writes rows in a single transaction.
func (s *SQLite) WriteTable(ctx context.Context, table schema.Table, rows [][]any, mode Mode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeError(table.Name, mode, err)
	}
	defer tx.Rollback()

	qualified := quoteIdent(table.Name)
	switch mode {
	case ModeOverwrite:
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
			return writeError(table.Name, mode, err)
		}
		if _, err := tx.ExecContext(ctx, generateDDL(qualified, table, typemap.SQLite, false)); err != nil {
			return writeError(table.Name, mode, err)
		}
	case ModeAppend:
		if _, err := tx.ExecContext(ctx, generateDDL(qualified, table, typemap.SQLite, true)); err != nil {
			return writeError(table.Name, mode, err)
		}
	default:
		return writeError(table.Name, mode, fmt.Errorf("unknown mode"))
	}

	if len(rows) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(table.Columns)), ", ")
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			qualified, columnList(table), placeholders))
		if err != nil {
			return writeError(table.Name, mode, err)
		}
		defer stmt.Close()

		for i, row := range rows {
			if len(row) != len(table.Columns) {
				return writeError(table.Name, mode,
					fmt.Errorf("row %d has %d values, table has %d columns", i, len(row), len(table.Columns)))
			}
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return writeError(table.Name, mode, fmt.Errorf("row %d: %w", i, err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return writeError(table.Name, mode, err)
	}
	return nil
}

// CreateIndexes builds an index per column in table.Indexed.
func (s *SQLite) CreateIndexes(ctx context.Context, table schema.Table) error {
	for _, col := range table.Indexed {
		ddl := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(indexName(table.Name, col)), quoteIdent(table.Name), quoteIdent(col))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("indexing %s(%s): %w", table.Name, col, err)
		}
	}
	return nil
}

// Tables lists tables sorted by name with their row counts.
func (s *SQLite) Tables(ctx context.Context) ([]TableInfo, error) {
	names, err := s.tableNames(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]TableInfo, 0, len(names))
	for _, name := range names {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", name, err)
		}
		infos = append(infos, TableInfo{Name: name, Rows: n})
	}
	return infos, nil
}

func (s *SQLite) tableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("listing tables: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
