package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/johndauphine/plasticc-ingest/internal/logging"
	"github.com/johndauphine/plasticc-ingest/internal/schema"
	"github.com/johndauphine/plasticc-ingest/internal/typemap"
)

// Postgres is a container held in one PostgreSQL schema.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

// OpenPostgres connects to dsn and uses schemaName as the container.
func OpenPostgres(ctx context.Context, dsn, schemaName string) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	poolCfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logging.Debug("Connected to PostgreSQL, container schema %s", schemaName)
	return &Postgres{pool: pool, schema: schemaName}, nil
}

// Reset drops and recreates the container schema.
func (p *Postgres) Reset(ctx context.Context) error {
	sql := fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", quoteIdent(p.schema))
	if _, err := p.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("resetting schema %s: %w", p.schema, err)
	}
	if _, err := p.pool.Exec(ctx, "CREATE SCHEMA "+quoteIdent(p.schema)); err != nil {
		return fmt.Errorf("creating schema %s: %w", p.schema, err)
	}
	return nil
}

// WriteTable bulk loads rows with COPY inside one transaction.
func (p *Postgres) WriteTable(ctx context.Context, table schema.Table, rows [][]any, mode Mode) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return writeError(table.Name, mode, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(p.schema)); err != nil {
		return writeError(table.Name, mode, err)
	}

	qualified := qualifyTable(p.schema, table.Name)
	switch mode {
	case ModeOverwrite:
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
			return writeError(table.Name, mode, err)
		}
		if _, err := tx.Exec(ctx, generateDDL(qualified, table, typemap.Postgres, false)); err != nil {
			return writeError(table.Name, mode, err)
		}
	case ModeAppend:
		if _, err := tx.Exec(ctx, generateDDL(qualified, table, typemap.Postgres, true)); err != nil {
			return writeError(table.Name, mode, err)
		}
	default:
		return writeError(table.Name, mode, fmt.Errorf("unknown mode"))
	}

	if len(rows) > 0 {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{p.schema, table.Name},
			table.ColumnNames(),
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return writeError(table.Name, mode, fmt.Errorf("copy: %w", err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return writeError(table.Name, mode, err)
	}
	return nil
}

// CreateIndexes builds an index per column in table.Indexed.
func (p *Postgres) CreateIndexes(ctx context.Context, table schema.Table) error {
	for _, col := range table.Indexed {
		sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(indexName(table.Name, col)), qualifyTable(p.schema, table.Name), quoteIdent(col))
		if _, err := p.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("indexing %s(%s): %w", table.Name, col, err)
		}
	}
	return nil
}

// Tables lists the schema's tables sorted by name with their row counts.
func (p *Postgres) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, p.schema)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}

	infos := make([]TableInfo, 0, len(names))
	for _, name := range names {
		var n int64
		if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+qualifyTable(p.schema, name)).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", name, err)
		}
		infos = append(infos, TableInfo{Name: name, Rows: n})
	}
	return infos, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
