package orchestrator

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/johndauphine/plasticc-ingest/internal/progress"
	"github.com/johndauphine/plasticc-ingest/internal/schema"
	"github.com/johndauphine/plasticc-ingest/internal/source"
	"github.com/johndauphine/plasticc-ingest/internal/store"
	"github.com/johndauphine/plasticc-ingest/internal/transform"
)

// tableWriter is the part of store.Store the loaders write through.
type tableWriter interface {
	WriteTable(ctx context.Context, table schema.Table, rows [][]any, mode store.Mode) error
}

// loadMetadata reads a metadata file chunk by chunk and writes it as one
// table, replacing any previous metadata table. Only the output rows are
// kept across chunks. It returns the number of rows.
func loadMetadata(ctx context.Context, r *source.Reader, w tableWriter) (int64, error) {
	table := schema.MetadataTable(r.Binding().Optional())
	mapper := transform.NewMetadataMapper()

	// A header-only file still replaces the table with an empty one.
	var rows [][]any
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		raw, err := transform.DecodeMetadata(batch)
		if err != nil {
			return 0, err
		}
		mapped, err := mapper.Map(raw)
		if err != nil {
			return 0, err
		}
		rows = append(rows, transform.MetadataRows(mapped)...)
	}

	if err := w.WriteTable(ctx, table, rows, store.ModeOverwrite); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// streamObservations converts the reader's batches in file order and appends
// each to the observations table. Only one batch is held at a time.
func streamObservations(ctx context.Context, r *source.Reader, w tableWriter, tr *progress.Tracker) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		start := time.Now()
		batch, err := r.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		stats.ReadTime += time.Since(start)

		start = time.Now()
		raw, err := transform.DecodeObservations(batch)
		if err != nil {
			return stats, err
		}
		obs, err := transform.MapObservations(raw)
		if err != nil {
			return stats, err
		}
		rows := transform.ObservationRows(obs)
		stats.ConvertTime += time.Since(start)

		start = time.Now()
		if err := w.WriteTable(ctx, schema.ObservationsTable, rows, store.ModeAppend); err != nil {
			return stats, err
		}
		stats.WriteTime += time.Since(start)

		stats.Rows += int64(len(rows))
		stats.Batches++
		if tr != nil {
			tr.Add(int64(len(rows)))
		}
	}
}
