// Package orchestrator runs the PLAsTiCC ingest end to end: fetch the raw
// archive, convert both metadata tables, then stream every observation file
// into the train and test containers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/johndauphine/plasticc-ingest/internal/config"
	"github.com/johndauphine/plasticc-ingest/internal/fetch"
	"github.com/johndauphine/plasticc-ingest/internal/logging"
	"github.com/johndauphine/plasticc-ingest/internal/progress"
	"github.com/johndauphine/plasticc-ingest/internal/schema"
	"github.com/johndauphine/plasticc-ingest/internal/source"
	"github.com/johndauphine/plasticc-ingest/internal/store"
)

// StoreOpener opens the container for a split.
type StoreOpener func(ctx context.Context, split string) (store.Store, error)

// Orchestrator coordinates one ingest.
type Orchestrator struct {
	config    *config.Config
	client    *fetch.Client
	fetcher   *fetch.Fetcher
	openStore StoreOpener
	progress  io.Writer
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithStoreOpener replaces the configured store backend.
func WithStoreOpener(open StoreOpener) Option {
	return func(o *Orchestrator) { o.openStore = open }
}

// WithProgressOutput draws progress bars on w; nil disables them.
func WithProgressOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.progress = w }
}

// New creates an Orchestrator for cfg.
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	client := fetch.NewClient(fetch.Options{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})

	o := &Orchestrator{
		config:  cfg,
		client:  client,
		fetcher: fetch.NewFetcher(client),
		openStore: func(ctx context.Context, split string) (store.Store, error) {
			return store.Open(ctx, cfg, split)
		},
	}
	if cfg.ShowProgress() {
		o.progress = os.Stderr
	}
	for _, opt := range opts {
		opt(o)
	}
	o.fetcher.Progress = o.progress
	return o
}

// SplitResult holds the tables of one output container.
type SplitResult struct {
	Split  string
	Tables []store.TableInfo
}

// Result summarizes a completed run.
type Result struct {
	RunID    string
	Splits   []SplitResult
	Stats    Stats
	Duration time.Duration
}

// Rows returns the row count of table in split, or -1 if absent.
func (r *Result) Rows(split, table string) int64 {
	for _, s := range r.Splits {
		if s.Split != split {
			continue
		}
		for _, t := range s.Tables {
			if t.Name == table {
				return t.Rows
			}
		}
	}
	return -1
}

// Run performs the whole ingest. Steps run strictly in sequence; a failure
// stops the run and leaves containers that the next run regenerates.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	start := time.Now()
	logging.Info("Starting ingest run %s into %s", res.RunID, o.config.DataDir)

	if err := o.Fetch(ctx); err != nil {
		return nil, err
	}

	train, err := o.openStore(ctx, SplitTrain)
	if err != nil {
		return nil, fmt.Errorf("opening %s container: %w", SplitTrain, err)
	}
	defer closeStore(SplitTrain, train)

	test, err := o.openStore(ctx, SplitTest)
	if err != nil {
		return nil, fmt.Errorf("opening %s container: %w", SplitTest, err)
	}
	defer closeStore(SplitTest, test)

	if err := o.metadataStep(ctx, train, TrainMetadataFile); err != nil {
		return nil, err
	}
	if err := o.metadataStep(ctx, test, TestMetadataFile); err != nil {
		return nil, err
	}

	stats, err := o.observationsStep(ctx, train, []string{TrainObservationsFile})
	if err != nil {
		return nil, err
	}
	res.Stats.merge(stats)

	stats, err = o.observationsStep(ctx, test, TestObservationFiles(o.config.TestShards))
	if err != nil {
		return nil, err
	}
	res.Stats.merge(stats)

	for _, sp := range []struct {
		name string
		st   store.Store
	}{{SplitTrain, train}, {SplitTest, test}} {
		if err := o.indexStep(ctx, sp.st); err != nil {
			return nil, fmt.Errorf("%s container: %w", sp.name, err)
		}
		tables, err := sp.st.Tables(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s container: %w", sp.name, err)
		}
		res.Splits = append(res.Splits, SplitResult{Split: sp.name, Tables: tables})
	}

	res.Duration = time.Since(start)
	logging.Info("Run %s complete in %s", res.RunID, res.Duration.Round(time.Second))
	logging.Debug("Observation load: %s", res.Stats.String())
	return res, nil
}

// Fetch makes sure every raw file listed in the manifest is present and
// complete in the raw-data directory.
func (o *Orchestrator) Fetch(ctx context.Context) error {
	rawDir := o.config.RawDir()
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return fmt.Errorf("creating raw data directory: %w", err)
	}

	logging.Info("Reading manifest %s", o.config.ManifestURL)
	files, err := o.client.Manifest(ctx, o.config.ManifestURL)
	if err != nil {
		return err
	}
	if err := checkManifest(files, o.config.TestShards); err != nil {
		return err
	}

	for _, f := range files {
		if err := o.fetcher.EnsureDownloaded(ctx, f.URL, o.config.RawPath(f.Name), f.Size); err != nil {
			return err
		}
	}
	logging.Info("%d raw files present in %s", len(files), rawDir)
	return nil
}

// Inspect lists the tables and row counts of both containers. A SQLite
// container that was never written is reported with no tables.
func (o *Orchestrator) Inspect(ctx context.Context) ([]SplitResult, error) {
	var out []SplitResult
	for _, split := range []string{SplitTrain, SplitTest} {
		if o.config.Store.Type == config.StoreSQLite {
			if _, err := os.Stat(o.config.OutputPath(split)); errors.Is(err, os.ErrNotExist) {
				out = append(out, SplitResult{Split: split})
				continue
			}
		}

		st, err := o.openStore(ctx, split)
		if err != nil {
			return nil, fmt.Errorf("opening %s container: %w", split, err)
		}
		tables, err := st.Tables(ctx)
		closeStore(split, st)
		if err != nil {
			return nil, fmt.Errorf("%s container: %w", split, err)
		}
		out = append(out, SplitResult{Split: split, Tables: tables})
	}
	return out, nil
}

// metadataStep resets the container and writes its metadata table.
func (o *Orchestrator) metadataStep(ctx context.Context, st store.Store, name string) error {
	if err := st.Reset(ctx); err != nil {
		return err
	}

	r, err := source.Open(o.config.RawPath(name), schema.MetadataInput, o.config.ChunkSize)
	if err != nil {
		return err
	}
	defer r.Close()

	start := time.Now()
	n, err := loadMetadata(ctx, r, st)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	logging.Info("Loaded %s: %d objects in %s", name, n, time.Since(start).Round(time.Millisecond))
	return nil
}

// observationsStep appends every file in names, in order.
func (o *Orchestrator) observationsStep(ctx context.Context, st store.Store, names []string) (Stats, error) {
	var total Stats
	for _, name := range names {
		stats, err := o.loadObservationFile(ctx, st, name)
		total.merge(stats)
		if err != nil {
			return total, fmt.Errorf("%s: %w", name, err)
		}
	}
	return total, nil
}

func (o *Orchestrator) loadObservationFile(ctx context.Context, st store.Store, name string) (Stats, error) {
	r, err := source.Open(o.config.RawPath(name), schema.ObservationsInput, o.config.ChunkSize)
	if err != nil {
		return Stats{}, err
	}
	defer r.Close()

	var tr *progress.Tracker
	if o.progress != nil {
		tr = progress.NewRows(name, o.progress)
	}

	stats, err := streamObservations(ctx, r, st, tr)
	if err != nil {
		if tr != nil {
			tr.Abort()
		}
		return stats, err
	}
	if tr != nil {
		tr.Finish()
	}
	logging.Info("Loaded %s: %d observations in %d batches (%.0f rows/sec)",
		name, stats.Rows, stats.Batches, stats.RowsPerSecond())
	return stats, nil
}

// indexStep indexes the observations table once all shards are loaded. An
// empty append first guarantees the table exists when every shard was empty.
func (o *Orchestrator) indexStep(ctx context.Context, st store.Store) error {
	if err := st.WriteTable(ctx, schema.ObservationsTable, nil, store.ModeAppend); err != nil {
		return err
	}
	start := time.Now()
	if err := st.CreateIndexes(ctx, schema.ObservationsTable); err != nil {
		return err
	}
	logging.Debug("Indexed observations in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func closeStore(split string, st store.Store) {
	if err := st.Close(); err != nil {
		logging.Warn("Closing %s container: %v", split, err)
	}
}
