package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/johndauphine/plasticc-ingest/internal/config"
	"github.com/johndauphine/plasticc-ingest/internal/logging"
	"github.com/johndauphine/plasticc-ingest/internal/orchestrator"
	"github.com/johndauphine/plasticc-ingest/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    version.Name,
		Usage:   version.Description,
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (defaults apply when omitted)",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory for raw downloads and output containers",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text or json",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable progress bars",
			},
			&cli.BoolFlag{
				Name:  "output-json",
				Usage: "Print the result as JSON on stdout",
			},
			&cli.StringFlag{
				Name:  "output-file",
				Usage: "Write the result as JSON to this file",
			},
		},
		Action: runIngest,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Download the archive and build both containers (default)",
				Action: runIngest,
			},
			{
				Name:   "fetch",
				Usage:  "Download missing or incomplete raw files only",
				Action: fetchRaw,
			},
			{
				Name:   "inspect",
				Usage:  "List tables and row counts of the output containers",
				Action: inspectOutputs,
			},
		},
	}
}

// loadConfig reads the config file, applies flag overrides and sets up logging.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("data-dir") {
		cfg.SetDataDir(c.String("data-dir"))
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if c.Bool("no-progress") {
		off := false
		cfg.Progress = &off
	}

	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", cfg.Logging.Format)
	}
	logging.SetLevel(level)
	logging.SetFormat(cfg.Logging.Format)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			logging.Warn("Interrupted; stopping. Containers will be rebuilt on the next run.")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runIngest(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	res, err := orchestrator.New(cfg).Run(ctx)
	if err != nil {
		return err
	}

	report := newRunReport(res)
	if wantsJSON(c) {
		return outputJSON(c, report)
	}
	printSplits(os.Stdout, report.Splits)
	return nil
}

func fetchRaw(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return orchestrator.New(cfg).Fetch(ctx)
}

func inspectOutputs(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	splits, err := orchestrator.New(cfg).Inspect(context.Background())
	if err != nil {
		return err
	}

	reports := newSplitReports(splits)
	if wantsJSON(c) {
		return outputJSON(c, reports)
	}
	printSplits(os.Stdout, reports)
	return nil
}

// runReport is the JSON form of a completed run.
type runReport struct {
	RunID           string        `json:"run_id"`
	DurationSeconds float64       `json:"duration_seconds"`
	RowsPerSecond   float64       `json:"rows_per_second"`
	Splits          []splitReport `json:"splits"`
}

type splitReport struct {
	Split  string        `json:"split"`
	Tables []tableReport `json:"tables"`
}

type tableReport struct {
	Name string `json:"name"`
	Rows int64  `json:"rows"`
}

func newRunReport(res *orchestrator.Result) runReport {
	return runReport{
		RunID:           res.RunID,
		DurationSeconds: res.Duration.Seconds(),
		RowsPerSecond:   res.Stats.RowsPerSecond(),
		Splits:          newSplitReports(res.Splits),
	}
}

func newSplitReports(splits []orchestrator.SplitResult) []splitReport {
	out := make([]splitReport, 0, len(splits))
	for _, s := range splits {
		r := splitReport{Split: s.Split, Tables: []tableReport{}}
		for _, t := range s.Tables {
			r.Tables = append(r.Tables, tableReport{Name: t.Name, Rows: t.Rows})
		}
		out = append(out, r)
	}
	return out
}

func printSplits(w io.Writer, splits []splitReport) {
	for _, s := range splits {
		if len(s.Tables) == 0 {
			fmt.Fprintf(w, "%s: no tables\n", s.Split)
			continue
		}
		for _, t := range s.Tables {
			fmt.Fprintf(w, "%s.%-14s %12d rows\n", s.Split, t.Name, t.Rows)
		}
	}
}

func wantsJSON(c *cli.Context) bool {
	return c.Bool("output-json") || c.String("output-file") != ""
}

// outputJSON writes v to stdout (--output-json) and/or a file (--output-file).
func outputJSON(c *cli.Context, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if path := c.String("output-file"); path != "" {
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
	}
	if c.Bool("output-json") {
		fmt.Println(string(data))
	}
	return nil
}
