// Command storyloom builds multi-chapter narratives from a premise: it
// extracts a story bible, plans and validates a skeleton, then drafts each
// unit sequentially over rolling context. State lives in a SQLite database so
// runs are resumable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/vampirenirmal/storyloom/internal/config"
	"github.com/vampirenirmal/storyloom/internal/core"
	"github.com/vampirenirmal/storyloom/internal/export"
	"github.com/vampirenirmal/storyloom/internal/llm"
	"github.com/vampirenirmal/storyloom/internal/logging"
	"github.com/vampirenirmal/storyloom/internal/pipeline"
	"github.com/vampirenirmal/storyloom/internal/prompt"
	"github.com/vampirenirmal/storyloom/internal/rolling"
	"github.com/vampirenirmal/storyloom/internal/store"
)

type options struct {
	configPath  string
	premisePath string
	units       int
	overwrite   bool
	reflect     bool
	dbPath      string
	stream      bool
	scan        bool
	exportDir   string
	verbose     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config.yaml (default: $XDG_CONFIG_HOME/storyloom/config.yaml)")
	flag.StringVar(&opts.premisePath, "premise", "", "path to the premise/outline text file")
	flag.IntVar(&opts.units, "units", 0, "number of content units to plan (0 = config value)")
	flag.BoolVar(&opts.overwrite, "overwrite", false, "redraft units that already have bodies")
	flag.BoolVar(&opts.reflect, "reflect", false, "route drafting through reflective optimization")
	flag.StringVar(&opts.dbPath, "db", "", "sqlite database path (overrides config)")
	flag.BoolVar(&opts.stream, "stream", false, "stream drafted prose to stdout as it generates")
	flag.BoolVar(&opts.scan, "scan", false, "report units whose context went stale, then exit")
	flag.StringVar(&opts.exportDir, "export", "", "after building, write drafted units as markdown into this directory")
	flag.BoolVar(&opts.verbose, "v", false, "debug logging")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "storyloom:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.Paths.DBPath = opts.dbPath
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	st, err := store.OpenSQLite(cfg.Paths.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.scan {
		return runScan(ctx, st, logger)
	}

	premise, err := readPremise(opts.premisePath)
	if err != nil {
		return err
	}

	service, err := buildService(cfg, logger)
	if err != nil {
		return err
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithPrompts(prompt.NewLibrary(cfg.Paths.PromptDir)),
	}
	if opts.stream {
		pipeOpts = append(pipeOpts, pipeline.WithStreamSink(func(s string) error {
			_, err := fmt.Print(s)
			return err
		}))
	}
	pipe := pipeline.New(st, service, pipeOpts...)

	unitCount := cfg.Build.UnitCount
	if opts.units > 0 {
		unitCount = opts.units
	}
	req := pipeline.Request{
		Premise:       premise,
		UnitCount:     unitCount,
		Overwrite:     opts.overwrite,
		Reflect:       opts.reflect || cfg.Build.Reflect,
		MaxIterations: cfg.Build.MaxIterations,
		TargetScore:   cfg.Build.TargetScore,
	}

	report, buildErr := pipe.AutoBuild(ctx, req)
	if opts.stream {
		fmt.Println()
	}
	printReport(os.Stdout, report)
	if buildErr != nil {
		return buildErr
	}

	if opts.exportDir != "" {
		units, err := st.ListUnits(ctx)
		if err != nil {
			return fmt.Errorf("listing units for export: %w", err)
		}
		written, err := export.WriteManuscript(opts.exportDir, units, logger)
		if err != nil {
			return err
		}
		if len(written) == 0 {
			fmt.Println("nothing to export: no unit has a drafted body")
		} else {
			fmt.Printf("exported %d files to %s\n", len(written), opts.exportDir)
		}
	}
	return nil
}

// readPremise loads and validates the premise file.
func readPremise(path string) (string, error) {
	if path == "" {
		return "", errors.New("a premise file is required: -premise <file>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading premise: %w", err)
	}
	premise := strings.TrimSpace(string(data))
	if premise == "" {
		return "", core.ErrNoPremise
	}
	return premise, nil
}

// buildService picks the TextService adapter for the configured provider.
func buildService(cfg config.Config, logger *slog.Logger) (core.TextService, error) {
	svc := cfg.Service
	switch svc.Provider {
	case "openai":
		return llm.NewOpenAI(svc.APIKey, svc.BaseURL, svc.Model,
			llm.WithOpenAITemperature(svc.Temperature),
			llm.WithOpenAIMaxTokens(svc.MaxTokens),
			llm.WithOpenAILogger(logger),
		), nil
	case "anthropic":
		return llm.NewAnthropic(svc.APIKey, svc.Model,
			llm.WithAnthropicBaseURL(svc.BaseURL),
			llm.WithAnthropicMaxTokens(svc.MaxTokens),
			llm.WithAnthropicTimeout(time.Duration(svc.TimeoutSeconds)*time.Second),
			llm.WithAnthropicRateLimit(svc.RateLimit.RequestsPerMinute, svc.RateLimit.Burst),
			llm.WithAnthropicLogger(logger),
		), nil
	case "mock":
		return llm.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", svc.Provider)
	}
}

// runScan reports units whose stored context hash no longer matches what
// assembly would produce today.
func runScan(ctx context.Context, st *store.SQLite, logger *slog.Logger) error {
	tracker := rolling.NewTracker(st, logger)
	stale, err := tracker.RefreshScan(ctx, 0)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		fmt.Println("all unit contexts are fresh")
		return nil
	}

	fmt.Printf("%d stale units:\n", len(stale))
	for _, id := range stale {
		unit, err := st.GetUnit(ctx, id)
		if err != nil {
			fmt.Printf("  %s\n", id)
			continue
		}
		title := unit.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("  %s  %s [%s]\n", id, title, unit.DraftStatus)
	}
	return nil
}

// printReport renders the per-unit outcome table.
func printReport(w *os.File, report pipeline.Report) {
	if len(report.Units) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tSTATUS\tSCORE\tTIME\tNOTE")
	for _, u := range report.Units {
		title := u.Title
		if title == "" {
			title = u.UnitID
		}
		score := "-"
		if u.Score > 0 {
			score = fmt.Sprintf("%.2f", u.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			core.Truncate(title, 32), u.Status, score, u.Duration.Round(time.Millisecond), u.Reason)
	}
	tw.Flush()
	fmt.Printf("run %s: %d drafted, %d skipped, %d failed in %s\n",
		report.RunID, report.Drafted(), report.Skipped(), report.Failed(),
		report.Duration.Round(time.Millisecond))
}
