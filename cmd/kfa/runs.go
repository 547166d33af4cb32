package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdulachik/kfa/internal/config"
	"github.com/abdulachik/kfa/internal/db"
)

var (
	runsLimit int
	runsID    string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show analysis run history",
	Long: `List recent analysis runs, or show the per-segment diagnoses of one run.

Examples:
  kfa runs
  kfa runs --limit 50
  kfa runs --id 3f0c...`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
	runsCmd.Flags().StringVar(&runsID, "id", "", "Show segments of a single run")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	// Ensure migrations are run
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if runsID != "" {
		return showRun(ctx, cmd, store, runsID)
	}

	total, err := store.CountRuns(ctx)
	if err != nil {
		return fmt.Errorf("count runs: %w", err)
	}

	runs, err := store.ListRuns(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database: %s (%d runs)\n", cfg.DatabasePath, total)
	if len(runs) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		segments := "-"
		if r.TotalSegments.Valid {
			segments = strconv.FormatInt(r.TotalSegments.Int64, 10)
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.State,
			r.Strategy,
			segments,
			preview(r.InputPath, 40),
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"ID", "Started", "State", "Strategy", "Segments", "Input"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
	return nil
}

func showRun(ctx context.Context, cmd *cobra.Command, store *db.Store, id string) error {
	run, err := store.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.ID)
	fmt.Fprintf(out, "Input:    %s (%s)\n", run.InputPath, run.InputFormat)
	fmt.Fprintf(out, "Strategy: %s\n", run.Strategy)
	fmt.Fprintf(out, "Provider: %s / %s\n", run.Provider, run.StyleModel)
	fmt.Fprintf(out, "State:    %s\n", run.State)
	if run.ErrorMessage.Valid {
		fmt.Fprintf(out, "Error:    %s\n", run.ErrorMessage.String)
	}
	if run.ReportPath.Valid {
		fmt.Fprintf(out, "Report:   %s\n", run.ReportPath.String)
	}
	if run.FinishedAt.Valid {
		fmt.Fprintf(out, "Duration: %s\n", run.FinishedAt.Time.Sub(run.StartedAt).Round(time.Millisecond))
	}

	results, err := store.ListSegmentResults(ctx, id)
	if err != nil {
		return fmt.Errorf("list segment results: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.FormatInt(r.SegmentIndex, 10),
			strconv.FormatInt(r.Tokens, 10),
			preview(r.Diagnosis, 80),
		})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(out, []string{"Scene", "Tokens", "Diagnosis"}, rows,
		[]columnAlignment{alignRight, alignRight, alignLeft}))
	return nil
}
