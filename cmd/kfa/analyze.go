package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abdulachik/kfa/internal/app"
	"github.com/abdulachik/kfa/internal/config"
	"github.com/abdulachik/kfa/internal/report"
)

var (
	analyzeInput       string
	analyzeStrategy    string
	analyzeFormat      string
	analyzeOutputDir   string
	analyzeConcurrency int
	analyzeNoCSV       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a keynote and write the report",
	Long: `Read a keynote, segment it, critique every segment with the style model
and write keynote_kfa.md (plus keynote_kfa_notes.csv) to the output directory.

Examples:
  kfa analyze --input talk.md
  kfa analyze --input talk.srt --strategy scene_map
  kfa analyze --input talk.docx --concurrency 4 --out reports`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeInput, "input", "i", "", "Path to keynote text, markdown, docx or srt")
	analyzeCmd.Flags().StringVar(&analyzeStrategy, "strategy", "", "Segmentation strategy: tokens or scene_map")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "", "Input format: auto, txt, md, docx or srt")
	analyzeCmd.Flags().StringVar(&analyzeOutputDir, "out", "", "Output directory")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "Segments analyzed in parallel")
	analyzeCmd.Flags().BoolVar(&analyzeNoCSV, "no-csv", false, "Skip the CSV summary")
	_ = analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

// applyAnalyzeFlags lets explicit flags win over file and environment values.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Chunking.Strategy = analyzeStrategy
	}
	if flags.Changed("format") {
		cfg.IO.InputFormat = analyzeFormat
	}
	if flags.Changed("out") {
		cfg.IO.OutputDir = analyzeOutputDir
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = analyzeConcurrency
	}
	if analyzeNoCSV {
		cfg.IO.ExportCSV = false
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyAnalyzeFlags(cmd, cfg)

	if err := cfg.ValidateForAnalysis(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("starting analysis",
		"input", analyzeInput,
		"provider", cfg.Provider,
		"style_model", cfg.Models.StyleModel,
		"concurrency", cfg.Concurrency,
	)

	res, err := a.Pipeline.Run(ctx, analyzeInput)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(res.Results))
	for _, row := range report.Summarize(res.Results) {
		rows = append(rows, []string{
			strconv.Itoa(row.ChunkID),
			strconv.Itoa(res.Results[row.ChunkID].Segment.Tokens),
			preview(row.Diagnosis, 80),
		})
	}

	out := cmd.OutOrStdout()
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(out, []string{"Scene", "Tokens", "Diagnosis"}, rows,
			[]columnAlignment{alignRight, alignRight, alignLeft}))
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Run:     %s\n", res.RunID)
	fmt.Fprintf(out, "Report:  %s\n", res.ReportPath)
	if res.SummaryPath != "" {
		fmt.Fprintf(out, "Summary: %s\n", res.SummaryPath)
	}
	return nil
}
