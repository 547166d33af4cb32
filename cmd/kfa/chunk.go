package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abdulachik/kfa/internal/chunker"
	"github.com/abdulachik/kfa/internal/config"
	"github.com/abdulachik/kfa/internal/reader"
)

var (
	chunkInput   string
	chunkFormat  string
	chunkTokens  int
	chunkOverlap int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Preview token segmentation",
	Long: `Split a keynote with the tokens strategy and print the segments without
calling a language model.`,
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().StringVarP(&chunkInput, "input", "i", "", "Path to keynote file")
	chunkCmd.Flags().StringVar(&chunkFormat, "format", "", "Input format: auto, txt, md, docx or srt")
	chunkCmd.Flags().IntVar(&chunkTokens, "chunk-tokens", 0, "Target segment size in estimated tokens")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap-tokens", 0, "Overlap carried into the next segment")
	_ = chunkCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.IO.InputFormat = chunkFormat
	}
	if flags.Changed("chunk-tokens") {
		cfg.Chunking.ChunkTokens = chunkTokens
	}
	if flags.Changed("overlap-tokens") {
		cfg.Chunking.OverlapTokens = chunkOverlap
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	doc, err := reader.Read(chunkInput, cfg.IO.InputFormat)
	if err != nil {
		return err
	}

	segments := chunker.New(cfg.Settings().ChunkerConfig()).ChunkText(doc.Content)

	rows := make([][]string, 0, len(segments))
	for _, seg := range segments {
		rows = append(rows, []string{
			strconv.Itoa(seg.Index),
			strconv.Itoa(len(seg.Sentences)),
			strconv.Itoa(seg.Tokens),
			strconv.Itoa(seg.OverlapTokens),
			preview(seg.Text, 60),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s): %d segments\n", doc.Path, doc.Format, len(segments))
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(out,
			[]string{"Segment", "Sentences", "Tokens", "Overlap", "Text"}, rows,
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft}))
	}
	return nil
}
