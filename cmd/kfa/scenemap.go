package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulachik/kfa/internal/analyzer"
	"github.com/abdulachik/kfa/internal/config"
	"github.com/abdulachik/kfa/internal/llm"
	"github.com/abdulachik/kfa/internal/reader"
)

var (
	sceneMapInput  string
	sceneMapFormat string
)

var sceneMapCmd = &cobra.Command{
	Use:   "scenemap",
	Short: "Generate a scene map",
	Long: `Ask the global model for a scene map of the whole keynote and print the
raw map followed by the parsed scene labels.`,
	RunE: runSceneMap,
}

func init() {
	sceneMapCmd.Flags().StringVarP(&sceneMapInput, "input", "i", "", "Path to keynote file")
	sceneMapCmd.Flags().StringVar(&sceneMapFormat, "format", "", "Input format: auto, txt, md, docx or srt")
	_ = sceneMapCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(sceneMapCmd)
}

func runSceneMap(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("format") {
		cfg.IO.InputFormat = sceneMapFormat
	}
	if err := cfg.ValidateForAnalysis(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	provider, err := llm.New(cfg.Provider, cfg.LLM())
	if err != nil {
		return err
	}

	doc, err := reader.Read(sceneMapInput, cfg.IO.InputFormat)
	if err != nil {
		return err
	}

	sceneMap, err := analyzer.BuildSceneMap(ctx, provider, cfg.Models.GlobalModel, doc.Content)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, sceneMap)
	fmt.Fprintln(out)

	scenes := analyzer.ParseSceneMap(sceneMap)
	if len(scenes) == 0 {
		fmt.Fprintln(out, "No scenes found in the map.")
		return nil
	}
	fmt.Fprintf(out, "Scenes (%d):\n", len(scenes))
	for i, scene := range scenes {
		fmt.Fprintf(out, "  %d. %s\n", i+1, scene)
	}
	return nil
}
