// Package pipeline drives a keynote through reading, segmentation, critique,
// merging and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abdulachik/kfa/internal/analyzer"
	"github.com/abdulachik/kfa/internal/chunker"
	"github.com/abdulachik/kfa/internal/db"
	"github.com/abdulachik/kfa/internal/llm"
	"github.com/abdulachik/kfa/internal/reader"
	"github.com/abdulachik/kfa/internal/report"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// State is a stage of a run.
type State string

const (
	StateReading    State = "reading"
	StateSegmenting State = "segmenting"
	StateAnalyzing  State = "analyzing"
	StateMerging    State = "merging"
	StateExporting  State = "exporting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

var (
	// ErrOutputLocked is returned when another run holds the output directory.
	ErrOutputLocked = errors.New("output directory is locked by another run")

	// ErrUnknownStrategy is returned for a strategy other than tokens or scene_map.
	ErrUnknownStrategy = errors.New("unknown segmentation strategy")
)

// Config wires a pipeline.
type Config struct {
	Provider llm.Provider
	// ProviderName is recorded in the run history.
	ProviderName string
	// Store is optional; without it runs are not recorded.
	Store    *db.Store
	Settings Settings
}

// Pipeline runs keynotes through the analysis stages.
type Pipeline struct {
	provider     llm.Provider
	providerName string
	store        *db.Store
	settings     Settings
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		provider:     cfg.Provider,
		providerName: cfg.ProviderName,
		store:        cfg.Store,
		settings:     cfg.Settings,
	}
}

// Settings returns the settings the pipeline was built with.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Result describes a completed run.
type Result struct {
	RunID    string
	Document reader.Document
	// SceneMap is the raw model output when the scene_map strategy was used.
	SceneMap    string
	Scenes      []string
	Segments    []chunker.Segment
	Results     []report.Result
	Report      string
	ReportPath  string
	SummaryPath string
}

// Run analyzes the document at inputPath and writes the report (and the CSV
// summary when enabled) to the output directory. Any failure aborts the run;
// files already written are left in place.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	outDir := p.settings.OutputDir
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(outDir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, outDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release output lock", "dir", outDir, "error", err)
		}
	}()

	res := &Result{RunID: uuid.NewString()}
	h := newHistory(p.store, res.RunID)
	log := slog.With("run", res.RunID)

	fail := func(state State, err error) (*Result, error) {
		log.Error("run failed", "state", state, "error", err)
		h.failed(ctx, err)
		return nil, fmt.Errorf("pipeline: %s: %w", state, err)
	}

	log.Info("run started", "input", inputPath, "strategy", p.settings.Strategy)
	h.start(ctx, db.CreateRunParams{
		InputPath:   inputPath,
		InputFormat: p.settings.InputFormat,
		Strategy:    string(p.settings.Strategy),
		Provider:    p.providerName,
		StyleModel:  p.settings.StyleModel,
		State:       string(StateReading),
	})

	doc, err := reader.Read(inputPath, p.settings.InputFormat)
	if err != nil {
		return fail(StateReading, err)
	}
	res.Document = doc
	log.Info("document read", "format", doc.Format, "chars", len(doc.Content))

	h.transition(ctx, StateSegmenting)
	res.Segments, res.SceneMap, res.Scenes, err = p.segment(ctx, doc.Content)
	if err != nil {
		return fail(StateSegmenting, err)
	}
	h.segments(ctx, len(res.Segments))
	log.Info("document segmented", "segments", len(res.Segments))

	h.transition(ctx, StateAnalyzing)
	res.Results, err = p.Analyze(ctx, res.Segments)
	if err != nil {
		return fail(StateAnalyzing, err)
	}
	h.results(ctx, res.Results)

	h.transition(ctx, StateMerging)
	res.Report = report.Merge(res.Results)

	h.transition(ctx, StateExporting)
	res.ReportPath = filepath.Join(outDir, report.ReportFile)
	if err := report.WriteReport(res.ReportPath, res.Report); err != nil {
		return fail(StateExporting, err)
	}
	if p.settings.ExportCSV {
		res.SummaryPath = filepath.Join(outDir, report.SummaryFile)
		if err := report.WriteSummary(res.SummaryPath, res.Results); err != nil {
			return fail(StateExporting, err)
		}
	}

	h.done(ctx, res.ReportPath, res.SummaryPath)
	log.Info("run complete", "report", res.ReportPath, "summary", res.SummaryPath)

	return res, nil
}

// Segment splits text with the configured strategy. The scene_map strategy
// makes one provider call with the global model and returns its raw output
// and parsed labels.
func (p *Pipeline) Segment(ctx context.Context, text string) ([]chunker.Segment, string, []string, error) {
	return p.segment(ctx, text)
}

func (p *Pipeline) segment(ctx context.Context, text string) ([]chunker.Segment, string, []string, error) {
	switch p.settings.Strategy {
	case StrategyTokens, "":
		return chunker.New(p.settings.ChunkerConfig()).ChunkText(text), "", nil, nil
	case StrategySceneMap:
		sceneMap, err := analyzer.BuildSceneMap(ctx, p.provider, p.settings.GlobalModel, text)
		if err != nil {
			return nil, "", nil, err
		}
		scenes := analyzer.ParseSceneMap(sceneMap)
		if len(scenes) == 0 {
			slog.Warn("scene map has no scenes, analyzing whole document")
		}
		return analyzer.CutByScenes(text, scenes), sceneMap, scenes, nil
	default:
		return nil, "", nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, p.settings.Strategy)
	}
}

// Analyze critiques every segment with the style model. At most
// Settings.Concurrency calls are in flight; results are returned in segment
// order regardless of completion order. The first failure stops new calls
// from being issued.
func (p *Pipeline) Analyze(ctx context.Context, segments []chunker.Segment) ([]report.Result, error) {
	results := make([]report.Result, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.workers())

	for i, seg := range segments {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			slog.Info("analyzing segment",
				"segment", seg.Index,
				"total", len(segments),
				"tokens", seg.Tokens,
			)

			out, err := analyzer.Critique(gctx, p.provider, p.settings.StyleModel, seg.Text,
				p.settings.Temperature, p.settings.MaxOutputTokens)
			if err != nil {
				return fmt.Errorf("segment %d: %w", seg.Index, err)
			}

			slog.Debug("segment analyzed", "segment", seg.Index, "elapsed", time.Since(start))
			results[i] = report.Result{Segment: seg, Analysis: out}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
