package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdulachik/kfa/internal/analyzer"
	"github.com/abdulachik/kfa/internal/chunker"
	"github.com/abdulachik/kfa/internal/db"
	"github.com/abdulachik/kfa/internal/llm"
	"github.com/abdulachik/kfa/internal/report"
	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keynote = "We start with a story. The room goes quiet. Then the data arrives. " +
	"Numbers tell a second story. We close with a call to action. Everyone stands up."

// snippet pulls the segment text back out of a critique prompt.
func snippet(messages []llm.Message) string {
	user := messages[len(messages)-1].Content
	_, rest, ok := strings.Cut(user, "[SNIPPET]:\n")
	if !ok {
		return ""
	}
	text, _, _ := strings.Cut(rest, "\n\n[CONTEXT]")
	return text
}

func isSceneMap(messages []llm.Message) bool {
	return strings.HasPrefix(messages[len(messages)-1].Content, analyzer.SceneMapPrompt)
}

// echoProvider critiques a segment by quoting it back in a diagnosis line.
func echoProvider() llm.Provider {
	return llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
		if isSceneMap(messages) {
			return "[SCENES]:\n- Opening story\n- Data reveal\n- Call to action", nil
		}
		return "[DIAGNOSIS]: " + snippet(messages) + "\n[REWRITE]: same\n[RATIONALE]: fine", nil
	})
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testSettings(t *testing.T) Settings {
	s := DefaultSettings()
	s.ChunkTokens = 10
	s.OverlapTokens = 5
	s.OutputDir = filepath.Join(t.TempDir(), "out")
	return s
}

func newTestStore(t *testing.T) *db.Store {
	t.Helper()
	ctx := context.Background()
	store, err := db.NewStore(ctx, filepath.Join(t.TempDir(), "kfa.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPipeline_Run(t *testing.T) {
	t.Run("tokens strategy writes report and summary", func(t *testing.T) {
		settings := testSettings(t)
		p := New(Config{Provider: echoProvider(), Settings: settings})

		res, err := p.Run(context.Background(), writeInput(t, "talk.txt", keynote))
		require.NoError(t, err)
		require.Greater(t, len(res.Segments), 1)
		require.Len(t, res.Results, len(res.Segments))

		for i, r := range res.Results {
			assert.Equal(t, i, r.Segment.Index)
			assert.Equal(t, "[DIAGNOSIS]: "+r.Segment.Text+"\n[REWRITE]: same\n[RATIONALE]: fine", r.Analysis)
		}

		data, err := os.ReadFile(filepath.Join(settings.OutputDir, report.ReportFile))
		require.NoError(t, err)
		assert.Equal(t, report.Merge(res.Results), string(data))
		assert.True(t, strings.HasPrefix(string(data), report.Title+"\n\n## Scene 0\n"))

		csvData, err := os.ReadFile(filepath.Join(settings.OutputDir, report.SummaryFile))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSuffix(string(csvData), "\r\n"), "\r\n")
		assert.Equal(t, "chunk_id,tags,diagnosis_1line", lines[0])
		assert.Len(t, lines, len(res.Segments)+1)
		assert.Equal(t, res.SummaryPath, filepath.Join(settings.OutputDir, report.SummaryFile))
	})

	t.Run("skips summary when export disabled", func(t *testing.T) {
		settings := testSettings(t)
		settings.ExportCSV = false
		p := New(Config{Provider: echoProvider(), Settings: settings})

		res, err := p.Run(context.Background(), writeInput(t, "talk.md", keynote))
		require.NoError(t, err)
		assert.Empty(t, res.SummaryPath)

		_, err = os.Stat(filepath.Join(settings.OutputDir, report.SummaryFile))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("scene map strategy analyzes whole document once", func(t *testing.T) {
		settings := testSettings(t)
		settings.Strategy = StrategySceneMap
		settings.GlobalModel = "global"
		settings.StyleModel = "style"

		var mu sync.Mutex
		var models []string
		var temps []float64
		provider := llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
			mu.Lock()
			models = append(models, opts.Model)
			temps = append(temps, opts.Temperature)
			mu.Unlock()
			return echoProvider().Respond(ctx, messages, opts)
		})

		p := New(Config{Provider: provider, Settings: settings})
		res, err := p.Run(context.Background(), writeInput(t, "talk.txt", keynote))
		require.NoError(t, err)

		assert.Equal(t, []string{"global", "style"}, models)
		assert.InDelta(t, analyzer.SceneMapTemperature, temps[0], 1e-9)
		assert.Equal(t, []string{"Opening story", "Data reveal", "Call to action"}, res.Scenes)
		require.Len(t, res.Segments, 1)
		assert.Equal(t, keynote, res.Segments[0].Text)
	})

	t.Run("empty document produces title-only report", func(t *testing.T) {
		settings := testSettings(t)
		var calls atomic.Int32
		provider := llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
			calls.Add(1)
			return "", nil
		})

		p := New(Config{Provider: provider, Settings: settings})
		res, err := p.Run(context.Background(), writeInput(t, "empty.txt", "  \n"))
		require.NoError(t, err)
		assert.Empty(t, res.Segments)
		assert.Equal(t, report.Title+"\n", res.Report)
		assert.Zero(t, calls.Load())
	})

	t.Run("unsupported format fails before segmentation", func(t *testing.T) {
		settings := testSettings(t)
		settings.InputFormat = "pdf"
		p := New(Config{Provider: echoProvider(), Settings: settings})

		_, err := p.Run(context.Background(), writeInput(t, "talk.txt", keynote))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline: reading")
	})

	t.Run("unknown strategy fails in segmenting", func(t *testing.T) {
		settings := testSettings(t)
		settings.Strategy = "paragraphs"
		p := New(Config{Provider: echoProvider(), Settings: settings})

		_, err := p.Run(context.Background(), writeInput(t, "talk.txt", keynote))
		assert.ErrorIs(t, err, ErrUnknownStrategy)
		assert.Contains(t, err.Error(), "pipeline: segmenting")
	})

	t.Run("provider failure aborts the run", func(t *testing.T) {
		settings := testSettings(t)
		var calls atomic.Int32
		provider := llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
			if calls.Add(1) == 2 {
				return "", errors.Join(llm.ErrProviderFailure, errors.New("rate limited"))
			}
			return "[DIAGNOSIS]: ok", nil
		})

		p := New(Config{Provider: provider, Settings: settings})
		_, err := p.Run(context.Background(), writeInput(t, "talk.txt", keynote))
		require.Error(t, err)
		assert.ErrorIs(t, err, llm.ErrProviderFailure)
		assert.Contains(t, err.Error(), "pipeline: analyzing")
		assert.Equal(t, int32(2), calls.Load())

		_, statErr := os.Stat(filepath.Join(settings.OutputDir, report.ReportFile))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("refuses locked output directory", func(t *testing.T) {
		settings := testSettings(t)
		require.NoError(t, os.MkdirAll(settings.OutputDir, 0755))

		held := flock.New(filepath.Join(settings.OutputDir, LockFile))
		ok, err := held.TryLock()
		require.NoError(t, err)
		require.True(t, ok)
		defer held.Unlock()

		p := New(Config{Provider: echoProvider(), Settings: settings})
		_, err = p.Run(context.Background(), writeInput(t, "talk.txt", keynote))
		assert.ErrorIs(t, err, ErrOutputLocked)
	})

	t.Run("records history", func(t *testing.T) {
		store := newTestStore(t)
		settings := testSettings(t)
		p := New(Config{Provider: echoProvider(), ProviderName: "openai", Store: store, Settings: settings})

		res, err := p.Run(context.Background(), writeInput(t, "talk.txt", keynote))
		require.NoError(t, err)

		ctx := context.Background()
		run, err := store.GetRun(ctx, res.RunID)
		require.NoError(t, err)
		assert.Equal(t, string(StateDone), run.State)
		assert.Equal(t, "openai", run.Provider)
		assert.Equal(t, int64(len(res.Segments)), run.TotalSegments.Int64)
		assert.Equal(t, res.ReportPath, run.ReportPath.String)

		stored, err := store.ListSegmentResults(ctx, res.RunID)
		require.NoError(t, err)
		require.Len(t, stored, len(res.Results))
		for i, s := range stored {
			assert.Equal(t, res.Results[i].Analysis, s.Analysis)
			assert.Equal(t, report.DiagnosisLine(s.Analysis), s.Diagnosis)
		}
	})

	t.Run("records failure in history", func(t *testing.T) {
		store := newTestStore(t)
		settings := testSettings(t)
		provider := llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
			return "", llm.ErrProviderFailure
		})

		p := New(Config{Provider: provider, Store: store, Settings: settings})
		_, err := p.Run(context.Background(), writeInput(t, "talk.txt", keynote))
		require.Error(t, err)

		runs, err := store.ListRuns(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, string(StateFailed), runs[0].State)
		assert.True(t, runs[0].ErrorMessage.Valid)
	})
}

func TestPipeline_Analyze(t *testing.T) {
	t.Run("keeps segment order under concurrency", func(t *testing.T) {
		settings := testSettings(t)
		settings.Concurrency = 4

		p := New(Config{Provider: echoProvider(), Settings: settings})
		segments, _, _, err := p.Segment(context.Background(), strings.Repeat(keynote+" ", 5))
		require.NoError(t, err)
		require.Greater(t, len(segments), 4)

		// Later segments finish first.
		slow := llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
			text := snippet(messages)
			for i, seg := range segments {
				if seg.Text == text {
					time.Sleep(time.Duration(len(segments)-i) * time.Millisecond)
					break
				}
			}
			return "[DIAGNOSIS]: " + text, nil
		})
		p = New(Config{Provider: slow, Settings: settings})

		results, err := p.Analyze(context.Background(), segments)
		require.NoError(t, err)
		require.Len(t, results, len(segments))
		for i, r := range results {
			assert.Equal(t, segments[i], r.Segment)
			assert.Equal(t, "[DIAGNOSIS]: "+segments[i].Text, r.Analysis)
		}
	})

	t.Run("bounds in-flight calls", func(t *testing.T) {
		settings := testSettings(t)
		settings.Concurrency = 2

		var inFlight, peak atomic.Int32
		provider := llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
			n := inFlight.Add(1)
			for {
				cur := peak.Load()
				if n <= cur || peak.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return "ok", nil
		})

		p := New(Config{Provider: provider, Settings: settings})
		segments, _, _, err := p.Segment(context.Background(), strings.Repeat(keynote+" ", 4))
		require.NoError(t, err)

		_, err = p.Analyze(context.Background(), segments)
		require.NoError(t, err)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("sequential by default", func(t *testing.T) {
		settings := testSettings(t)

		var mu sync.Mutex
		var order []string
		provider := llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
			mu.Lock()
			order = append(order, snippet(messages))
			mu.Unlock()
			return "ok", nil
		})

		p := New(Config{Provider: provider, Settings: settings})
		segments, _, _, err := p.Segment(context.Background(), keynote)
		require.NoError(t, err)

		_, err = p.Analyze(context.Background(), segments)
		require.NoError(t, err)
		require.Len(t, order, len(segments))
		for i, seg := range segments {
			assert.Equal(t, seg.Text, order[i])
		}
	})

	t.Run("passes critique parameters", func(t *testing.T) {
		settings := testSettings(t)
		settings.StyleModel = "style-model"
		settings.Temperature = 0.7
		settings.MaxOutputTokens = 321

		var got llm.Options
		provider := llm.Func(func(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
			got = opts
			return "ok", nil
		})

		p := New(Config{Provider: provider, Settings: settings})
		_, err := p.Analyze(context.Background(), mustSegment(t, p, "One sentence."))
		require.NoError(t, err)
		assert.Equal(t, llm.Options{Model: "style-model", Temperature: 0.7, MaxOutputTokens: 321}, got)
	})
}

func mustSegment(t *testing.T, p *Pipeline, text string) []chunker.Segment {
	t.Helper()
	segments, _, _, err := p.Segment(context.Background(), text)
	require.NoError(t, err)
	return segments
}
