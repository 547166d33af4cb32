package pipeline

import "github.com/abdulachik/kfa/internal/chunker"

// Strategy selects how a document is segmented.
type Strategy string

const (
	StrategyTokens   Strategy = "tokens"
	StrategySceneMap Strategy = "scene_map"
)

// LockFile is held inside Settings.OutputDir for the duration of a run.
const LockFile = ".kfa.lock"

// Settings is read once when a pipeline is built and never changes during a
// run.
type Settings struct {
	Strategy               Strategy
	ChunkTokens            int
	OverlapTokens          int
	PreferSentenceBoundary bool

	Temperature     float64
	MaxOutputTokens int

	ExportCSV   bool
	InputFormat string

	GlobalModel string // scene map
	StyleModel  string // critique

	OutputDir string

	// Concurrency bounds in-flight critique calls. Values below 2 analyze
	// segments one at a time in index order.
	Concurrency int
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	cc := chunker.DefaultConfig()
	return Settings{
		Strategy:               StrategyTokens,
		ChunkTokens:            cc.TargetTokens,
		OverlapTokens:          cc.OverlapTokens,
		PreferSentenceBoundary: cc.PreferSentenceBoundary,
		Temperature:            0.2,
		MaxOutputTokens:        1500,
		ExportCSV:              true,
		InputFormat:            "auto",
		GlobalModel:            "gpt-4",
		StyleModel:             "gpt-4o-mini",
		OutputDir:              "out",
		Concurrency:            1,
	}
}

// ChunkerConfig returns the segmenter parameters.
func (s Settings) ChunkerConfig() chunker.Config {
	return chunker.Config{
		TargetTokens:           s.ChunkTokens,
		OverlapTokens:          s.OverlapTokens,
		PreferSentenceBoundary: s.PreferSentenceBoundary,
	}
}

func (s Settings) workers() int {
	return max(1, s.Concurrency)
}
