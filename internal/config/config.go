package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/abdulachik/kfa/internal/llm"
	"github.com/abdulachik/kfa/internal/pipeline"
	"github.com/abdulachik/kfa/internal/reader"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "config.yaml"

// ModelsConfig names the models used for each pass.
type ModelsConfig struct {
	GlobalModel string `yaml:"global_model"` // scene map
	StyleModel  string `yaml:"style_model"`  // critique
}

// ParamsConfig holds the critique generation parameters.
type ParamsConfig struct {
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// ChunkingConfig selects and tunes segmentation.
type ChunkingConfig struct {
	Strategy               string `yaml:"strategy"`
	ChunkTokens            int    `yaml:"chunk_tokens"`
	OverlapTokens          int    `yaml:"overlap_tokens"`
	PreferSentenceBoundary bool   `yaml:"prefer_sentence_boundary"`
}

// IOConfig controls input parsing and exported artifacts.
type IOConfig struct {
	InputFormat string `yaml:"input_format"`
	ExportCSV   bool   `yaml:"export_csv"`
	OutputDir   string `yaml:"output_dir"`
}

// Config holds all application configuration.
type Config struct {
	Models   ModelsConfig   `yaml:"models"`
	Params   ParamsConfig   `yaml:"params"`
	Chunking ChunkingConfig `yaml:"chunking"`
	IO       IOConfig       `yaml:"io"`

	// Provider is the language model backend: openai, anthropic or ollama.
	Provider    string `yaml:"provider"`
	Concurrency int    `yaml:"concurrency"`

	// Run history database
	DatabasePath string `yaml:"database_path"`

	// Credentials and endpoints come from the environment only.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	OpenAIBaseURL   string `yaml:"-"`
	OllamaHost      string `yaml:"-"`

	LogLevel string `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	s := pipeline.DefaultSettings()
	return &Config{
		Models: ModelsConfig{
			GlobalModel: s.GlobalModel,
			StyleModel:  s.StyleModel,
		},
		Params: ParamsConfig{
			Temperature:     s.Temperature,
			MaxOutputTokens: s.MaxOutputTokens,
		},
		Chunking: ChunkingConfig{
			Strategy:               string(s.Strategy),
			ChunkTokens:            s.ChunkTokens,
			OverlapTokens:          s.OverlapTokens,
			PreferSentenceBoundary: s.PreferSentenceBoundary,
		},
		IO: IOConfig{
			InputFormat: s.InputFormat,
			ExportCSV:   s.ExportCSV,
			OutputDir:   s.OutputDir,
		},
		Provider:     llm.NameOpenAI,
		Concurrency:  s.Concurrency,
		DatabasePath: "data/kfa.db",
		OllamaHost:   "http://localhost:11434",
		LogLevel:     "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if it
// exists) and environment variables, in that order of precedence.
// It automatically loads .env file if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.OllamaHost = normalizeOllamaHost(cfg.OllamaHost)

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Models.GlobalModel = getEnv("KFA_GLOBAL_MODEL", c.Models.GlobalModel)
	c.Models.StyleModel = getEnv("KFA_STYLE_MODEL", c.Models.StyleModel)
	c.Provider = getEnv("KFA_PROVIDER", c.Provider)
	c.IO.OutputDir = getEnv("KFA_OUTPUT_DIR", c.IO.OutputDir)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("KFA_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid KFA_CONCURRENCY: %w", err)
		}
		c.Concurrency = n
	}
	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	switch pipeline.Strategy(c.Chunking.Strategy) {
	case pipeline.StrategyTokens, pipeline.StrategySceneMap:
	default:
		return fmt.Errorf("invalid chunking.strategy: %s (must be 'tokens' or 'scene_map')", c.Chunking.Strategy)
	}
	if c.Chunking.ChunkTokens <= 0 {
		return fmt.Errorf("chunking.chunk_tokens must be positive")
	}
	if c.Chunking.OverlapTokens < 0 {
		return fmt.Errorf("chunking.overlap_tokens must not be negative")
	}
	if c.Chunking.OverlapTokens >= c.Chunking.ChunkTokens {
		return fmt.Errorf("chunking.overlap_tokens must be less than chunk_tokens")
	}
	if c.Params.MaxOutputTokens <= 0 {
		return fmt.Errorf("params.max_output_tokens must be positive")
	}
	if c.Params.Temperature < 0 {
		return fmt.Errorf("params.temperature must not be negative")
	}
	if _, err := reader.ParseFormat(c.IO.InputFormat); err != nil {
		return fmt.Errorf("invalid io.input_format: %w", err)
	}
	if c.IO.OutputDir == "" {
		return fmt.Errorf("io.output_dir is required")
	}
	return nil
}

// ValidateForAnalysis checks configuration needed to call a provider.
func (c *Config) ValidateForAnalysis() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Models.StyleModel == "" {
		return fmt.Errorf("models.style_model is required")
	}
	if c.Chunking.Strategy == string(pipeline.StrategySceneMap) && c.Models.GlobalModel == "" {
		return fmt.Errorf("models.global_model is required for the scene_map strategy")
	}
	switch c.Provider {
	case llm.NameOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when provider is openai")
		}
	case llm.NameAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when provider is anthropic")
		}
	case llm.NameOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("OLLAMA_HOST is required when provider is ollama")
		}
	default:
		return fmt.Errorf("invalid provider: %s (must be 'openai', 'anthropic' or 'ollama')", c.Provider)
	}
	return nil
}

// LLM returns the backend settings for the configured provider.
func (c *Config) LLM() llm.Config {
	switch c.Provider {
	case llm.NameAnthropic:
		return llm.Config{APIKey: c.AnthropicAPIKey}
	case llm.NameOllama:
		return llm.Config{BaseURL: c.OllamaHost}
	default:
		return llm.Config{APIKey: c.OpenAIAPIKey, BaseURL: c.OpenAIBaseURL}
	}
}

// Settings returns the value object threaded through a pipeline run.
func (c *Config) Settings() pipeline.Settings {
	return pipeline.Settings{
		Strategy:               pipeline.Strategy(c.Chunking.Strategy),
		ChunkTokens:            c.Chunking.ChunkTokens,
		OverlapTokens:          c.Chunking.OverlapTokens,
		PreferSentenceBoundary: c.Chunking.PreferSentenceBoundary,
		Temperature:            c.Params.Temperature,
		MaxOutputTokens:        c.Params.MaxOutputTokens,
		ExportCSV:              c.IO.ExportCSV,
		InputFormat:            c.IO.InputFormat,
		GlobalModel:            c.Models.GlobalModel,
		StyleModel:             c.Models.StyleModel,
		OutputDir:              c.IO.OutputDir,
		Concurrency:            c.Concurrency,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// normalizeOllamaHost turns a bind address such as "0.0.0.0" (which the
// Ollama server reads from the same variable) into a client URL.
func normalizeOllamaHost(host string) string {
	switch host {
	case "", "0.0.0.0", "0.0.0.0:11434":
		return "http://localhost:11434"
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return "http://" + host
	}
	return host
}
