package app

import (
	"context"
	"fmt"

	"github.com/abdulachik/kfa/internal/config"
	"github.com/abdulachik/kfa/internal/db"
	"github.com/abdulachik/kfa/internal/llm"
	"github.com/abdulachik/kfa/internal/pipeline"
)

// App is the main application container holding all dependencies.
type App struct {
	Config   *config.Config
	Store    *db.Store
	Provider llm.Provider
	Pipeline *pipeline.Pipeline
}

// New creates a new application instance with all dependencies wired up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	provider, err := llm.New(cfg.Provider, cfg.LLM())
	if err != nil {
		return nil, err
	}

	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &App{
		Config:   cfg,
		Store:    store,
		Provider: provider,
		Pipeline: pipeline.New(pipeline.Config{
			Provider:     provider,
			ProviderName: cfg.Provider,
			Store:        store,
			Settings:     cfg.Settings(),
		}),
	}, nil
}

// Close closes all resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
