package app

import (
	"fmt"
	"net/http"

	"github.com/wadjakorntonsri/go-collections/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-collections/pkg/adapters/llm"
	"github.com/wadjakorntonsri/go-collections/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-collections/pkg/config"
	"github.com/wadjakorntonsri/go-collections/pkg/core/services"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
)

// App holds the wired services shared by the server, the serverless entrypoint and the CLI.
type App struct {
	Repo        *sqlite.SQLiteRepository
	Collections *services.CollectionService
	AI          *services.AIService
	Handler     http.Handler
}

func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	collections := services.NewCollectionService(repo, repo, services.StubPermissionOracle{}, logger.Named("collections"))

	var provider ports.LLMProvider
	if p, err := llm.NewProvider(cfg, logger.Named("llm")); err != nil {
		logger.Warn("ai sql disabled", zap.Error(err))
	} else {
		provider = p
	}
	ai := services.NewAIService(repo, sqlite.NewSchemaConnector(), provider, services.AIConfig{
		MaxTables:          cfg.AskAIMaxTables,
		MaxColumnsPerTable: cfg.AskAIMaxColumnsPerTable,
		ContextMaxChars:    cfg.AskAIContextMaxChars,
	}, logger.Named("ai"))

	return &App{
		Repo:        repo,
		Collections: collections,
		AI:          ai,
		Handler:     handler.NewRouter(cfg, collections, ai, repo, logger.Named("http")),
	}, nil
}

func (a *App) Close() error {
	return a.Repo.Close()
}
