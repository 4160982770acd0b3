package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/linguabot/internal/config"
	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/internal/providers/llm"
	"github.com/sandevgo/linguabot/internal/service/chat"
	"github.com/sandevgo/linguabot/internal/service/memory"
	"github.com/sandevgo/linguabot/internal/storage/file"
	"github.com/sandevgo/linguabot/internal/storage/sqlite"
	"github.com/sandevgo/linguabot/internal/transport/http"
	"github.com/sandevgo/linguabot/pkg/log"
	"github.com/sandevgo/linguabot/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	err := initEnv(ctx, config.GetRuntimePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)

	// 2. Storage
	repo, cleanup, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	if cleanup != nil {
		services = append(services, srv.NewCleanup(cleanup))
	}

	// 3. AI Provider
	aiProvider, err := llm.NewProvider(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	// 4. Session memory
	registry := memory.NewRegistry(
		repo,
		memory.NewPlanner(aiProvider),
		memory.NewRanker(aiProvider),
		memory.WithMaxSessions(appCfg.SessionCacheMax),
		memory.WithIdleTTL(appCfg.SessionCacheTTL),
	)

	// 5. Chat service
	chatService := chat.NewService(registry, aiProvider, appCfg.DefaultLanguage)

	// 6. Transport
	services = append(services, http.NewServer(ctx, chatService, appCfg.ListenAddr))

	return services
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (core.SessionRepository, func() error, error) {
	switch cfg.StorageBackend {
	case "sqlite":
		db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewSessionsRepo(db), db.Close, nil
	default:
		return file.NewStore(cfg.GetMemoryPath()), nil, nil
	}
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
