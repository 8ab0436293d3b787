package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/reverie/internal/config"
	"github.com/sandevgo/reverie/internal/providers/llm"
	"github.com/sandevgo/reverie/internal/service/memory"
	"github.com/sandevgo/reverie/internal/service/prompt"
	"github.com/sandevgo/reverie/internal/service/session"
	"github.com/sandevgo/reverie/internal/storage/saves"
	"github.com/sandevgo/reverie/internal/storage/sqlite"
	"github.com/sandevgo/reverie/internal/transport/cli"
	"github.com/sandevgo/reverie/pkg/log"
	"github.com/sandevgo/reverie/pkg/srv"
)

// App bundles the wired components of one story session. Services carries
// the background worker and cleanups; Chat is the foreground readline loop.
type App struct {
	Services []srv.Service
	Chat     *cli.ReadLine
	Session  *session.Session
	Memory   *memory.Store
}

func NewApp(ctx context.Context) *App {
	logger := log.FromCtx(ctx)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	llmCfg := config.NewLLMConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}

	store, err := memory.NewStore(ctx, memory.Config{
		RawHistoryLimit:       appCfg.RawHistoryLimit,
		RawHistoryBuffer:      appCfg.RawHistoryBuffer,
		SmallSummaryThreshold: appCfg.SmallSummaryThreshold,
		SmallSummaryBuffer:    appCfg.SmallSummaryBuffer,
		PlotPlanningThreshold: appCfg.PlotPlanningThreshold,
	}, sqlite.NewMemoryRepo(db))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to hydrate memory")
	}

	// Compaction visibility without polling
	store.AddObserver(func() {
		logger.Debug().Msg("memory summaries changed")
	})

	// 3. Prompt assembly over the live memory
	assembler := prompt.NewAssembler(ctx, appCfg, store)

	// 4. Model clients, one per pipeline role
	clients := llm.NewRoleClients(llmCfg)

	// 5. Orchestrator
	sess := session.New(ctx, appCfg, clients, store, assembler)

	// 6. Chat transport
	chat, err := cli.NewReadLine(sess, store, saves.NewManager(appCfg.GetSavesPath()), appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize chat transport")
	}

	return &App{
		Services: []srv.Service{
			srv.NewCleanup(db.Close),
			sess,
		},
		Chat:    chat,
		Session: sess,
		Memory:  store,
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
