package main

import (
	"os"
	"os/signal"

	"github.com/sandevgo/reverie/pkg/log"
	"github.com/sandevgo/reverie/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Continue the story session",
	Long:  `Loads the persisted session state and enters the interactive story loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, false)
	},
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a fresh story",
	Long:  `Wipes the persisted session state, generates the opening beat and enters the interactive story loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd, true)
	},
}

func runSession(cmd *cobra.Command, fresh bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// logger setup
	var flushLog func()
	ctx, flushLog = setupLogger(ctx)
	defer flushLog()

	logger := log.FromCtx(ctx)
	logger.Info().Msg("starting reverie")

	app := NewApp(ctx)
	srv.StartServices(ctx, app.Services)

	if fresh {
		if err := app.Memory.Reset(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to reset session state")
			stop()
			srv.ShutdownServices(ctx, app.Services)
			return err
		}
		app.Chat.Print(app.Session.RunOpening(ctx))
	}

	// The chat loop runs in the foreground; leaving it shuts everything down.
	err := app.Chat.Start(ctx)
	stop()

	srv.ShutdownServices(ctx, app.Services)
	if shutdownErr := app.Chat.Shutdown(ctx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("chat transport failed to shutdown")
	}

	logger.Info().Msg("reverie has been shut down gracefully")
	if err != nil && err != ctx.Err() {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(newCmd)
}
