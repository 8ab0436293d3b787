package main

import (
	"context"
	"fmt"

	"github.com/sandevgo/reverie/internal/config"
	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/internal/providers/llm"
	"github.com/sandevgo/reverie/internal/service/ui"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available on the configured endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}

		llmCfg := config.NewLLMConfig(ctx)
		clients := llm.NewRoleClients(llmCfg)

		printModels(ctx, "Story", clients.Story, llmCfg.Story.Model)
		printModels(ctx, "Summary", clients.Summary, llmCfg.Summary.Model)
		printModels(ctx, "Logic", clients.Logic, llmCfg.Logic.Model)
		return nil
	},
}

func printModels(ctx context.Context, role string, client core.ChatClient, configured string) {
	fmt.Println(ui.TitleStyle.Render(role))

	models, err := client.Models(ctx)
	if err != nil {
		fmt.Println(ui.DescStyle.Render("  unavailable: " + err.Error()))
		return
	}

	for _, model := range models {
		if model == configured {
			fmt.Println("  " + ui.UsageStyle.Render(model+" (configured)"))
			continue
		}
		fmt.Println("  " + ui.DescStyle.Render(model))
	}
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
