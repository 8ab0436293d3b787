package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/reverie/pkg/log"
)

// RoleEndpoint configures one AI role group. The three groups mirror the
// pipeline roles: storyteller, summarizer (small+big merges) and logic
// (director + architect).
type RoleEndpoint struct {
	BaseURL     string  `env:"BASE_URL" envDefault:"https://api.openai.com"`
	APIKey      string  `env:"API_KEY"`
	Model       string  `env:"MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.7"`
}

type LLMConfig struct {
	Story   RoleEndpoint `envPrefix:"REVERIE_STORY_"`
	Summary RoleEndpoint `envPrefix:"REVERIE_SUMMARY_"`
	Logic   RoleEndpoint `envPrefix:"REVERIE_LOGIC_"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}
