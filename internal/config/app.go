package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/reverie/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"REVERIE_RUNTIME_PATH" envDefault:".reverie"`
	AssetsPath  string `env:"REVERIE_ASSETS_PATH" envDefault:"assets"`
	SessionID   string `env:"REVERIE_SESSION_ID" envDefault:"default"`

	// Memory thresholds. Limits count entries before a compaction job is
	// due; buffers count entries kept behind for context continuity.
	RawHistoryLimit       int `env:"REVERIE_RAW_HISTORY_LIMIT" envDefault:"20"`
	RawHistoryBuffer      int `env:"REVERIE_RAW_HISTORY_BUFFER" envDefault:"3"`
	SmallSummaryThreshold int `env:"REVERIE_SMALL_SUMMARY_THRESHOLD" envDefault:"10"`
	SmallSummaryBuffer    int `env:"REVERIE_SMALL_SUMMARY_BUFFER" envDefault:"3"`
	PlotPlanningThreshold int `env:"REVERIE_PLOT_PLANNING_THRESHOLD" envDefault:"5"`

	// Retry tuning for AI calls.
	RetryDelay            time.Duration `env:"REVERIE_RETRY_DELAY" envDefault:"2s"`
	MaxRetries            int           `env:"REVERIE_MAX_RETRIES" envDefault:"3"`
	CriticalRetryInterval time.Duration `env:"REVERIE_CRITICAL_RETRY_INTERVAL" envDefault:"60s"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "reverie.db")
}

func (c AppConfig) GetSavesPath() string {
	return filepath.Join(c.RuntimePath, "saves")
}

func (c AppConfig) GetPromptConfigPath() string {
	return filepath.Join(c.AssetsPath, "prompts.json")
}

func (c AppConfig) GetDateGuidancePath() string {
	return filepath.Join(c.AssetsPath, "world", "date_guidance.json")
}

func (c AppConfig) GetNPCPath() string {
	return filepath.Join(c.AssetsPath, "npcs")
}

func (c AppConfig) GetMusicRegistryPath() string {
	return filepath.Join(c.AssetsPath, "registry.json")
}

func (c AppConfig) GetSoundMapPath() string {
	return filepath.Join(c.AssetsPath, "sound_map.json")
}

func (c AppConfig) GetPersonaPath() string {
	return filepath.Join(c.AssetsPath, "user", "persona.txt")
}

func (c AppConfig) GetOpeningPlannerPath() string {
	return filepath.Join(c.AssetsPath, "prompts", "opening", "planner.txt")
}

func (c AppConfig) GetOpeningStorytellerPath() string {
	return filepath.Join(c.AssetsPath, "prompts", "opening", "storyteller.txt")
}
