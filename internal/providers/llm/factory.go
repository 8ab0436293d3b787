package llm

import (
	"github.com/sandevgo/reverie/internal/config"
	"github.com/sandevgo/reverie/internal/core"
)

// RoleClients bundle the three endpoint groups of the pipeline.
type RoleClients struct {
	Story   core.ChatClient
	Summary core.ChatClient
	Logic   core.ChatClient

	StoryTemperature   float64
	SummaryTemperature float64
	LogicTemperature   float64
}

func NewRoleClients(cfg *config.LLMConfig) *RoleClients {
	build := func(ep config.RoleEndpoint) core.ChatClient {
		return NewOpenAICompatible(Config{
			BaseURL: ep.BaseURL,
			APIKey:  ep.APIKey,
			Model:   ep.Model,
		})
	}
	return &RoleClients{
		Story:              build(cfg.Story),
		Summary:            build(cfg.Summary),
		Logic:              build(cfg.Logic),
		StoryTemperature:   cfg.Story.Temperature,
		SummaryTemperature: cfg.Summary.Temperature,
		LogicTemperature:   cfg.Logic.Temperature,
	}
}
