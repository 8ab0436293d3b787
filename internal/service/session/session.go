package session

import (
	"context"
	"os"
	"strings"

	"github.com/sandevgo/reverie/internal/config"
	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/internal/providers/llm"
	"github.com/sandevgo/reverie/internal/service/memory"
	"github.com/sandevgo/reverie/internal/service/prompt"
	"github.com/sandevgo/reverie/pkg/log"
	"github.com/sandevgo/reverie/pkg/retry"
)

const (
	tagStory = "game"
	tagFinal = "finally"
	tagSmall = "summary_little"
	tagBig   = "summary_big"
	tagGuide = "guide"

	defaultPersona = "Unknown"
)

// Session drives the turn pipeline: user input goes through the
// storyteller and director in sequence, the clean story text lands in
// memory, and compaction jobs run on a background worker between turns.
type Session struct {
	cfg       *config.AppConfig
	mem       *memory.Store
	assembler *prompt.Assembler
	tokens    *prompt.TokenCounter
	state     *State

	story   *Caller
	summary *Caller
	logic   *Caller

	kick chan struct{}
}

func New(ctx context.Context, cfg *config.AppConfig, clients *llm.RoleClients, mem *memory.Store, assembler *prompt.Assembler) *Session {
	state := NewState()
	bounded := retry.NewRetrier(retry.NewFixedConfig(cfg.MaxRetries, cfg.RetryDelay))

	return &Session{
		cfg:       cfg,
		mem:       mem,
		assembler: assembler,
		tokens:    prompt.NewTokenCounter(ctx),
		state:     state,
		story:     NewCaller(clients.Story, clients.StoryTemperature, bounded, cfg.CriticalRetryInterval, state),
		summary:   NewCaller(clients.Summary, clients.SummaryTemperature, bounded, cfg.CriticalRetryInterval, state),
		logic:     NewCaller(clients.Logic, clients.LogicTemperature, bounded, cfg.CriticalRetryInterval, state),
		kick:      make(chan struct{}, 1),
	}
}

// Status reports the current activity state and, when blocked, the reason
// shown to the player.
func (s *Session) Status() (Status, string) {
	return s.state.Snapshot()
}

// ExecuteTurn runs one full user turn. The returned string is always
// printable: story output on success, a paused or error notice otherwise.
// On any pipeline failure the user message stays in memory but no
// assistant message is appended.
func (s *Session) ExecuteTurn(ctx context.Context, userInput string) string {
	logger := log.FromCtx(ctx)

	if reason, ok := s.state.BeginTurn(); !ok {
		return core.PausedNotice(reason)
	}
	defer s.state.EndTurn()

	if err := s.mem.Append(ctx, core.RoleUser, userInput); err != nil {
		logger.Warn().Err(err).Msg("failed to persist user message")
	}

	payload := s.assembler.StorytellerPayload(ctx)
	logger.Debug().
		Int("messages", len(payload)).
		Int("tokens", s.tokens.CountMessages(payload)).
		Msg("storyteller payload assembled")

	storyText, err := s.story.Generate(ctx, "Storyteller", payload, CallOpts{Tag: tagStory})
	if err != nil {
		return core.ErrorNotice("Failed to generate response: " + err.Error())
	}

	finalOutput, err := s.runDirector(ctx, storyText)
	if err != nil {
		return core.ErrorNotice("Failed to generate response: " + err.Error())
	}

	// The clean story text goes to memory; the directed output is what the
	// player sees. Stage directions would only burn context in history.
	if err := s.mem.Append(ctx, core.RoleAssistant, storyText); err != nil {
		logger.Warn().Err(err).Msg("failed to persist assistant message")
	}

	s.state.EndTurn()
	s.Kick()

	return finalOutput
}

// runDirector layers stage directions over clean story text.
func (s *Session) runDirector(ctx context.Context, storyText string) (string, error) {
	system := s.assembler.Assemble(ctx, "director", map[string]string{"story_text": storyText})
	messages := []core.Message{
		{Role: core.RoleSystem, Content: system},
		{Role: core.RoleUser, Content: "Add stage directions to this text:\n\n" + storyText},
	}
	return s.logic.Generate(ctx, "Director", messages, CallOpts{Tag: tagFinal})
}

// RunOpening produces the first story beat of a fresh session: the planner
// drafts an opening plan from the player persona, the storyteller writes
// the beat, and the director stages it. There is no user message for this
// beat.
func (s *Session) RunOpening(ctx context.Context) string {
	logger := log.FromCtx(ctx)

	if reason, ok := s.state.BeginTurn(); !ok {
		return core.PausedNotice(reason)
	}
	defer s.state.EndTurn()

	persona := defaultPersona
	if data, err := os.ReadFile(s.cfg.GetPersonaPath()); err == nil {
		persona = strings.TrimSpace(string(data))
	}

	planInput, err := prompt.RenderTemplate(s.cfg.GetOpeningPlannerPath(), map[string]string{
		"user_persona": persona,
	})
	if err != nil {
		return core.ErrorNotice("Opening planner prompt missing.")
	}

	logger.Info().Msg("opening: running planner")
	openingPlan, err := s.logic.Generate(ctx, "Opening Planner",
		[]core.Message{{Role: core.RoleUser, Content: planInput}},
		CallOpts{Tag: tagGuide})
	if err != nil {
		return core.ErrorNotice("Failed to plan the opening: " + err.Error())
	}

	storyInput, err := prompt.RenderTemplate(s.cfg.GetOpeningStorytellerPath(), map[string]string{
		"user_persona": persona,
		"opening_plan": openingPlan,
	})
	if err != nil {
		return core.ErrorNotice("Opening storyteller prompt missing.")
	}

	logger.Info().Msg("opening: running storyteller")
	storyText, err := s.story.Generate(ctx, "Opening Storyteller",
		[]core.Message{{Role: core.RoleUser, Content: storyInput}},
		CallOpts{Tag: tagStory})
	if err != nil {
		return core.ErrorNotice("Failed to write the opening: " + err.Error())
	}

	if err := s.mem.Append(ctx, core.RoleAssistant, storyText); err != nil {
		logger.Warn().Err(err).Msg("failed to persist opening beat")
	}

	logger.Info().Msg("opening: running director")
	finalOutput, err := s.runDirector(ctx, storyText)
	if err != nil {
		return core.ErrorNotice("Failed to stage the opening: " + err.Error())
	}

	return finalOutput
}
