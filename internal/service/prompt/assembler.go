package prompt

import (
	"context"
	"os"
	"strings"

	"github.com/sandevgo/reverie/internal/config"
	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/pkg/log"
)

const (
	// StorytellerSequence is the reserved sequence assembled as a chat
	// payload instead of a flat string.
	StorytellerSequence = "storyteller"

	// historyKey marks the splice point for the raw-history message list.
	historyKey = "history"
)

// MemoryReader is the slice of the memory store the assembler reads from.
type MemoryReader interface {
	BigSummary() string
	SmallSummaries() []core.SmallSummary
	RawHistory() []core.Message
	PlotGuidanceText() string
	Scene() core.SceneState
}

// Assembler resolves named prompt sequences into flat strings or chat
// payloads, pulling dynamic context from memory and the asset tree.
type Assembler struct {
	appCfg *config.AppConfig
	cfg    *Config
	mem    MemoryReader
	npcs   *NPCRegistry

	dateGuidance []DateGuidance
	dynamic      map[string]func(ctx context.Context) string
}

func NewAssembler(ctx context.Context, appCfg *config.AppConfig, mem MemoryReader) *Assembler {
	logger := log.FromCtx(ctx)

	cfg, err := LoadConfig(appCfg.GetPromptConfigPath())
	if err != nil {
		logger.Warn().Err(err).Msg("prompt config unavailable, sequences will be empty")
		cfg = &Config{FileMap: map[string]string{}, Sequences: map[string][]SequenceItem{}}
	}

	guidance, err := LoadDateGuidance(appCfg.GetDateGuidancePath())
	if err != nil {
		logger.Warn().Err(err).Msg("date guidance unavailable")
	}

	a := &Assembler{
		appCfg:       appCfg,
		cfg:          cfg,
		mem:          mem,
		npcs:         LoadNPCRegistry(ctx, appCfg.GetNPCPath()),
		dateGuidance: guidance,
	}
	a.dynamic = a.buildDispatch()
	return a
}

// Assemble resolves the named sequence into one prompt string. Items whose
// resolved content is empty are dropped; the rest joins with blank lines in
// declared order; callers rely on that order, so it is never changed.
// params supplies caller pass-through values like story_text.
func (a *Assembler) Assemble(ctx context.Context, sequenceName string, params map[string]string) string {
	sequence, ok := a.cfg.Sequences[sequenceName]
	if !ok {
		log.FromCtx(ctx).Warn().Str("sequence", sequenceName).Msg("unknown prompt sequence")
		return ""
	}

	var parts []string
	for _, item := range sequence {
		if content := a.resolveItem(ctx, item, params); content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// StorytellerPayload assembles the storyteller sequence as a chat payload:
// every resolved item concatenates into a single system message, except the
// history item, which splices the raw-history message list in place.
func (a *Assembler) StorytellerPayload(ctx context.Context) []core.Message {
	sequence := a.cfg.Sequences[StorytellerSequence]

	var systemParts []string
	var history []core.Message

	for _, item := range sequence {
		if item.Key == historyKey {
			history = a.mem.RawHistory()
			continue
		}
		if content := a.resolveItem(ctx, item, nil); content != "" {
			systemParts = append(systemParts, content)
		}
	}

	messages := []core.Message{{Role: core.RoleSystem, Content: strings.Join(systemParts, "\n\n")}}
	return append(messages, history...)
}

func (a *Assembler) resolveItem(ctx context.Context, item SequenceItem, params map[string]string) string {
	switch item.Type {
	case ItemFile:
		return a.loadFile(ctx, item.Key)
	case ItemText:
		return item.Content
	case ItemDynamic:
		return a.resolveDynamic(ctx, item.Key, params)
	}
	return ""
}

func (a *Assembler) resolveDynamic(ctx context.Context, key string, params map[string]string) string {
	if value, ok := params[key]; ok {
		return value
	}
	if generator, ok := a.dynamic[key]; ok {
		return generator(ctx)
	}
	log.FromCtx(ctx).Warn().Str("key", key).Msg("unknown dynamic prompt key")
	return ""
}

// loadFile reads the file mapped to the logical key, trimmed. A missing
// mapping or file is a soft failure contributing nothing.
func (a *Assembler) loadFile(ctx context.Context, key string) string {
	path, ok := a.cfg.FileMap[key]
	if !ok {
		log.FromCtx(ctx).Warn().Str("key", key).Msg("prompt file key not mapped")
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("key", key).Str("path", path).Msg("prompt file unreadable")
		return ""
	}
	return strings.TrimSpace(string(data))
}

// RenderTemplate loads a template file and substitutes {{name}} variables.
// Used by the opening sequence; a missing template is a hard error there.
func RenderTemplate(path string, vars map[string]string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := string(data)
	for name, value := range vars {
		text = strings.ReplaceAll(text, "{{"+name+"}}", value)
	}
	return text, nil
}
