package prompt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandevgo/reverie/internal/config"
	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/pkg/log"
)

// fakeMemory satisfies MemoryReader with canned values.
type fakeMemory struct {
	big      string
	smalls   []core.SmallSummary
	history  []core.Message
	guidance string
	scene    core.SceneState
}

func (f *fakeMemory) BigSummary() string                  { return f.big }
func (f *fakeMemory) SmallSummaries() []core.SmallSummary { return f.smalls }
func (f *fakeMemory) RawHistory() []core.Message          { return f.history }
func (f *fakeMemory) PlotGuidanceText() string            { return f.guidance }
func (f *fakeMemory) Scene() core.SceneState              { return f.scene }

func newFakeMemory() *fakeMemory {
	return &fakeMemory{
		big:      "the story so far",
		guidance: "- go outside",
		scene:    core.NewSceneState(),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, string(data))
}

// newTestAssembler builds an assembler over a temp asset tree with a
// storyteller sequence and a director sequence.
func newTestAssembler(t *testing.T, mem MemoryReader) (*Assembler, *config.AppConfig, context.Context) {
	t.Helper()
	ctx, flush := log.NewContextWithLogger(context.Background(), false)
	t.Cleanup(flush)

	assets := t.TempDir()
	cfg := &config.AppConfig{RuntimePath: t.TempDir(), AssetsPath: assets}

	writeFile(t, filepath.Join(assets, "core_rules.txt"), "Always stay in character.")
	writeJSON(t, cfg.GetPromptConfigPath(), Config{
		FileMap: map[string]string{
			"core_rules": filepath.Join(assets, "core_rules.txt"),
		},
		Sequences: map[string][]SequenceItem{
			"storyteller": {
				{Type: ItemFile, Key: "core_rules"},
				{Type: ItemText, Content: "## Story So Far"},
				{Type: ItemDynamic, Key: "big_summary"},
				{Type: ItemDynamic, Key: "history"},
			},
			"director": {
				{Type: ItemText, Content: "You add stage directions."},
				{Type: ItemDynamic, Key: "story_text"},
			},
		},
	})

	return NewAssembler(ctx, cfg, mem), cfg, ctx
}

func TestAssembleOrderAndJoining(t *testing.T) {
	mem := newFakeMemory()
	assembler, _, ctx := newTestAssembler(t, mem)

	got := assembler.Assemble(ctx, "storyteller", nil)
	want := "Always stay in character.\n\n## Story So Far\n\nthe story so far"
	// history resolves empty in flat assembly and is dropped
	if got != want {
		t.Fatalf("assembled = %q, want %q", got, want)
	}
}

func TestAssembleParamsOverrideDispatch(t *testing.T) {
	mem := newFakeMemory()
	assembler, _, ctx := newTestAssembler(t, mem)

	got := assembler.Assemble(ctx, "director", map[string]string{"story_text": "She opened the door."})
	want := "You add stage directions.\n\nShe opened the door."
	if got != want {
		t.Fatalf("assembled = %q, want %q", got, want)
	}
}

func TestAssembleUnknownSequence(t *testing.T) {
	assembler, _, ctx := newTestAssembler(t, newFakeMemory())
	if got := assembler.Assemble(ctx, "nonexistent", nil); got != "" {
		t.Fatalf("unknown sequence produced %q", got)
	}
}

func TestStorytellerPayloadSplicesHistory(t *testing.T) {
	mem := newFakeMemory()
	mem.history = []core.Message{
		{Role: core.RoleUser, Content: "hello"},
		{Role: core.RoleAssistant, Content: "hi"},
	}
	assembler, _, ctx := newTestAssembler(t, mem)

	payload := assembler.StorytellerPayload(ctx)
	if len(payload) != 3 {
		t.Fatalf("payload length = %d, want 3", len(payload))
	}
	if payload[0].Role != core.RoleSystem {
		t.Fatalf("first message role = %s", payload[0].Role)
	}
	if !strings.Contains(payload[0].Content, "Always stay in character.") ||
		!strings.Contains(payload[0].Content, "the story so far") {
		t.Fatalf("system message = %q", payload[0].Content)
	}
	if payload[1].Content != "hello" || payload[2].Content != "hi" {
		t.Fatal("history not spliced in order")
	}
}

func TestDateContext(t *testing.T) {
	mem := newFakeMemory()
	mem.scene.Date = "2026-01-07" // campaign day 2, a Wednesday

	ctx, flush := log.NewContextWithLogger(context.Background(), false)
	t.Cleanup(flush)

	assets := t.TempDir()
	cfg := &config.AppConfig{RuntimePath: t.TempDir(), AssetsPath: assets}
	writeJSON(t, cfg.GetPromptConfigPath(), Config{})
	writeJSON(t, cfg.GetDateGuidancePath(), []DateGuidance{
		{Date: "Day 2", Outline: "First day of classes."},
	})

	assembler := NewAssembler(ctx, cfg, mem)
	got := assembler.dateContext()

	for _, want := range []string{
		"Current Date: 2026-01-07",
		"Day of Week: Wednesday",
		"Season: Winter",
		"**Special Event / Guidance for Today:** First day of classes.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("date context missing %q:\n%s", want, got)
		}
	}
}

func TestAttitudeStepFunction(t *testing.T) {
	npc := ImportantNPC{
		Name: "mira",
		Rules: []FavorRule{
			{Threshold: 80, Attitude: "Devoted"},
			{Threshold: 40, Attitude: "Friendly"},
			{Threshold: 0, Attitude: "Polite"},
		},
	}

	tests := []struct {
		favor int
		want  string
	}{
		{100, "Devoted"},
		{80, "Devoted"},
		{79, "Friendly"},
		{40, "Friendly"},
		{5, "Polite"},
		{0, "Polite"},
		{-10, "Neutral"},
	}
	for _, tt := range tests {
		if got := npc.Attitude(tt.favor); got != tt.want {
			t.Errorf("Attitude(%d) = %q, want %q", tt.favor, got, tt.want)
		}
	}
}

func TestAffectionContextDefault(t *testing.T) {
	assembler, _, _ := newTestAssembler(t, newFakeMemory())
	got := assembler.affectionContext()
	if !strings.Contains(got, "(No significant relationships yet.)") {
		t.Fatalf("affection context = %q", got)
	}
}

func TestRenderTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opening.txt")
	writeFile(t, path, "Persona: {{user_persona}}\nPlan: {{opening_plan}}")

	got, err := RenderTemplate(path, map[string]string{
		"user_persona": "a tired archivist",
		"opening_plan": "start in the rain",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Persona: a tired archivist\nPlan: start in the rain" {
		t.Fatalf("rendered = %q", got)
	}

	if _, err := RenderTemplate(filepath.Join(t.TempDir(), "missing.txt"), nil); err == nil {
		t.Fatal("expected error for missing template")
	}
}
