package prompt

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/reverie/pkg/log"
)

// campaignStart anchors the "Day N" labels of date guidance: 2026-01-06 is
// Day 1.
var campaignStart = time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC)

// buildDispatch constructs the closed table of dynamic content generators.
// The valid key set is fixed here at startup; prompts.json cannot invent
// new ones.
func (a *Assembler) buildDispatch() map[string]func(ctx context.Context) string {
	return map[string]func(ctx context.Context) string{
		"plot_guidance":     func(context.Context) string { return a.mem.PlotGuidanceText() },
		"big_summary":       func(context.Context) string { return a.mem.BigSummary() },
		"world_context":     a.worldContext,
		"date_context":      func(context.Context) string { return a.dateContext() },
		"affection_context": func(context.Context) string { return a.affectionContext() },
		"game_state_dump":   func(context.Context) string { return a.sceneDump() },
		"small_summaries":   func(context.Context) string { return a.smallSummaryDigest() },
		"npcs":              func(context.Context) string { return a.npcBlocks() },
		"available_music":   a.availableMusic,
		"available_sounds":  a.availableSounds,
	}
}

func (a *Assembler) worldContext(ctx context.Context) string {
	base := a.loadFile(ctx, "world_view")
	return fmt.Sprintf("# World Setting & Current Timeline\n%s\n\n## Timeline Context\n%s",
		base, a.dateContext())
}

func (a *Assembler) dateContext() string {
	dateStr := a.mem.Scene().Date
	lines := []string{"Current Date: " + dateStr}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		lines = append(lines, "(Date format error)")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, "Day of Week: "+date.Weekday().String())
	lines = append(lines, "Season: "+season(date.Month()))

	day := int(date.Sub(campaignStart).Hours()/24) + 1
	dayLabel := fmt.Sprintf("Day %d", day)

	for _, item := range a.dateGuidance {
		if item.Date == dayLabel || item.Date == dateStr {
			lines = append(lines, "**Special Event / Guidance for Today:** "+item.Outline)
			return strings.Join(lines, "\n")
		}
	}
	lines = append(lines, "(No specific event guidance for today. Proceed with daily life logic.)")
	return strings.Join(lines, "\n")
}

func season(month time.Month) string {
	switch month {
	case time.December, time.January, time.February:
		return "Winter"
	case time.March, time.April, time.May:
		return "Spring"
	case time.June, time.July, time.August:
		return "Summer"
	default:
		return "Autumn"
	}
}

func (a *Assembler) affectionContext() string {
	scene := a.mem.Scene()
	lines := []string{"# Character Affection Status"}

	names := make([]string, 0, len(scene.Favorability))
	for name := range scene.Favorability {
		names = append(names, name)
	}
	sort.Strings(names)

	hasEntries := false
	for _, name := range names {
		value := scene.Favorability[name]
		if npc, ok := a.npcs.FindImportant(name); ok {
			lines = append(lines, fmt.Sprintf("- **%s** (Favorability: %d): %s",
				capitalize(name), value, npc.Attitude(value)))
			hasEntries = true
		} else if value != 0 {
			lines = append(lines, fmt.Sprintf("- %s: %d", capitalize(name), value))
			hasEntries = true
		}
	}
	if !hasEntries {
		lines = append(lines, "(No significant relationships yet.)")
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) sceneDump() string {
	scene := a.mem.Scene()
	lines := []string{
		"# Current Game State (Visual/Audio)",
		"- Date: " + scene.Date,
		"- BGM: " + scene.CurrentBGM,
		"- Background: " + scene.CurrentBackground,
	}

	if len(scene.VisibleCharacters) == 0 {
		lines = append(lines, "- Visible Characters: None")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, "- Visible Characters:")
	names := make([]string, 0, len(scene.VisibleCharacters))
	for name := range scene.VisibleCharacters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  * %s (Expression: %s)", name, scene.VisibleCharacters[name]))
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) smallSummaryDigest() string {
	summaries := a.mem.SmallSummaries()
	if len(summaries) == 0 {
		return "No recent events."
	}
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, fmt.Sprintf("- [%s] %s", s.Range.Label(), s.Content))
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) npcBlocks() string {
	scene := a.mem.Scene()
	blocks := []string{"# NPC Profiles & Relationships"}

	for _, npc := range a.npcs.Important {
		favor := scene.Favorability[npc.Name]
		blocks = append(blocks, fmt.Sprintf(
			"--- Character: %s ---\n%s\n[Current Relationship Status (Favorability: %d)]: %s",
			npc.Name, npc.Profile, favor, npc.Attitude(favor)))
	}
	for _, profile := range a.npcs.Generic {
		blocks = append(blocks, "--- Other NPC ---\n"+profile)
	}
	return strings.Join(blocks, "\n")
}

func (a *Assembler) availableMusic(ctx context.Context) string {
	names, err := loadMusicCatalog(a.appCfg.GetMusicRegistryPath())
	if err != nil || len(names) == 0 {
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("music catalog unavailable")
		}
		return "No music available."
	}
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "- "+name)
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) availableSounds(ctx context.Context) string {
	keys, err := loadSoundCatalog(a.appCfg.GetSoundMapPath())
	if err != nil || len(keys) == 0 {
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("sound catalog unavailable")
		}
		return "No sounds available."
	}
	// Comma separation keeps a thousand-entry catalog cheap on tokens.
	return strings.Join(keys, ", ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
