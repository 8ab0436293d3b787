package core

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the raw narrative history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LayerRange is a contiguous span of completed assistant turns. A zero range
// marks a summary whose origin layers are unknown (imported from an older
// save shape).
type LayerRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r LayerRange) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

// Label renders the range in its persisted "start-end" form.
func (r LayerRange) Label() string {
	if r.IsZero() {
		return "?"
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ParseLayerRange parses a "start-end" label. Unparseable labels yield the
// zero range without error so legacy data keeps loading.
func ParseLayerRange(label string) LayerRange {
	parts := strings.SplitN(strings.TrimSpace(label), "-", 2)
	if len(parts) != 2 {
		return LayerRange{}
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return LayerRange{}
	}
	return LayerRange{Start: start, End: end}
}

// SmallSummary compacts one contiguous range of raw-history layers.
type SmallSummary struct {
	Range   LayerRange `json:"range"`
	Content string     `json:"content"`
}

// BigSummaryEntry is one epoch of the merged story-so-far text. The current
// pipeline keeps exactly one entry and replaces it wholesale on each merge;
// the slice form preserves insertion order for future multi-epoch merges.
type BigSummaryEntry struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// SceneState is the rendering-facing game state. The rendering layer mutates
// it as a side effect of director commands; memory only persists it.
type SceneState struct {
	Date              string            `json:"date"`
	Favorability      map[string]int    `json:"favorability"`
	Inventory         []string          `json:"inventory"`
	CurrentBGM        string            `json:"current_bgm"`
	CurrentBackground string            `json:"current_bg"`
	VisibleCharacters map[string]string `json:"visible_characters"`
}

func NewSceneState() SceneState {
	return SceneState{
		Date:              "2026-01-06",
		Favorability:      map[string]int{},
		Inventory:         []string{},
		CurrentBGM:        "None",
		CurrentBackground: "None",
		VisibleCharacters: map[string]string{},
	}
}

// Triggers reports which background jobs are due. Pure snapshot: evaluating
// it has no side effects.
type Triggers struct {
	NeedsSmallSummary bool
	NeedsBigSummary   bool
	NeedsPlotPlanning bool
}

func (t Triggers) Any() bool {
	return t.NeedsSmallSummary || t.NeedsBigSummary || t.NeedsPlotPlanning
}
