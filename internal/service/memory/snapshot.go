package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sandevgo/reverie/internal/core"
)

// Snapshot is the full-state export used by save files. The JSON shape is a
// contract with existing saves, including two legacy forms it upgrades on
// import: a bare-string big summary and bare-string small summaries.
type Snapshot struct {
	RawHistory       []core.Message    `json:"raw_history"`
	SmallSummaries   snapshotSummaries `json:"small_summaries"`
	BigSummary       snapshotBig       `json:"big_summary"`
	PlotGuidance     []string          `json:"plot_guidance"`
	State            core.SceneState   `json:"state"`
	GlobalLayerCount int               `json:"global_layer_count"`
	LastSummaryLayer int               `json:"last_summary_layer"`
	SincePlan        int               `json:"small_summary_count_since_plan"`
}

type snapshotSummaries []core.SmallSummary

func (s snapshotSummaries) MarshalJSON() ([]byte, error) {
	type record struct {
		Range   string `json:"range"`
		Content string `json:"content"`
	}
	records := make([]record, 0, len(s))
	for _, item := range s {
		records = append(records, record{Range: item.Range.Label(), Content: item.Content})
	}
	return json.Marshal(records)
}

func (s *snapshotSummaries) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make([]core.SmallSummary, 0, len(raw))
	for _, item := range raw {
		// Older saves stored bare strings with no range information.
		var bare string
		if err := json.Unmarshal(item, &bare); err == nil {
			out = append(out, core.SmallSummary{Content: bare})
			continue
		}

		var record struct {
			Range   string `json:"range"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(item, &record); err != nil {
			return fmt.Errorf("small summary entry: %w", err)
		}
		out = append(out, core.SmallSummary{
			Range:   core.ParseLayerRange(record.Range),
			Content: record.Content,
		})
	}
	*s = out
	return nil
}

type snapshotBig []core.BigSummaryEntry

func (b snapshotBig) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(b))
	for _, entry := range b {
		m[entry.Label] = entry.Content
	}
	return json.Marshal(m)
}

func (b *snapshotBig) UnmarshalJSON(data []byte) error {
	// Older saves stored the big summary as one bare string.
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		*b = []core.BigSummaryEntry{{Label: "1-?", Content: bare}}
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("big summary: %w", err)
	}

	entries := make([]core.BigSummaryEntry, 0, len(m))
	for label, content := range m {
		entries = append(entries, core.BigSummaryEntry{Label: label, Content: content})
	}
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := core.ParseLayerRange(entries[i].Label), core.ParseLayerRange(entries[j].Label)
		if ri.Start != rj.Start {
			return ri.Start < rj.Start
		}
		return entries[i].Label < entries[j].Label
	})
	*b = entries
	return nil
}

// Snapshot exports the full memory state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		RawHistory:       append([]core.Message(nil), s.rawHistory...),
		SmallSummaries:   append([]core.SmallSummary(nil), s.smallSummaries...),
		BigSummary:       append([]core.BigSummaryEntry(nil), s.bigSummary...),
		PlotGuidance:     append([]string(nil), s.plotGuidance...),
		State:            s.scene,
		GlobalLayerCount: s.currentLayer,
		LastSummaryLayer: s.lastSummaryLayer,
		SincePlan:        s.sincePlan,
	}
}

// Restore replaces the whole memory from an exported snapshot. The import
// is all-or-nothing: a snapshot that fails to decode leaves prior memory
// untouched.
func (s *Store) Restore(ctx context.Context, data []byte) error {
	snap := Snapshot{State: core.NewSceneState()}
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	if snap.State.Favorability == nil {
		snap.State.Favorability = map[string]int{}
	}
	if snap.State.VisibleCharacters == nil {
		snap.State.VisibleCharacters = map[string]string{}
	}
	if snap.State.Inventory == nil {
		snap.State.Inventory = []string{}
	}

	s.mu.Lock()
	s.rawHistory = snap.RawHistory
	s.smallSummaries = snap.SmallSummaries
	s.bigSummary = snap.BigSummary
	s.plotGuidance = snap.PlotGuidance
	s.scene = snap.State
	s.currentLayer = snap.GlobalLayerCount
	s.lastSummaryLayer = snap.LastSummaryLayer
	s.sincePlan = snap.SincePlan
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return err
}
