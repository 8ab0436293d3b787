package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/pkg/log"
)

// defaultBigSummary is the story-so-far text before any merge has run.
const defaultBigSummary = "The story has just begun."

type Config struct {
	// RawHistoryLimit messages beyond the buffer make a small summary due.
	RawHistoryLimit  int
	RawHistoryBuffer int
	// SmallSummaryThreshold summaries beyond the buffer make a big merge due.
	SmallSummaryThreshold int
	SmallSummaryBuffer    int
	// PlotPlanningThreshold counts small summaries since the last plan.
	PlotPlanningThreshold int
}

// Store owns the layered narrative memory: raw history, small summaries,
// the big summary, plot guidance and scene state. Every mutation writes
// through to the repository before returning, so on-disk state always
// matches what a caller has observed. All methods are safe for concurrent
// use; the orchestrator's single-flight rule means the mutex is
// defense-in-depth rather than a coordination mechanism.
type Store struct {
	mu   sync.Mutex
	repo core.MemoryRepository
	cfg  Config

	scene          core.SceneState
	bigSummary     []core.BigSummaryEntry
	smallSummaries []core.SmallSummary
	rawHistory     []core.Message
	plotGuidance   []string

	currentLayer     int
	lastSummaryLayer int
	sincePlan        int

	observers []func()
}

// NewStore hydrates the store from the repository, or starts fresh when
// nothing has been persisted yet.
func NewStore(ctx context.Context, cfg Config, repo core.MemoryRepository) (*Store, error) {
	s := &Store{
		repo:  repo,
		cfg:   cfg,
		scene: core.NewSceneState(),
	}

	doc, found, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	if found {
		s.applyDocument(doc)
	}
	return s, nil
}

func (s *Store) applyDocument(doc core.MemoryDocument) {
	s.scene = doc.Scene
	s.bigSummary = doc.BigSummary
	s.smallSummaries = doc.SmallSummaries
	s.rawHistory = doc.RawHistory
	s.plotGuidance = doc.PlotGuidance
	s.currentLayer = doc.CurrentLayer
	s.lastSummaryLayer = doc.LastSummaryLayer
	s.sincePlan = doc.SummariesSincePlan
}

func (s *Store) documentLocked() core.MemoryDocument {
	return core.MemoryDocument{
		Scene:              s.scene,
		BigSummary:         append([]core.BigSummaryEntry(nil), s.bigSummary...),
		SmallSummaries:     append([]core.SmallSummary(nil), s.smallSummaries...),
		RawHistory:         append([]core.Message(nil), s.rawHistory...),
		PlotGuidance:       append([]string(nil), s.plotGuidance...),
		CurrentLayer:       s.currentLayer,
		LastSummaryLayer:   s.lastSummaryLayer,
		SummariesSincePlan: s.sincePlan,
	}
}

// persistLocked writes the whole document through to durable storage. The
// in-memory state stays applied even when the write fails; the error is
// surfaced to the caller and logged there.
func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.repo.Replace(ctx, s.documentLocked()); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("memory persistence failed")
		return fmt.Errorf("persist memory: %w", err)
	}
	return nil
}

// AddObserver registers a callback invoked after any externally-visible
// memory mutation. Used to refresh dependent UI.
func (s *Store) AddObserver(callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, callback)
}

func (s *Store) notify() {
	s.mu.Lock()
	observers := append(([]func())(nil), s.observers...)
	s.mu.Unlock()
	for _, callback := range observers {
		callback()
	}
}

// Append records one message in raw history. A completed assistant turn
// advances the layer counter and persists; trigger evaluation stays with
// the orchestrator.
func (s *Store) Append(ctx context.Context, role, content string) error {
	s.mu.Lock()
	s.rawHistory = append(s.rawHistory, core.Message{Role: role, Content: content})
	persist := role == core.RoleAssistant
	if persist {
		s.currentLayer++
	}
	var err error
	if persist {
		err = s.persistLocked(ctx)
	}
	s.mu.Unlock()
	return err
}

// CheckTriggers is a pure read of current sizes against thresholds. It can
// be called any number of times without side effects.
func (s *Store) CheckTriggers() core.Triggers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Triggers{
		NeedsSmallSummary: len(s.rawHistory) >= s.cfg.RawHistoryLimit+s.cfg.RawHistoryBuffer,
		NeedsBigSummary:   len(s.smallSummaries) >= s.cfg.SmallSummaryThreshold+s.cfg.SmallSummaryBuffer,
		NeedsPlotPlanning: s.sincePlan >= s.cfg.PlotPlanningThreshold,
	}
}

// ConsumeRawHistory removes and returns every raw-history message except
// the trailing buffer. An empty result means there is nothing to do. The
// removal is deliberate and not undone on downstream failure: the caller
// must pair this 1:1 with AppendSmallSummary under a never-give-up retry.
func (s *Store) ConsumeRawHistory(ctx context.Context) ([]core.Message, error) {
	s.mu.Lock()
	if len(s.rawHistory) <= s.cfg.RawHistoryBuffer {
		s.mu.Unlock()
		return nil, nil
	}

	cut := len(s.rawHistory) - s.cfg.RawHistoryBuffer
	consumed := s.rawHistory[:cut]
	s.rawHistory = append([]core.Message(nil), s.rawHistory[cut:]...)
	err := s.persistLocked(ctx)
	s.mu.Unlock()
	return consumed, err
}

// ConsumeSmallSummaries removes all small summaries except the trailing
// buffer and returns them formatted "[range] content" for the merge prompt.
func (s *Store) ConsumeSmallSummaries(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	if len(s.smallSummaries) <= s.cfg.SmallSummaryBuffer {
		s.mu.Unlock()
		return nil, nil
	}

	cut := len(s.smallSummaries) - s.cfg.SmallSummaryBuffer
	consumed := s.smallSummaries[:cut]
	s.smallSummaries = append([]core.SmallSummary(nil), s.smallSummaries[cut:]...)

	merged := make([]string, 0, len(consumed))
	for _, item := range consumed {
		merged = append(merged, fmt.Sprintf("[%s] %s", item.Range.Label(), item.Content))
	}
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return merged, err
}

// AppendSmallSummary records the compaction of all layers since the last
// one, keeping ranges contiguous: the new range starts right after the
// previous range's end.
func (s *Store) AppendSmallSummary(ctx context.Context, content string) error {
	s.mu.Lock()
	start := s.lastSummaryLayer + 1
	end := s.currentLayer
	if end < start {
		end = start
	}
	s.lastSummaryLayer = end

	s.smallSummaries = append(s.smallSummaries, core.SmallSummary{
		Range:   core.LayerRange{Start: start, End: end},
		Content: content,
	})
	s.sincePlan++
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return err
}

// UpdateBigSummary replaces the merged story-so-far wholesale with a single
// entry spanning every completed layer.
func (s *Store) UpdateBigSummary(ctx context.Context, content string) error {
	s.mu.Lock()
	label := fmt.Sprintf("1-%d", s.currentLayer)
	s.bigSummary = []core.BigSummaryEntry{{Label: label, Content: content}}
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return err
}

// UpdatePlotGuidance replaces the guidance list and resets the planning
// counter, which clears the plot-planning trigger.
func (s *Store) UpdatePlotGuidance(ctx context.Context, guidance []string) error {
	s.mu.Lock()
	s.plotGuidance = append([]string(nil), guidance...)
	s.sincePlan = 0
	err := s.persistLocked(ctx)
	s.mu.Unlock()
	return err
}

// UpdateScene lets the rendering layer mutate scene state under the store's
// persistence discipline. Extension point for director command handlers.
func (s *Store) UpdateScene(ctx context.Context, mutate func(*core.SceneState)) error {
	s.mu.Lock()
	mutate(&s.scene)
	err := s.persistLocked(ctx)
	s.mu.Unlock()
	return err
}

// Reset wipes the session back to a fresh state.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.scene = core.NewSceneState()
	s.bigSummary = nil
	s.smallSummaries = nil
	s.rawHistory = nil
	s.plotGuidance = nil
	s.currentLayer = 0
	s.lastSummaryLayer = 0
	s.sincePlan = 0
	err := s.persistLocked(ctx)
	s.mu.Unlock()

	s.notify()
	return err
}

// BigSummary concatenates all merge entries in insertion order, or falls
// back to the opening text.
func (s *Store) BigSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bigSummary) == 0 {
		return defaultBigSummary
	}
	parts := make([]string, 0, len(s.bigSummary))
	for _, entry := range s.bigSummary {
		parts = append(parts, entry.Content)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Store) SmallSummaries() []core.SmallSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SmallSummary(nil), s.smallSummaries...)
}

func (s *Store) RawHistory() []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Message(nil), s.rawHistory...)
}

func (s *Store) PlotGuidance() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.plotGuidance...)
}

// PlotGuidanceText renders guidance as a bulleted block, or a default line
// when the architect has not planned yet.
func (s *Store) PlotGuidanceText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plotGuidance) == 0 {
		return "No specific guidance. Develop the story naturally."
	}
	lines := make([]string, 0, len(s.plotGuidance))
	for _, g := range s.plotGuidance {
		lines = append(lines, "- "+g)
	}
	return strings.Join(lines, "\n")
}

func (s *Store) Scene() core.SceneState {
	s.mu.Lock()
	defer s.mu.Unlock()
	scene := s.scene
	scene.Favorability = copyIntMap(s.scene.Favorability)
	scene.VisibleCharacters = copyStringMap(s.scene.VisibleCharacters)
	scene.Inventory = append([]string(nil), s.scene.Inventory...)
	return scene
}

func (s *Store) CurrentLayer() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLayer
}

func (s *Store) SummariesSincePlan() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sincePlan
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
