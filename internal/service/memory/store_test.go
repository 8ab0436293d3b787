package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sandevgo/reverie/internal/core"
)

// fakeRepo is an in-memory MemoryRepository recording every write-through.
type fakeRepo struct {
	mu       sync.Mutex
	doc      core.MemoryDocument
	found    bool
	replaces int
	failNext bool
}

func (f *fakeRepo) Replace(ctx context.Context, doc core.MemoryDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	f.doc = doc
	f.found = true
	f.replaces++
	return nil
}

func (f *fakeRepo) Load(ctx context.Context) (core.MemoryDocument, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc, f.found, nil
}

func testConfig() Config {
	return Config{
		RawHistoryLimit:       20,
		RawHistoryBuffer:      3,
		SmallSummaryThreshold: 10,
		SmallSummaryBuffer:    3,
		PlotPlanningThreshold: 5,
	}
}

func newTestStore(t *testing.T) (*Store, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{}
	store, err := NewStore(context.Background(), testConfig(), repo)
	if err != nil {
		t.Fatal(err)
	}
	return store, repo
}

// runTurns appends n user/assistant pairs.
func runTurns(t *testing.T, s *Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := s.Append(ctx, core.RoleUser, fmt.Sprintf("user %d", i+1)); err != nil {
			t.Fatal(err)
		}
		if err := s.Append(ctx, core.RoleAssistant, fmt.Sprintf("assistant %d", i+1)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSmallSummaryTrigger(t *testing.T) {
	store, _ := newTestStore(t)

	// 11 turns = 22 messages, below limit(20)+buffer(3)
	runTurns(t, store, 11)
	if store.CheckTriggers().NeedsSmallSummary {
		t.Fatal("trigger fired below threshold")
	}

	// 12th turn crosses 23 messages
	runTurns(t, store, 1)
	if !store.CheckTriggers().NeedsSmallSummary {
		t.Fatal("trigger did not fire at limit+buffer")
	}

	// Re-checking has no side effects
	if !store.CheckTriggers().NeedsSmallSummary {
		t.Fatal("trigger check is not idempotent")
	}
}

func TestConsumeRawHistoryKeepsBuffer(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	runTurns(t, store, 12) // 24 messages

	consumed, err := store.ConsumeRawHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(consumed) != 21 {
		t.Fatalf("consumed %d messages, want 21", len(consumed))
	}

	remaining := store.RawHistory()
	if len(remaining) != 3 {
		t.Fatalf("kept %d messages, want buffer of 3", len(remaining))
	}
	// The buffer is the newest slice of the conversation
	if remaining[2].Content != "assistant 12" {
		t.Fatalf("buffer tail = %q, want newest message", remaining[2].Content)
	}
	if store.CheckTriggers().NeedsSmallSummary {
		t.Fatal("trigger still due after consume")
	}
}

func TestConsumeRawHistoryEmptyWhenOnlyBuffer(t *testing.T) {
	store, _ := newTestStore(t)

	runTurns(t, store, 1)
	consumed, err := store.ConsumeRawHistory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if consumed != nil {
		t.Fatalf("consumed %d messages from a near-empty history", len(consumed))
	}
}

func TestSmallSummaryRangesAreContiguous(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	runTurns(t, store, 12)
	if _, err := store.ConsumeRawHistory(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendSmallSummary(ctx, "first arc"); err != nil {
		t.Fatal(err)
	}

	runTurns(t, store, 8)
	if err := store.AppendSmallSummary(ctx, "second arc"); err != nil {
		t.Fatal(err)
	}

	summaries := store.SmallSummaries()
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if got := summaries[0].Range.Label(); got != "1-12" {
		t.Fatalf("first range = %s, want 1-12", got)
	}
	if got := summaries[1].Range.Label(); got != "13-20" {
		t.Fatalf("second range = %s, want 13-20", got)
	}
	if summaries[1].Range.Start != summaries[0].Range.End+1 {
		t.Fatal("ranges are not contiguous")
	}
}

func TestBigSummaryTriggerAndMergeFormat(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 13; i++ {
		runTurns(t, store, 1)
		if err := store.AppendSmallSummary(ctx, fmt.Sprintf("arc %d", i+1)); err != nil {
			t.Fatal(err)
		}
	}
	if !store.CheckTriggers().NeedsBigSummary {
		t.Fatal("big-summary trigger did not fire at threshold+buffer")
	}

	merged, err := store.ConsumeSmallSummaries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 10 {
		t.Fatalf("consumed %d summaries, want 10", len(merged))
	}
	if merged[0] != "[1-1] arc 1" {
		t.Fatalf("merge format = %q", merged[0])
	}
	if got := len(store.SmallSummaries()); got != 3 {
		t.Fatalf("kept %d summaries, want buffer of 3", got)
	}
}

func TestBigSummaryDefaultAndUpdate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if got := store.BigSummary(); got != "The story has just begun." {
		t.Fatalf("default big summary = %q", got)
	}

	runTurns(t, store, 4)
	if err := store.UpdateBigSummary(ctx, "Everything so far."); err != nil {
		t.Fatal(err)
	}
	if got := store.BigSummary(); got != "Everything so far." {
		t.Fatalf("big summary = %q", got)
	}
}

func TestPlotPlanningCounter(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if store.CheckTriggers().NeedsPlotPlanning {
			t.Fatalf("planning trigger fired after %d summaries", i)
		}
		runTurns(t, store, 1)
		if err := store.AppendSmallSummary(ctx, "arc"); err != nil {
			t.Fatal(err)
		}
	}
	if !store.CheckTriggers().NeedsPlotPlanning {
		t.Fatal("planning trigger did not fire at threshold")
	}

	if err := store.UpdatePlotGuidance(ctx, []string{"a twist", "a reunion"}); err != nil {
		t.Fatal(err)
	}
	if store.CheckTriggers().NeedsPlotPlanning {
		t.Fatal("planning trigger not cleared by new guidance")
	}
	if got := store.PlotGuidanceText(); got != "- a twist\n- a reunion" {
		t.Fatalf("guidance text = %q", got)
	}
}

func TestPlotGuidanceDefaultText(t *testing.T) {
	store, _ := newTestStore(t)
	if got := store.PlotGuidanceText(); got != "No specific guidance. Develop the story naturally." {
		t.Fatalf("default guidance = %q", got)
	}
}

func TestLayerAdvancesOnAssistantOnly(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, core.RoleUser, "hello"); err != nil {
		t.Fatal(err)
	}
	if got := store.CurrentLayer(); got != 0 {
		t.Fatalf("layer = %d after user message, want 0", got)
	}
	if err := store.Append(ctx, core.RoleAssistant, "hi"); err != nil {
		t.Fatal(err)
	}
	if got := store.CurrentLayer(); got != 1 {
		t.Fatalf("layer = %d after assistant message, want 1", got)
	}
}

func TestWriteThroughPersistence(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	runTurns(t, store, 2)
	if err := store.AppendSmallSummary(ctx, "arc"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewStore(ctx, testConfig(), repo)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.CurrentLayer(); got != 2 {
		t.Fatalf("reloaded layer = %d, want 2", got)
	}
	if got := len(reloaded.SmallSummaries()); got != 1 {
		t.Fatalf("reloaded %d summaries, want 1", got)
	}
	if got := reloaded.SummariesSincePlan(); got != 1 {
		t.Fatalf("reloaded sincePlan = %d, want 1", got)
	}
}

func TestPersistFailureKeepsInMemoryState(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	repo.failNext = true
	err := store.Append(ctx, core.RoleAssistant, "still here")
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if got := store.CurrentLayer(); got != 1 {
		t.Fatalf("layer = %d after failed persist, want 1", got)
	}
	if got := store.RawHistory(); len(got) != 1 || got[0].Content != "still here" {
		t.Fatal("in-memory history lost on persist failure")
	}
}

func TestResetWipesEverything(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	runTurns(t, store, 3)
	if err := store.AppendSmallSummary(ctx, "arc"); err != nil {
		t.Fatal(err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	if store.CurrentLayer() != 0 || len(store.RawHistory()) != 0 || len(store.SmallSummaries()) != 0 {
		t.Fatal("reset left state behind")
	}
	if got := store.Scene().Date; got != "2026-01-06" {
		t.Fatalf("reset scene date = %q", got)
	}
}
