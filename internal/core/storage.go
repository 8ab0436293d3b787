package core

import "context"

// MemoryDocument is the full persisted narrative memory: four logical
// records (scene state, big summary, small summaries, history+counters)
// plus plot guidance.
type MemoryDocument struct {
	Scene              SceneState
	BigSummary         []BigSummaryEntry
	SmallSummaries     []SmallSummary
	RawHistory         []Message
	PlotGuidance       []string
	CurrentLayer       int
	LastSummaryLayer   int
	SummariesSincePlan int
}

// MemoryRepository provides write-through durability for MemoryDocument.
// Replace must commit the whole document atomically before returning.
type MemoryRepository interface {
	Replace(ctx context.Context, doc MemoryDocument) error
	// Load returns found=false when no document has ever been stored.
	Load(ctx context.Context) (doc MemoryDocument, found bool, err error)
}
