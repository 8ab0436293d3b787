package core

import "context"

// ChatClient is an opaque LLM endpoint bound to one model. Calls are slow,
// network-backed and retryable; the core never depends on provider response
// shape beyond plain text.
type ChatClient interface {
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
	Models(ctx context.Context) ([]string, error)
}
