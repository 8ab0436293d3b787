package prompt

import (
	"context"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/pkg/log"
)

// TokenCounter estimates payload sizes so context-window pressure shows up
// in the logs before it shows up as provider errors. Falls back to a
// bytes/4 heuristic when the encoding cannot be loaded (offline start).
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func NewTokenCounter(ctx context.Context) *TokenCounter {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("token encoding unavailable, using byte heuristic")
		return &TokenCounter{}
	}
	return &TokenCounter{encoding: encoding}
}

func (t *TokenCounter) Count(text string) int {
	if t.encoding == nil {
		return len(text) / 4
	}
	return len(t.encoding.Encode(text, nil, nil))
}

func (t *TokenCounter) CountMessages(messages []core.Message) int {
	total := 0
	for _, msg := range messages {
		total += t.Count(msg.Content)
	}
	return total
}
