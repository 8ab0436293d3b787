package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/pkg/log"
	"github.com/sandevgo/reverie/pkg/retry"
)

// CallOpts shapes one model call: which tag the response must carry,
// an optional extra validation step that runs inside the retry loop,
// and whether the call is critical (retried forever) or bounded.
type CallOpts struct {
	Tag      string
	Validate func(content string) error
	Critical bool
}

// Caller wraps a chat client for one role endpoint. Every call validates
// the response before accepting it, so a malformed response is retried the
// same way a transport failure is.
type Caller struct {
	client           core.ChatClient
	temperature      float64
	bounded          *retry.Retrier
	criticalInterval time.Duration
	state            *State
}

func NewCaller(client core.ChatClient, temperature float64, bounded *retry.Retrier, criticalInterval time.Duration, state *State) *Caller {
	return &Caller{
		client:           client,
		temperature:      temperature,
		bounded:          bounded,
		criticalInterval: criticalInterval,
		state:            state,
	}
}

// Generate runs one validated model call. Bounded calls give up after the
// configured attempts and return the last error. Critical calls never give
// up: they surface each failure through the blocked-state reason and keep
// retrying until success or context cancellation.
func (c *Caller) Generate(ctx context.Context, task string, messages []core.Message, opts CallOpts) (string, error) {
	logger := log.FromCtx(ctx)

	var result string
	op := func() error {
		raw, err := c.client.Complete(ctx, messages, c.temperature)
		if err != nil {
			return err
		}

		content := raw
		if opts.Tag != "" {
			content, err = extractTag(raw, opts.Tag)
			if err != nil {
				return err
			}
		}
		if opts.Validate != nil {
			if err := opts.Validate(content); err != nil {
				return err
			}
		}

		result = content
		return nil
	}

	if opts.Critical {
		err := retry.Forever(ctx, c.criticalInterval, op, func(err error) {
			logger.Error().Err(err).Str("task", task).
				Dur("retry_in", c.criticalInterval).
				Msg("critical call failed, will retry")
			c.state.SetBlockedReason(fmt.Sprintf("%s failed. Retrying in %s...", task, c.criticalInterval))
		})
		if err != nil {
			return "", err
		}
		return result, nil
	}

	if err := c.bounded.Do(ctx, op); err != nil {
		logger.Error().Err(err).Str("task", task).Msg("call failed after retries")
		return "", fmt.Errorf("%s: %w", task, err)
	}
	return result, nil
}
