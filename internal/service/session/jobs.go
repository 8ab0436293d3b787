package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/pkg/log"
)

type jobKind int

const (
	jobSmallSummary jobKind = iota
	jobBigSummary
	jobPlotPlanning
)

func (j jobKind) reason() string {
	switch j {
	case jobSmallSummary:
		return "Generating Small Summary..."
	case jobBigSummary:
		return "Generating Big Summary..."
	default:
		return "Generating Plot Guidance..."
	}
}

// Kick nudges the background worker to re-check compaction triggers.
// Safe to call from any goroutine; a pending nudge is never lost and
// duplicates collapse.
func (s *Session) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Start runs the background worker loop until the context is cancelled.
// Satisfies the service supervisor contract.
func (s *Session) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("memory worker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.kick:
		}
		s.drainJobs(ctx)
	}
}

func (s *Session) Shutdown(ctx context.Context) error {
	return nil
}

// nextDueJob maps triggers to the highest-priority due job. Small
// summaries compact first so the raw history shrinks before anything
// builds on top of it.
func nextDueJob(t core.Triggers) (jobKind, bool) {
	switch {
	case t.NeedsSmallSummary:
		return jobSmallSummary, true
	case t.NeedsBigSummary:
		return jobBigSummary, true
	case t.NeedsPlotPlanning:
		return jobPlotPlanning, true
	}
	return 0, false
}

// drainJobs claims the session and runs every due compaction job in
// priority order. Triggers are re-evaluated after each job so a small
// summary that tips the big-summary threshold chains immediately, and the
// block lifts only once nothing is due.
func (s *Session) drainJobs(ctx context.Context) {
	job, ok := nextDueJob(s.mem.CheckTriggers())
	if !ok {
		return
	}
	if !s.state.TryBlock(job.reason()) {
		// A turn is in flight; it kicks the worker again when it ends.
		return
	}
	defer s.state.Unblock()

	for ok {
		if ctx.Err() != nil {
			return
		}
		s.state.SetBlockedReason(job.reason())
		s.runJob(ctx, job)
		job, ok = nextDueJob(s.mem.CheckTriggers())
	}
}

func (s *Session) runJob(ctx context.Context, job jobKind) {
	logger := log.FromCtx(ctx)
	var err error
	switch job {
	case jobSmallSummary:
		err = s.generateSmallSummary(ctx)
	case jobBigSummary:
		err = s.generateBigSummary(ctx)
	case jobPlotPlanning:
		err = s.runArchitect(ctx)
	}
	if err != nil {
		// Critical calls only fail on context cancellation; memory errors
		// are already logged at the source.
		logger.Warn().Err(err).Int("job", int(job)).Msg("background job aborted")
	}
}

// generateSmallSummary folds the overflow of raw history into one small
// summary. The consumed messages are gone from raw history before the
// model call, so a crash mid-call loses the compaction, not the canon:
// the messages are still in the database from their own turns.
func (s *Session) generateSmallSummary(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	messages, err := s.mem.ConsumeRawHistory(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to persist raw history cut")
	}
	if len(messages) == 0 {
		return nil
	}

	var block strings.Builder
	for i, m := range messages {
		if i > 0 {
			block.WriteString("\n")
		}
		block.WriteString(m.Role + ": " + m.Content)
	}

	system := s.assembler.Assemble(ctx, "summary_small", map[string]string{
		"to_summarize": block.String(),
	})
	payload := []core.Message{
		{Role: core.RoleSystem, Content: system},
		{Role: core.RoleUser, Content: "Please generate the summary now based on the instructions and content above."},
	}

	summary, err := s.summary.Generate(ctx, "Small Summary", payload, CallOpts{Tag: tagSmall, Critical: true})
	if err != nil {
		return err
	}

	logger.Info().Int("messages", len(messages)).Msg("small summary generated")
	return s.mem.AppendSmallSummary(ctx, summary)
}

// generateBigSummary merges the overflow of small summaries into the
// running global summary.
func (s *Session) generateBigSummary(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	smalls, err := s.mem.ConsumeSmallSummaries(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to persist small summary cut")
	}
	if len(smalls) == 0 {
		return nil
	}

	combined := fmt.Sprintf("OLD SUMMARY:\n%s\n\nNEW EVENTS TO MERGE:\n%s",
		s.mem.BigSummary(), strings.Join(smalls, "\n"))

	system := s.assembler.Assemble(ctx, "summary_big", map[string]string{
		"to_summarize": combined,
	})
	payload := []core.Message{
		{Role: core.RoleSystem, Content: system},
		{Role: core.RoleUser, Content: "Please generate the updated big summary now."},
	}

	newBig, err := s.summary.Generate(ctx, "Big Summary", payload, CallOpts{Tag: tagBig, Critical: true})
	if err != nil {
		return err
	}

	logger.Info().Int("merged", len(smalls)).Msg("big summary updated")
	return s.mem.UpdateBigSummary(ctx, newBig)
}

// runArchitect asks the logic model for the next plot directions. The
// JSON parse runs inside the retry loop, so a response that carries the
// right tag but malformed JSON is retried like any other failure.
func (s *Session) runArchitect(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	system := s.assembler.Assemble(ctx, "planner", nil)
	userPrompt := buildArchitectPrompt(s.mem.BigSummary(), s.mem.PlotGuidanceText())
	payload := []core.Message{
		{Role: core.RoleSystem, Content: system},
		{Role: core.RoleUser, Content: userPrompt},
	}

	var options []string
	_, err := s.logic.Generate(ctx, "Architect", payload, CallOpts{
		Tag:      tagGuide,
		Critical: true,
		Validate: func(content string) error {
			parsed, perr := parsePlannerOptions(content)
			if perr != nil {
				return perr
			}
			options = parsed
			return nil
		},
	})
	if err != nil {
		return err
	}

	logger.Info().Int("options", len(options)).Msg("plot guidance updated")
	return s.mem.UpdatePlotGuidance(ctx, options)
}

func buildArchitectPrompt(bigSummary, outline string) string {
	var b strings.Builder
	b.WriteString("Analyze the following story context:\n\n")
	b.WriteString("# Global Story Summary\n")
	b.WriteString(bigSummary)
	b.WriteString("\n")
	if outline != "" {
		b.WriteString("\n# Overall Story Outline (Guidance)\n")
		b.WriteString(outline)
		b.WriteString("\n")
	}
	b.WriteString("\nBased on this, generate 3 distinct potential plot directions for the next segment.\n")
	b.WriteString("1. Logical/Expected progression.\n")
	b.WriteString("2. A surprising twist or conflict.\n")
	b.WriteString("3. A character-focused emotional development.\n\n")
	b.WriteString(`Respond in JSON: { "options": ["direction 1...", "direction 2...", "direction 3..."] }`)
	return b.String()
}
