package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/reverie/internal/config"
	"github.com/sandevgo/reverie/internal/core"
	"github.com/sandevgo/reverie/internal/service/memory"
	"github.com/sandevgo/reverie/internal/service/session"
	"github.com/sandevgo/reverie/internal/service/ui"
	"github.com/sandevgo/reverie/internal/storage/saves"
	"github.com/sandevgo/reverie/pkg/log"
)

const defaultSlot = "quicksave"

type ReadLine struct {
	cfg     *config.AppConfig
	session *session.Session
	mem     *memory.Store
	saves   *saves.Manager
	rl      *readline.Instance
}

func NewReadLine(sess *session.Session, mem *memory.Store, sv *saves.Manager, cfg *config.AppConfig) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ">>> ",
		HistoryFile:     filepath.Join(cfg.RuntimePath, "input_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:     cfg,
		session: sess,
		mem:     mem,
		saves:   sv,
		rl:      rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("story session started. Type 'exit' to quit, '/help' for commands.")

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			r.handleCommand(ctx, line)
			continue
		}

		r.Print(r.session.ExecuteTurn(ctx, line))
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}

// Print routes session output through the style matching its kind.
func (r *ReadLine) Print(output string) {
	style := ui.StoryStyle
	switch {
	case core.IsPausedNotice(output):
		style = ui.NoticeStyle
	case core.IsErrorNotice(output):
		style = ui.ErrorStyle
	}
	fmt.Fprintln(r.rl.Stdout(), style.Render(output))
}

func (r *ReadLine) handleCommand(ctx context.Context, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		r.printHelp()
	case "/save":
		r.saveGame(args)
	case "/load":
		r.loadGame(ctx, args)
	case "/saves":
		r.listSaves()
	case "/state":
		r.printState()
	default:
		fmt.Fprintf(r.rl.Stdout(), "Unknown command %q. Type '/help' for commands.\n", cmd)
	}
}

func (r *ReadLine) printHelp() {
	out := r.rl.Stdout()
	fmt.Fprintln(out, ui.TitleStyle.Render("Commands"))
	for _, row := range [][2]string{
		{"/save [slot]", "save the session (default slot: " + defaultSlot + ")"},
		{"/load [slot]", "restore the session from a slot"},
		{"/saves", "list save slots"},
		{"/state", "show session status and scene"},
		{"exit", "quit"},
	} {
		fmt.Fprintf(out, "  %s  %s\n", ui.UsageStyle.Render(fmt.Sprintf("%-14s", row[0])), ui.DescStyle.Render(row[1]))
	}
}

func excerpt(s string, max int) string {
	runes := []rune(strings.Join(strings.Fields(s), " "))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}

func slotName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return defaultSlot
}

func (r *ReadLine) saveGame(args []string) {
	if status, reason := r.session.Status(); status == session.StatusBlocked {
		fmt.Fprintln(r.rl.Stdout(), ui.NoticeStyle.Render(core.PausedNotice(reason)))
		return
	}

	slot := slotName(args)
	summary := r.mem.Scene().Date + ": " + excerpt(r.mem.BigSummary(), 80)
	if err := r.saves.Write(slot, summary, r.mem.Snapshot()); err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Save failed: %v\n", err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "Saved to slot %q.\n", slot)
}

func (r *ReadLine) loadGame(ctx context.Context, args []string) {
	if status, reason := r.session.Status(); status == session.StatusBlocked {
		fmt.Fprintln(r.rl.Stdout(), ui.NoticeStyle.Render(core.PausedNotice(reason)))
		return
	}

	slot := slotName(args)
	envelope, err := r.saves.Read(slot)
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Load failed: %v\n", err)
		return
	}
	if err := r.mem.Restore(ctx, envelope.GameState); err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Load failed: %v\n", err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "Restored slot %q (%s).\n", slot, envelope.Meta.Summary)
}

func (r *ReadLine) listSaves() {
	entries, err := r.saves.List()
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Failed to list saves: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.rl.Stdout(), "No saves yet.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(r.rl.Stdout(), "  %s  %s\n", ui.UsageStyle.Render(fmt.Sprintf("%-14s", e.Name)), ui.DescStyle.Render(e.Meta.Summary))
	}
}

func (r *ReadLine) printState() {
	status, reason := r.session.Status()
	scene := r.mem.Scene()

	out := r.rl.Stdout()
	fmt.Fprintf(out, "Status: %s", status)
	if reason != "" {
		fmt.Fprintf(out, " (%s)", reason)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Date: %s  Layer: %d\n", scene.Date, r.mem.CurrentLayer())
	fmt.Fprintf(out, "Scene: bg=%s bgm=%s\n", scene.CurrentBackground, scene.CurrentBGM)
}
