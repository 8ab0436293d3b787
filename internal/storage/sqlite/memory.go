package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/reverie/internal/core"
)

// MemoryRepo persists the full narrative memory document. Replace rewrites
// every table inside one transaction, giving the write-through guarantee:
// a crash right after a mutating call never loses that call's effect.
type MemoryRepo struct {
	db *sql.DB
}

func NewMemoryRepo(db *sql.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

func (r *MemoryRepo) Replace(ctx context.Context, doc core.MemoryDocument) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"scene_state", "counters", "big_summary", "small_summaries", "history", "plot_guidance"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertScene(ctx, tx, doc.Scene); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO counters (id, current_layer, last_summary_layer, summaries_since_plan) VALUES (1, ?, ?, ?)`,
		doc.CurrentLayer, doc.LastSummaryLayer, doc.SummariesSincePlan)
	if err != nil {
		return fmt.Errorf("insert counters: %w", err)
	}

	for i, entry := range doc.BigSummary {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO big_summary (pos, label, content) VALUES (?, ?, ?)`,
			i, entry.Label, entry.Content)
		if err != nil {
			return fmt.Errorf("insert big summary: %w", err)
		}
	}

	for i, s := range doc.SmallSummaries {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO small_summaries (pos, start_layer, end_layer, content) VALUES (?, ?, ?, ?)`,
			i, s.Range.Start, s.Range.End, s.Content)
		if err != nil {
			return fmt.Errorf("insert small summary: %w", err)
		}
	}

	if err := insertHistory(ctx, tx, doc); err != nil {
		return err
	}

	for i, g := range doc.PlotGuidance {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO plot_guidance (pos, content) VALUES (?, ?)`, i, g)
		if err != nil {
			return fmt.Errorf("insert plot guidance: %w", err)
		}
	}

	return tx.Commit()
}

func insertScene(ctx context.Context, tx *sql.Tx, scene core.SceneState) error {
	fav, err := json.Marshal(scene.Favorability)
	if err != nil {
		return fmt.Errorf("marshal favorability: %w", err)
	}
	inv, err := json.Marshal(scene.Inventory)
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}
	vis, err := json.Marshal(scene.VisibleCharacters)
	if err != nil {
		return fmt.Errorf("marshal visible characters: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scene_state (id, date, current_bgm, current_bg, favorability, inventory, visible_characters)
		 VALUES (1, ?, ?, ?, ?, ?, ?)`,
		scene.Date, scene.CurrentBGM, scene.CurrentBackground, string(fav), string(inv), string(vis))
	if err != nil {
		return fmt.Errorf("insert scene state: %w", err)
	}
	return nil
}

// historyPair is one layer's user/assistant exchange. Either side may be
// absent: the trailing pair while a turn is in flight has no assistant text,
// and the opening beat has no user text.
type historyPair struct {
	user *string
	ai   *string
}

func pairHistory(messages []core.Message) []historyPair {
	var pairs []historyPair
	var current historyPair
	for i := range messages {
		msg := messages[i]
		switch msg.Role {
		case core.RoleUser:
			content := msg.Content
			current.user = &content
		case core.RoleAssistant:
			content := msg.Content
			current.ai = &content
			pairs = append(pairs, current)
			current = historyPair{}
		}
	}
	if current.user != nil {
		pairs = append(pairs, current)
	}
	return pairs
}

func insertHistory(ctx context.Context, tx *sql.Tx, doc core.MemoryDocument) error {
	pairs := pairHistory(doc.RawHistory)

	// The buffer kept in raw history covers the most recent layers, so the
	// first retained pair sits at currentLayer-len+1, floored at 1.
	startLayer := doc.CurrentLayer - len(pairs) + 1
	if startLayer < 1 {
		startLayer = 1
	}

	for i, pair := range pairs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO history (layer, user_text, ai_text) VALUES (?, ?, ?)`,
			startLayer+i, pair.user, pair.ai)
		if err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

func (r *MemoryRepo) Load(ctx context.Context) (core.MemoryDocument, bool, error) {
	doc := core.MemoryDocument{Scene: core.NewSceneState()}

	err := r.db.QueryRowContext(ctx,
		`SELECT current_layer, last_summary_layer, summaries_since_plan FROM counters WHERE id = 1`).
		Scan(&doc.CurrentLayer, &doc.LastSummaryLayer, &doc.SummariesSincePlan)
	if err == sql.ErrNoRows {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, fmt.Errorf("load counters: %w", err)
	}

	if err := r.loadScene(ctx, &doc); err != nil {
		return doc, false, err
	}
	if err := r.loadSummaries(ctx, &doc); err != nil {
		return doc, false, err
	}
	if err := r.loadHistory(ctx, &doc); err != nil {
		return doc, false, err
	}
	if err := r.loadGuidance(ctx, &doc); err != nil {
		return doc, false, err
	}

	return doc, true, nil
}

func (r *MemoryRepo) loadScene(ctx context.Context, doc *core.MemoryDocument) error {
	var fav, inv, vis string
	scene := core.NewSceneState()
	err := r.db.QueryRowContext(ctx,
		`SELECT date, current_bgm, current_bg, favorability, inventory, visible_characters FROM scene_state WHERE id = 1`).
		Scan(&scene.Date, &scene.CurrentBGM, &scene.CurrentBackground, &fav, &inv, &vis)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load scene state: %w", err)
	}

	if err := json.Unmarshal([]byte(fav), &scene.Favorability); err != nil {
		return fmt.Errorf("unmarshal favorability: %w", err)
	}
	if err := json.Unmarshal([]byte(inv), &scene.Inventory); err != nil {
		return fmt.Errorf("unmarshal inventory: %w", err)
	}
	if err := json.Unmarshal([]byte(vis), &scene.VisibleCharacters); err != nil {
		return fmt.Errorf("unmarshal visible characters: %w", err)
	}
	doc.Scene = scene
	return nil
}

func (r *MemoryRepo) loadSummaries(ctx context.Context, doc *core.MemoryDocument) error {
	rows, err := r.db.QueryContext(ctx, `SELECT label, content FROM big_summary ORDER BY pos`)
	if err != nil {
		return fmt.Errorf("load big summary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entry core.BigSummaryEntry
		if err := rows.Scan(&entry.Label, &entry.Content); err != nil {
			return fmt.Errorf("scan big summary: %w", err)
		}
		doc.BigSummary = append(doc.BigSummary, entry)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	srows, err := r.db.QueryContext(ctx, `SELECT start_layer, end_layer, content FROM small_summaries ORDER BY pos`)
	if err != nil {
		return fmt.Errorf("load small summaries: %w", err)
	}
	defer srows.Close()
	for srows.Next() {
		var s core.SmallSummary
		if err := srows.Scan(&s.Range.Start, &s.Range.End, &s.Content); err != nil {
			return fmt.Errorf("scan small summary: %w", err)
		}
		doc.SmallSummaries = append(doc.SmallSummaries, s)
	}
	return srows.Err()
}

func (r *MemoryRepo) loadHistory(ctx context.Context, doc *core.MemoryDocument) error {
	rows, err := r.db.QueryContext(ctx, `SELECT user_text, ai_text FROM history ORDER BY layer`)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user, ai sql.NullString
		if err := rows.Scan(&user, &ai); err != nil {
			return fmt.Errorf("scan history: %w", err)
		}
		if user.Valid {
			doc.RawHistory = append(doc.RawHistory, core.Message{Role: core.RoleUser, Content: user.String})
		}
		if ai.Valid {
			doc.RawHistory = append(doc.RawHistory, core.Message{Role: core.RoleAssistant, Content: ai.String})
		}
	}
	return rows.Err()
}

func (r *MemoryRepo) loadGuidance(ctx context.Context, doc *core.MemoryDocument) error {
	rows, err := r.db.QueryContext(ctx, `SELECT content FROM plot_guidance ORDER BY pos`)
	if err != nil {
		return fmt.Errorf("load plot guidance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return fmt.Errorf("scan plot guidance: %w", err)
		}
		doc.PlotGuidance = append(doc.PlotGuidance, g)
	}
	return rows.Err()
}
