package saves

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteThenRead(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "saves"))

	state := map[string]any{"global_layer_count": 7}
	if err := mgr.Write("slot1", "Day 3 on the rooftop", state); err != nil {
		t.Fatal(err)
	}

	envelope, err := mgr.Read("slot1")
	if err != nil {
		t.Fatal(err)
	}
	if envelope.Meta.Summary != "Day 3 on the rooftop" {
		t.Fatalf("summary = %q", envelope.Meta.Summary)
	}
	if envelope.Meta.Date == "" {
		t.Fatal("meta date not stamped")
	}

	var decoded map[string]any
	if err := json.Unmarshal(envelope.GameState, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["global_layer_count"] != float64(7) {
		t.Fatalf("game state = %v", decoded)
	}
}

func TestReadMissingGameState(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"meta": {"summary": "x"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := mgr.Read("broken")
	if !errors.Is(err, ErrMissingGameState) {
		t.Fatalf("err = %v, want ErrMissingGameState", err)
	}
}

func TestReadMissingSlot(t *testing.T) {
	mgr := NewManager(t.TempDir())
	if _, err := mgr.Read("nope"); err == nil {
		t.Fatal("expected error for missing slot")
	}
}

func TestListSkipsUnreadableSlots(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir)

	if err := mgr.Write("bravo", "second", map[string]int{"x": 1}); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Write("alpha", "first", map[string]int{"x": 2}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a save"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("listed %d entries, want 2", len(entries))
	}
	if entries[0].Name != "alpha" || entries[1].Name != "bravo" {
		t.Fatalf("order = %s, %s", entries[0].Name, entries[1].Name)
	}
}

func TestListEmptyDirectory(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "never-created"))
	entries, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if entries != nil {
		t.Fatalf("entries = %v", entries)
	}
}
