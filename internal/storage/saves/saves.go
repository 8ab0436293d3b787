package saves

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrMissingGameState marks a save file without the required game_state
// payload. A format error, not a crash.
var ErrMissingGameState = errors.New("save file has no game_state")

type Meta struct {
	Date    string `json:"date"`
	Summary string `json:"summary"`
}

// Envelope is the on-disk save-file shape. GameState carries a memory
// snapshot opaque to this package.
type Envelope struct {
	Meta      Meta            `json:"meta"`
	GameState json.RawMessage `json:"game_state"`
}

type Entry struct {
	Name string
	Meta Meta
}

// Manager reads and writes save slots as JSON files in one directory.
type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name+".json")
}

func (m *Manager) Write(name string, summary string, state any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}

	envelope := Envelope{
		Meta: Meta{
			Date:    time.Now().Format(time.DateTime),
			Summary: summary,
		},
		GameState: stateJSON,
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal save: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create saves directory: %w", err)
	}
	if err := os.WriteFile(m.path(name), data, 0644); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

func (m *Manager) Read(name string) (Envelope, error) {
	data, err := os.ReadFile(m.path(name))
	if err != nil {
		return Envelope{}, fmt.Errorf("read save: %w", err)
	}

	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode save: %w", err)
	}
	if len(envelope.GameState) == 0 {
		return Envelope{}, ErrMissingGameState
	}
	return envelope, nil
}

func (m *Manager) List() ([]Entry, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list saves: %w", err)
	}

	var entries []Entry
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(file.Name(), ".json")

		envelope, err := m.Read(name)
		if err != nil {
			// Unreadable slots are skipped, not fatal.
			continue
		}
		entries = append(entries, Entry{Name: name, Meta: envelope.Meta})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
