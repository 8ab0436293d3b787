package prompt

import (
	"encoding/json"
	"fmt"
	"os"
)

// ItemKind is the closed set of sequence item types. Anything else in
// prompts.json is rejected at load time rather than discovered mid-turn.
type ItemKind string

const (
	ItemFile    ItemKind = "file"
	ItemText    ItemKind = "text"
	ItemDynamic ItemKind = "dynamic"
)

type SequenceItem struct {
	Type    ItemKind `json:"type"`
	Key     string   `json:"key,omitempty"`
	Content string   `json:"content,omitempty"`
}

// Config mirrors the prompts.json document: a logical-name to file-path map
// and named ordered sequences. Read-only input; an editor UI owns writes.
type Config struct {
	FileMap   map[string]string         `json:"file_map"`
	Sequences map[string][]SequenceItem `json:"sequences"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode prompt config: %w", err)
	}
	if cfg.FileMap == nil {
		cfg.FileMap = map[string]string{}
	}
	if cfg.Sequences == nil {
		cfg.Sequences = map[string][]SequenceItem{}
	}

	for name, sequence := range cfg.Sequences {
		for i, item := range sequence {
			switch item.Type {
			case ItemFile, ItemText, ItemDynamic:
			default:
				return nil, fmt.Errorf("sequence %q item %d: unknown type %q", name, i, item.Type)
			}
		}
	}
	return &cfg, nil
}
