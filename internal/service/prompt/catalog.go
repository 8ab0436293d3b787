package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// DateGuidance is one date-indexed plot outline entry. Date matches either
// a campaign day label ("Day 3") or a literal date ("2026-01-08").
type DateGuidance struct {
	Date    string `json:"date"`
	Outline string `json:"outline"`
}

func LoadDateGuidance(path string) ([]DateGuidance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read date guidance: %w", err)
	}
	var guidance []DateGuidance
	if err := json.Unmarshal(data, &guidance); err != nil {
		return nil, fmt.Errorf("decode date guidance: %w", err)
	}
	return guidance, nil
}

// loadMusicCatalog returns track names from the asset registry.
func loadMusicCatalog(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read music registry: %w", err)
	}
	var registry struct {
		Music []struct {
			Name string `json:"name"`
		} `json:"music"`
	}
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("decode music registry: %w", err)
	}

	names := make([]string, 0, len(registry.Music))
	for _, track := range registry.Music {
		names = append(names, track.Name)
	}
	return names, nil
}

// loadSoundCatalog returns the sound effect names, sorted for a stable
// prompt. The map can hold a thousand entries; only keys matter here.
func loadSoundCatalog(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sound map: %w", err)
	}
	var sounds map[string]json.RawMessage
	if err := json.Unmarshal(data, &sounds); err != nil {
		return nil, fmt.Errorf("decode sound map: %w", err)
	}

	keys := make([]string, 0, len(sounds))
	for key := range sounds {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
