package prompt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sandevgo/reverie/pkg/log"
)

// FavorRule maps a favorability threshold to the character's attitude. A
// character's rule table is a step function: rules sorted descending by
// threshold, first rule at or below the current score wins.
type FavorRule struct {
	Threshold int    `json:"threshold"`
	Attitude  string `json:"attitude"`
}

type ImportantNPC struct {
	Name    string
	Profile string
	Rules   []FavorRule
}

// Attitude resolves the relationship step for the given favorability score.
func (n ImportantNPC) Attitude(favor int) string {
	for _, rule := range n.Rules {
		if favor >= rule.Threshold {
			return rule.Attitude
		}
	}
	return "Neutral"
}

// NPCRegistry holds character profiles loaded from the assets tree:
// loose .txt files for generic NPCs, and per-character directories with a
// profile and favorability rule table for important ones.
type NPCRegistry struct {
	Generic   []string
	Important []ImportantNPC
}

func (r *NPCRegistry) FindImportant(name string) (ImportantNPC, bool) {
	for _, npc := range r.Important {
		if npc.Name == name {
			return npc, true
		}
	}
	return ImportantNPC{}, false
}

// LoadNPCRegistry reads root/*.txt and root/important/<name>/{profile.txt,
// favor_rules.json}. Missing files contribute nothing; never fatal.
func LoadNPCRegistry(ctx context.Context, root string) *NPCRegistry {
	logger := log.FromCtx(ctx)
	registry := &NPCRegistry{}

	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn().Err(err).Str("path", root).Msg("npc directory not readable")
		return registry
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, entry.Name()))
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("skipping npc profile")
			continue
		}
		registry.Generic = append(registry.Generic, strings.TrimSpace(string(data)))
	}

	importantRoot := filepath.Join(root, "important")
	dirs, err := os.ReadDir(importantRoot)
	if err != nil {
		return registry
	}

	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		npc := ImportantNPC{Name: dir.Name()}

		if data, err := os.ReadFile(filepath.Join(importantRoot, dir.Name(), "profile.txt")); err == nil {
			npc.Profile = strings.TrimSpace(string(data))
		}

		if data, err := os.ReadFile(filepath.Join(importantRoot, dir.Name(), "favor_rules.json")); err == nil {
			if err := json.Unmarshal(data, &npc.Rules); err != nil {
				logger.Warn().Err(err).Str("npc", dir.Name()).Msg("bad favor rules, ignoring")
				npc.Rules = nil
			}
		}
		sort.Slice(npc.Rules, func(i, j int) bool {
			return npc.Rules[i].Threshold > npc.Rules[j].Threshold
		})

		registry.Important = append(registry.Important, npc)
	}

	sort.Slice(registry.Important, func(i, j int) bool {
		return registry.Important[i].Name < registry.Important[j].Name
	})
	return registry
}
