package session

import (
	"reflect"
	"testing"
)

func TestExtractTag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		tag     string
		want    string
		wantErr bool
	}{
		{
			name:  "plain tag",
			input: "<game>She stepped outside.</game>",
			tag:   "game",
			want:  "She stepped outside.",
		},
		{
			name:  "surrounding chatter ignored",
			input: "Sure! Here is the scene:\n<game>\nRain again.\n</game>\nHope you like it.",
			tag:   "game",
			want:  "Rain again.",
		},
		{
			name:  "first of several tags wins",
			input: "<guide>one</guide><guide>two</guide>",
			tag:   "guide",
			want:  "one",
		},
		{
			name:  "multiline content",
			input: "<finally>line one\nline two</finally>",
			tag:   "finally",
			want:  "line one\nline two",
		},
		{
			name:    "missing tag",
			input:   "no tags at all",
			tag:     "game",
			wantErr: true,
		},
		{
			name:    "wrong tag",
			input:   "<guide>content</guide>",
			tag:     "game",
			wantErr: true,
		},
		{
			name:    "empty tag",
			input:   "<game>   </game>",
			tag:     "game",
			wantErr: true,
		},
		{
			name:    "unclosed tag",
			input:   "<game>trailing off",
			tag:     "game",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractTag(tt.input, tt.tag)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("extractTag(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("extractTag(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParsePlannerOptions(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "plain json",
			input: `{"options": ["a", "b", "c"]}`,
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "json code fence",
			input: "```json\n{\"options\": [\"a\", \"b\"]}\n```",
			want:  []string{"a", "b"},
		},
		{
			name:  "bare code fence",
			input: "```\n{\"options\": [\"only one\"]}\n```",
			want:  []string{"only one"},
		},
		{
			name:  "blank entries dropped",
			input: `{"options": ["a", "  ", "c"]}`,
			want:  []string{"a", "c"},
		},
		{
			name:    "not json",
			input:   "three great ideas follow",
			wantErr: true,
		},
		{
			name:    "empty options",
			input:   `{"options": []}`,
			wantErr: true,
		},
		{
			name:    "missing key",
			input:   `{"ideas": ["a"]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePlannerOptions(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parsePlannerOptions(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("parsePlannerOptions(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStateSingleFlight(t *testing.T) {
	state := NewState()

	if _, ok := state.BeginTurn(); !ok {
		t.Fatal("idle state refused a turn")
	}
	if state.TryBlock("job") {
		t.Fatal("job claimed the session mid-turn")
	}
	if _, ok := state.BeginTurn(); ok {
		t.Fatal("second turn started mid-turn")
	}
	state.EndTurn()

	if !state.TryBlock("Generating Small Summary...") {
		t.Fatal("job could not claim an idle session")
	}
	if reason, ok := state.BeginTurn(); ok || reason != "Generating Small Summary..." {
		t.Fatalf("turn during job: ok=%v reason=%q", ok, reason)
	}

	state.SetBlockedReason("Generating Big Summary...")
	if _, reason := state.Snapshot(); reason != "Generating Big Summary..." {
		t.Fatalf("reason = %q", reason)
	}

	state.Unblock()
	if status, _ := state.Snapshot(); status != StatusIdle {
		t.Fatalf("status = %v after unblock", status)
	}
}
