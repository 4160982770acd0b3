package chat

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sandevgo/linguabot/internal/core"
)

func TestParseFactArray(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
		ok       bool
	}{
		{
			name:     "clean array",
			raw:      `["User's name is Sam", "User lives in Oslo"]`,
			expected: []string{"User's name is Sam", "User lives in Oslo"},
			ok:       true,
		},
		{
			name:     "array wrapped in prose",
			raw:      "Here are the facts I found:\n```json\n[\"User likes tea\"]\n```",
			expected: []string{"User likes tea"},
			ok:       true,
		},
		{
			name:     "empty array",
			raw:      `[]`,
			expected: []string{},
			ok:       true,
		},
		{
			name: "no array",
			raw:  "I could not find any facts.",
			ok:   false,
		},
		{
			name: "array of wrong type",
			raw:  `[1, 2, 3]`,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFactArray(tt.raw)
			if ok != tt.ok {
				t.Fatalf("parseFactArray() ok = %v, want %v", ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseFactArray() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHeuristicFacts(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    int
	}{
		{"name phrase", "Hi, my name is Sam", 1},
		{"name phrase alternative", "I am called Sam", 1},
		{"preference phrase", "I like hiking in the mountains", 1},
		{"location phrase", "I live in Oslo", 1},
		{"location contraction", "I'm from Norway", 1},
		{"name and preference together", "My name is Sam and I love tea", 2},
		{"nothing personal", "What's the weather like?", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := heuristicFacts(tt.message)
			if len(got) != tt.want {
				t.Errorf("heuristicFacts(%q) = %v, want %d facts", tt.message, got, tt.want)
			}
		})
	}
}

func TestExtractFallsBackToHeuristics(t *testing.T) {
	failing := completerFunc(func(_ context.Context, _ []core.Message) (string, error) {
		return "", errors.New("provider down")
	})
	extractor := NewFactExtractor(failing)

	got := extractor.Extract(context.Background(), "my name is Sam")
	if len(got) != 1 {
		t.Fatalf("Extract() = %v, want one heuristic fact", got)
	}
	if got[0] != "User's name mentioned in message: 'my name is Sam'" {
		t.Errorf("unexpected heuristic fact %q", got[0])
	}
}

func TestExtractUsesModelFacts(t *testing.T) {
	model := completerFunc(func(_ context.Context, _ []core.Message) (string, error) {
		return `["User's name is Sam"]`, nil
	})
	extractor := NewFactExtractor(model)

	got := extractor.Extract(context.Background(), "my name is Sam")
	if want := []string{"User's name is Sam"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %v, want %v", got, want)
	}
}

func TestExtractGarbageResponseUsesHeuristics(t *testing.T) {
	model := completerFunc(func(_ context.Context, _ []core.Message) (string, error) {
		return "no structured output here", nil
	})
	extractor := NewFactExtractor(model)

	got := extractor.Extract(context.Background(), "I live in Oslo")
	if len(got) != 1 {
		t.Errorf("Extract() = %v, want one heuristic fact", got)
	}
}
