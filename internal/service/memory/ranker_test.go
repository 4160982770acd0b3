package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sandevgo/linguabot/internal/core"
)

func historyFixture() []core.Message {
	return []core.Message{
		{Role: core.RoleUser, Content: "My name is Sam"},
		{Role: core.RoleAssistant, Content: "Nice to meet you, Sam!"},
		{Role: core.RoleUser, Content: "I have a cat called Misha"},
		{Role: core.RoleAssistant, Content: "Misha is a lovely name for a cat."},
		{Role: core.RoleUser, Content: "What's the weather like?"},
	}
}

func TestKeywordSearch(t *testing.T) {
	history := historyFixture()

	tests := []struct {
		name     string
		query    string
		limit    int
		expected []core.Message
	}{
		{
			name:     "single term case insensitive",
			query:    "CAT",
			limit:    10,
			expected: []core.Message{history[2], history[3]},
		},
		{
			name:     "any term matches",
			query:    "misha weather",
			limit:    10,
			expected: []core.Message{history[2], history[3], history[4]},
		},
		{
			name:     "limit caps results",
			query:    "misha weather",
			limit:    2,
			expected: []core.Message{history[2], history[3]},
		},
		{
			name:     "no match",
			query:    "dinosaur",
			limit:    10,
			expected: nil,
		},
		{
			name:     "weather only",
			query:    "weather",
			limit:    10,
			expected: []core.Message{history[4]},
		},
		{
			name:     "empty query",
			query:    "   ",
			limit:    10,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeywordSearch(history, tt.query, tt.limit)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("KeywordSearch() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSearchUsesModelRanking(t *testing.T) {
	history := historyFixture()
	ranker := NewRanker(stubCompleter{response: "The most relevant are: [2, 0]"})

	got := ranker.Search(context.Background(), history, "tell me about my cat", 10)
	want := []core.Message{history[2], history[0]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %v, want relevance order %v", got, want)
	}
}

func TestSearchIgnoresOutOfRangeIndices(t *testing.T) {
	history := historyFixture()
	ranker := NewRanker(stubCompleter{response: "[42, -1, 3]"})

	got := ranker.Search(context.Background(), history, "cat", 10)
	want := []core.Message{history[3]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %v, want %v", got, want)
	}
}

func TestSearchCapsModelResultsAtLimit(t *testing.T) {
	history := historyFixture()
	ranker := NewRanker(stubCompleter{response: "[0, 1, 2, 3, 4]"})

	got := ranker.Search(context.Background(), history, "everything", 2)
	if len(got) != 2 {
		t.Errorf("Search() returned %d results, want 2", len(got))
	}
}

func TestSearchFallsBackToKeywords(t *testing.T) {
	history := historyFixture()

	tests := []struct {
		name      string
		completer stubCompleter
	}{
		{"completer error", stubCompleter{err: errors.New("provider down")}},
		{"no json array in response", stubCompleter{response: "messages 2 and 0 look relevant"}},
		{"malformed array", stubCompleter{response: `["two", "zero"]`}},
	}

	want := KeywordSearch(history, "cat", 10)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranker := NewRanker(tt.completer)
			got := ranker.Search(context.Background(), history, "cat", 10)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Search() = %v, want keyword fallback %v", got, want)
			}
		})
	}
}

func TestSearchEmptyHistory(t *testing.T) {
	ranker := NewRanker(stubCompleter{response: "[0]"})
	if got := ranker.Search(context.Background(), nil, "anything", 10); got != nil {
		t.Errorf("Search() on empty history = %v, want nil", got)
	}
}

func TestTitleRole(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user", "User"},
		{"assistant", "Assistant"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := titleRole(tt.in); got != tt.want {
			t.Errorf("titleRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
