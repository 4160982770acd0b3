package memory

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/pkg/log"
)

// fallbackMessageCount is used when a decision carries a history_turns
// value that cannot be resolved to a number.
const fallbackMessageCount = 6

// Decision is the per-query retrieval plan. It is ephemeral: produced
// fresh for each query and never persisted. It only shapes what the
// session surfaces into the next completion call.
type Decision struct {
	NeedsHistory bool     `json:"needs_history"`
	NeedsFacts   bool     `json:"needs_facts"`
	HistoryTurns Turns    `json:"history_turns"`
	SearchTerms  []string `json:"search_terms"`
	Explanation  string   `json:"explanation"`
}

// Turns is a conversation-turn count: a number, the literal "all", or
// invalid. One turn is two messages (user + assistant).
type Turns struct {
	All   bool
	N     int
	valid bool
}

func TurnCount(n int) Turns   { return Turns{N: n, valid: true} }
func AllTurns() Turns         { return Turns{All: true, valid: true} }
func (t Turns) IsValid() bool { return t.valid }

// MessageLimit resolves the turn count to a message-count limit.
// all=true means the full history; otherwise limit messages apply.
// An invalid value resolves to the last fallbackMessageCount messages.
func (t Turns) MessageLimit() (limit int, all bool) {
	if t.All {
		return 0, true
	}
	if !t.valid || t.N < 0 {
		return fallbackMessageCount, false
	}
	return t.N * 2, false
}

// UnmarshalJSON is deliberately lenient: model output may carry the
// turn count as a number, a numeric string, or "all". Anything else
// leaves the value invalid without failing the whole decision.
func (t *Turns) UnmarshalJSON(data []byte) error {
	*t = Turns{}

	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		t.N = n
		t.valid = true
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.EqualFold(strings.TrimSpace(s), "all") {
			t.All = true
			t.valid = true
			return nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			t.N = n
			t.valid = true
			return nil
		}
	}
	return nil
}

func (t Turns) MarshalJSON() ([]byte, error) {
	if t.All {
		return json.Marshal("all")
	}
	if !t.valid {
		return json.Marshal(nil)
	}
	return json.Marshal(t.N)
}

// DefaultDecision is the fixed fallback plan: partial memory retrieval
// with the query's own words as search terms.
func DefaultDecision(query string) Decision {
	return Decision{
		NeedsHistory: true,
		NeedsFacts:   true,
		HistoryTurns: TurnCount(3),
		SearchTerms:  strings.Fields(query),
		Explanation:  "fallback",
	}
}

const plannerSystemPrompt = `You are a memory retrieval expert. Your job is to analyze a user query and determine:
1. Whether we need to search through past conversation history or if this is a standalone question
2. Whether we need user facts/preferences from memory
3. How many previous conversation turns we should include for context

Respond with JSON in this exact format:
{
    "needs_history": true/false,
    "needs_facts": true/false,
    "history_turns": <number of turns or "all">,
    "search_terms": ["list", "of", "relevant", "terms"],
    "explanation": "brief explanation of your decision"
}`

// Planner decides, per incoming query, whether and how much memory to
// surface. It asks the model to classify the query and degrades to
// DefaultDecision on any failure; planning itself never fails.
type Planner struct {
	completer core.Completer
}

func NewPlanner(completer core.Completer) *Planner {
	return &Planner{completer: completer}
}

func (p *Planner) Plan(ctx context.Context, query string) Decision {
	logger := log.FromCtx(ctx)

	raw, err := p.completer.Complete(ctx, []core.Message{
		{Role: core.RoleSystem, Content: plannerSystemPrompt},
		{Role: core.RoleUser, Content: "User query: " + query + "\nAnalyze this query and determine memory requirements:"},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("retrieval planning call failed, using default decision")
		return DefaultDecision(query)
	}

	decision := ParseDecision(raw, query)
	logger.Debug().
		Bool("needs_history", decision.NeedsHistory).
		Bool("needs_facts", decision.NeedsFacts).
		Str("explanation", decision.Explanation).
		Msg("retrieval decision")
	return decision
}

// ParseDecision extracts a Decision from free-form model output. It
// never fails: no JSON object, malformed JSON or missing fields all
// yield DefaultDecision(query).
func ParseDecision(raw, query string) Decision {
	jsonStr := extractJSONObject(raw)
	if jsonStr == "" {
		return DefaultDecision(query)
	}

	// Pointers distinguish "absent" from "false"
	var parsed struct {
		NeedsHistory *bool    `json:"needs_history"`
		NeedsFacts   *bool    `json:"needs_facts"`
		HistoryTurns Turns    `json:"history_turns"`
		SearchTerms  []string `json:"search_terms"`
		Explanation  string   `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return DefaultDecision(query)
	}
	if parsed.NeedsHistory == nil || parsed.NeedsFacts == nil {
		return DefaultDecision(query)
	}

	return Decision{
		NeedsHistory: *parsed.NeedsHistory,
		NeedsFacts:   *parsed.NeedsFacts,
		HistoryTurns: parsed.HistoryTurns,
		SearchTerms:  parsed.SearchTerms,
		Explanation:  parsed.Explanation,
	}
}

// extractJSONObject returns the first JSON-object-shaped substring:
// from the first '{' to the last '}'. Model responses wrap JSON in
// prose more often than not, so this stays best effort.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "}")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}
