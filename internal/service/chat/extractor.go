package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/pkg/log"
)

const extractorSystemPrompt = `You are a memory extraction expert. Your job is to analyze a user message and extract
important facts about the user that should be remembered for future reference.

Examples of important facts:
- Personal information (name, location, preferences)
- Specific interests or hobbies
- Important life events or circumstances

Respond with a JSON array of extracted facts, or an empty array if none found:
["fact 1", "fact 2", ...]`

// FactExtractor pulls durable user facts out of a single message. The
// model does the heavy lifting; when it fails or returns garbage, a
// small set of phrase heuristics catches the obvious cases so a flaky
// provider never makes the bot forget who it is talking to.
type FactExtractor struct {
	completer core.Completer
}

func NewFactExtractor(completer core.Completer) *FactExtractor {
	return &FactExtractor{completer: completer}
}

func (e *FactExtractor) Extract(ctx context.Context, message string) []string {
	raw, err := e.completer.Complete(ctx, []core.Message{
		{Role: core.RoleSystem, Content: extractorSystemPrompt},
		{Role: core.RoleUser, Content: fmt.Sprintf("User message: %s\nExtract any important facts:", message)},
	})
	if err == nil {
		if facts, ok := parseFactArray(raw); ok {
			return facts
		}
	} else {
		log.FromCtx(ctx).Warn().Err(err).Msg("fact extraction call failed, using heuristics")
	}

	return heuristicFacts(message)
}

// parseFactArray finds the JSON array inside a model response that may
// be wrapped in prose or markdown fences.
func parseFactArray(raw string) ([]string, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, false
	}

	var facts []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &facts); err != nil {
		return nil, false
	}
	return facts, true
}

func heuristicFacts(message string) []string {
	lower := strings.ToLower(message)
	var facts []string

	if strings.Contains(lower, "my name is") || strings.Contains(lower, "i am called") {
		facts = append(facts, fmt.Sprintf("User's name mentioned in message: '%s'", message))
	}
	if strings.Contains(lower, "i like") || strings.Contains(lower, "i enjoy") || strings.Contains(lower, "i love") {
		facts = append(facts, fmt.Sprintf("User's preference mentioned: '%s'", message))
	}
	if strings.Contains(lower, "i live in") || strings.Contains(lower, "i'm from") || strings.Contains(lower, "i am from") {
		facts = append(facts, fmt.Sprintf("User's location mentioned: '%s'", message))
	}
	return facts
}
