package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/pkg/log"
)

const rankerSystemPrompt = `You are a memory retrieval expert. Rank the following conversation messages
by their relevance to the user's current query. Return a JSON list of
indices in order of relevance (most relevant first).`

// Ranker finds messages in a session's history that are relevant to a
// query. The primary strategy asks the model to rank message indices;
// keyword matching is the deterministic floor it degrades to.
type Ranker struct {
	completer core.Completer
}

func NewRanker(completer core.Completer) *Ranker {
	return &Ranker{completer: completer}
}

// Search returns up to limit relevant messages. Model-ranked results
// come back in relevance order; the keyword fallback keeps
// chronological order. Search never fails; at worst it returns nil.
func (r *Ranker) Search(ctx context.Context, history []core.Message, query string, limit int) []core.Message {
	if len(history) == 0 {
		return nil
	}

	if results, ok := r.rankWithModel(ctx, history, query, limit); ok {
		return results
	}
	return KeywordSearch(history, query, limit)
}

func (r *Ranker) rankWithModel(ctx context.Context, history []core.Message, query string, limit int) ([]core.Message, bool) {
	var listing strings.Builder
	for i, msg := range history {
		fmt.Fprintf(&listing, "[%d] %s: %s\n", i, titleRole(msg.Role), msg.Content)
	}

	prompt := fmt.Sprintf(`User's current query: %q

Conversation messages:
%s
Return the indices of the most relevant messages as a JSON list,
ordered from most to least relevant. For example: [3, 1, 4]
Only include indices that are genuinely relevant to the query.`, query, listing.String())

	raw, err := r.completer.Complete(ctx, []core.Message{
		{Role: core.RoleSystem, Content: rankerSystemPrompt},
		{Role: core.RoleUser, Content: prompt},
	})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("semantic ranking failed, falling back to keyword search")
		return nil, false
	}

	indices, ok := parseIndexList(raw)
	if !ok {
		return nil, false
	}

	results := make([]core.Message, 0, limit)
	for _, idx := range indices {
		if idx < 0 || idx >= len(history) {
			continue
		}
		results = append(results, history[idx])
		if len(results) >= limit {
			break
		}
	}
	return results, true
}

func parseIndexList(content string) ([]int, bool) {
	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, false
	}

	var indices []int
	if err := json.Unmarshal([]byte(jsonStr), &indices); err != nil {
		return nil, false
	}
	return indices, true
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "]")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}

// KeywordSearch scans history in chronological order and returns up to
// limit messages whose content contains any whitespace-separated query
// token, case-insensitively. No matches yields an empty result.
func KeywordSearch(history []core.Message, query string, limit int) []core.Message {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	var results []core.Message
	for _, msg := range history {
		content := strings.ToLower(msg.Content)
		for _, term := range terms {
			if strings.Contains(content, term) {
				results = append(results, msg)
				break
			}
		}
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

// titleRole renders a role for prompt text: "user" -> "User".
func titleRole(role string) string {
	if role == "" {
		return role
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
