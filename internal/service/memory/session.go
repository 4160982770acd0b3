package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/pkg/log"
)

const (
	searchResultLimit    = 10
	continuityFloorCount = 3
)

// ContextBundle is what a conversational caller gets back from Send:
// the composed memory context and the raw decision behind it (the
// latter is exposed for observability only).
type ContextBundle struct {
	Context  string
	Decision Decision
}

// DebugInfo is a read-only snapshot of a session for introspection.
type DebugInfo struct {
	Identity          string          `json:"api_key"`
	Language          string          `json:"language"`
	FactsCount        int             `json:"facts_count"`
	ConversationTurns int             `json:"conversation_turns"`
	RecentFacts       []string        `json:"recent_facts"`
	RecentMessages    []RecentMessage `json:"recent_messages"`
}

type RecentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionMemory is one identity's conversational memory. It holds the
// authoritative in-memory session record and writes every mutation
// through to the repository; a failed durable write is logged and
// swallowed so that conversation flow is never blocked by a storage
// hiccup (the durable copy falls behind, the in-memory one stays
// correct for the process lifetime).
//
// All operations serialize on the session mutex, so concurrent queries
// for the same identity append in strict arrival order.
type SessionMemory struct {
	mu       sync.Mutex
	identity string
	repo     core.SessionRepository
	planner  *Planner
	ranker   *Ranker
	record   core.SessionRecord
}

func NewSessionMemory(
	ctx context.Context,
	identity, language string,
	repo core.SessionRepository,
	planner *Planner,
	ranker *Ranker,
) *SessionMemory {
	rec, err := repo.Load(ctx, identity)
	if err != nil {
		// No prior state is a valid default; start empty
		log.FromCtx(ctx).Warn().Err(err).Str("identity", identity).Msg("failed to load session, starting empty")
		rec = core.SessionRecord{
			Session: core.Session{Messages: []core.Message{}},
			Facts:   []core.Fact{},
		}
	}

	s := &SessionMemory{
		identity: identity,
		repo:     repo,
		planner:  planner,
		ranker:   ranker,
		record:   rec,
	}
	s.Initialize(ctx, language)
	return s
}

// Initialize creates session metadata on first use and updates the
// language on every call. Messages and facts survive re-initialization:
// switching languages never clears history.
func (s *SessionMemory) Initialize(ctx context.Context, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record.Session.Timestamp.IsZero() {
		s.record.Session.Timestamp = time.Now()
	}
	s.record.Session.Language = language

	if err := s.repo.InitSession(ctx, s.identity, language); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("identity", s.identity).Msg("failed to persist session init")
	}
}

// AppendMessage stamps and appends a message, then persists it.
func (s *SessionMemory) AppendMessage(ctx context.Context, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendMessageLocked(ctx, role, content)
}

func (s *SessionMemory) appendMessageLocked(ctx context.Context, role, content string) {
	msg := core.Message{Role: role, Content: content, Timestamp: time.Now()}
	s.record.Session.Messages = append(s.record.Session.Messages, msg)

	if err := s.repo.AppendMessage(ctx, s.identity, msg); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("identity", s.identity).Msg("failed to persist message")
	}
}

// AppendFact stores a long-term fact about the user.
func (s *SessionMemory) AppendFact(ctx context.Context, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fact := core.Fact{Content: content, Timestamp: time.Now()}
	s.record.Facts = append(s.record.Facts, fact)

	if err := s.repo.AppendFact(ctx, s.identity, fact); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("identity", s.identity).Msg("failed to persist fact")
	}
}

// Send records the user's query and composes the memory context for the
// next completion call: facts and history as the retrieval decision
// directs, ranked search results not already covered by recency, and,
// regardless of the decision, the last few messages verbatim, so
// short-term coherence survives a wrong needs_history=false.
//
// The caller owns the rest of the turn: handing context + query to the
// completion step and appending the assistant's reply.
func (s *SessionMemory) Send(ctx context.Context, query string) ContextBundle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendMessageLocked(ctx, core.RoleUser, query)

	decision := s.planner.Plan(ctx, query)
	composed := s.buildContextLocked(ctx, decision)

	log.FromCtx(ctx).Debug().
		Str("identity", s.identity).
		Int("context_tokens", estimateTokens(composed)).
		Msg("memory context built")

	return ContextBundle{Context: composed, Decision: decision}
}

func (s *SessionMemory) buildContextLocked(ctx context.Context, decision Decision) string {
	var sb strings.Builder
	history := s.record.Session.Messages

	if decision.NeedsFacts && len(s.record.Facts) > 0 {
		sb.WriteString("Facts about the user:\n")
		for _, fact := range s.record.Facts {
			sb.WriteString("- " + fact.Content + "\n")
		}
		sb.WriteString("\n")
	}

	var included []core.Message
	if decision.NeedsHistory {
		included = s.resolveHistoryLocked(decision.HistoryTurns)
		if len(included) > 0 {
			sb.WriteString("Relevant conversation history:\n")
			for _, msg := range included {
				sb.WriteString(titleRole(msg.Role) + ": " + msg.Content + "\n")
			}
		}

		if len(decision.SearchTerms) > 0 {
			searchQuery := strings.Join(decision.SearchTerms, " ")
			results := s.ranker.Search(ctx, history, searchQuery, searchResultLimit)

			// Dedup against the recency slice by full message value;
			// two turns with identical content and timestamp collapse.
			unique := make([]core.Message, 0, len(results))
			for _, msg := range results {
				if !containsMessage(included, msg) {
					unique = append(unique, msg)
				}
			}

			if len(unique) > 0 {
				sb.WriteString("\nAdditional relevant messages found in history:\n")
				for _, msg := range unique {
					sb.WriteString(titleRole(msg.Role) + ": " + msg.Content + "\n")
				}
			}
		}
	}

	// Continuity floor: the most recent messages always make it in,
	// whatever the planner decided.
	recent := lastMessages(history, continuityFloorCount)
	if len(recent) > 0 {
		sb.WriteString("\nMost recent messages:\n")
		for _, msg := range recent {
			sb.WriteString(titleRole(msg.Role) + ": " + msg.Content + "\n")
		}
	}

	return sb.String()
}

func (s *SessionMemory) resolveHistoryLocked(turns Turns) []core.Message {
	limit, all := turns.MessageLimit()
	if all {
		return s.record.Session.Messages
	}
	return lastMessages(s.record.Session.Messages, limit)
}

// History returns the session's messages in append order; a positive
// limit keeps only the last limit entries.
func (s *SessionMemory) History(limit int) []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.record.Session.Messages
	if limit > 0 {
		msgs = lastMessages(msgs, limit)
	}
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Facts returns all facts in insertion order.
func (s *SessionMemory) Facts() []core.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Fact, len(s.record.Facts))
	copy(out, s.record.Facts)
	return out
}

// RecentMessages returns the last count messages, or fewer if the
// history is shorter.
func (s *SessionMemory) RecentMessages(count int) []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := lastMessages(s.record.Session.Messages, count)
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *SessionMemory) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Session.Language
}

func (s *SessionMemory) DebugInfo() DebugInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := s.record.Facts
	recentFacts := make([]string, 0, continuityFloorCount)
	for _, fact := range facts[max(0, len(facts)-continuityFloorCount):] {
		recentFacts = append(recentFacts, fact.Content)
	}

	recent := lastMessages(s.record.Session.Messages, continuityFloorCount)
	recentMsgs := make([]RecentMessage, 0, len(recent))
	for _, msg := range recent {
		recentMsgs = append(recentMsgs, RecentMessage{Role: msg.Role, Content: msg.Content})
	}

	return DebugInfo{
		Identity:          s.identity,
		Language:          s.record.Session.Language,
		FactsCount:        len(facts),
		ConversationTurns: len(s.record.Session.Messages) / 2,
		RecentFacts:       recentFacts,
		RecentMessages:    recentMsgs,
	}
}

func lastMessages(msgs []core.Message, count int) []core.Message {
	if count <= 0 || count >= len(msgs) {
		if count <= 0 {
			return nil
		}
		return msgs
	}
	return msgs[len(msgs)-count:]
}

func containsMessage(msgs []core.Message, target core.Message) bool {
	for _, msg := range msgs {
		if msg == target {
			return true
		}
	}
	return false
}
