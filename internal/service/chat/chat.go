package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/internal/service/memory"
	"github.com/sandevgo/linguabot/pkg/log"
)

// ErrNoSession is returned by operations that require an already
// established session for the given identity.
var ErrNoSession = errors.New("no session for identity")

// Reply is the outcome of one chat turn.
type Reply struct {
	Response string
	Identity string
}

// Service runs complete chat turns: it extracts facts worth keeping
// from the user's message, composes the memory context through the
// session facade, asks the completion provider for a reply in the
// session language, and records the assistant turn.
type Service struct {
	registry        *memory.Registry
	completer       core.Completer
	extractor       *FactExtractor
	defaultLanguage string
}

func NewService(registry *memory.Registry, completer core.Completer, defaultLanguage string) *Service {
	return &Service{
		registry:        registry,
		completer:       completer,
		extractor:       NewFactExtractor(completer),
		defaultLanguage: defaultLanguage,
	}
}

// Chat processes one user query. An empty identity gets an anonymous
// one, which is returned so the caller can keep the session going.
func (s *Service) Chat(ctx context.Context, identity, query, language string) (Reply, error) {
	if identity == "" {
		identity = "anon-" + uuid.NewString()
	}
	if language == "" {
		language = s.defaultLanguage
	}

	sess := s.registry.Get(ctx, identity, language)
	s.seedIfEmpty(ctx, sess, language)

	for _, fact := range s.extractor.Extract(ctx, query) {
		sess.AppendFact(ctx, fact)
	}

	bundle := sess.Send(ctx, query)
	log.FromCtx(ctx).Debug().
		Str("identity", identity).
		Str("explanation", bundle.Decision.Explanation).
		Msg("memory decision")

	response, err := s.completer.Complete(ctx, s.buildPrompt(query, language, bundle.Context))
	if err != nil {
		return Reply{}, fmt.Errorf("completion failed: %w", err)
	}

	sess.AppendMessage(ctx, core.RoleAssistant, response)
	return Reply{Response: response, Identity: identity}, nil
}

// AddFact stores a user fact into an existing session.
func (s *Service) AddFact(ctx context.Context, identity, fact string) error {
	sess, ok := s.registry.Lookup(identity)
	if !ok {
		return ErrNoSession
	}
	sess.AppendFact(ctx, fact)
	return nil
}

// Debug returns the session snapshot for introspection.
func (s *Service) Debug(identity string) (memory.DebugInfo, error) {
	sess, ok := s.registry.Lookup(identity)
	if !ok {
		return memory.DebugInfo{}, ErrNoSession
	}
	return sess.DebugInfo(), nil
}

// History returns the full message history of an existing session.
func (s *Service) History(identity string) ([]core.Message, error) {
	sess, ok := s.registry.Lookup(identity)
	if !ok {
		return nil, ErrNoSession
	}
	return sess.History(0), nil
}

// seedIfEmpty writes the opening system prompt and welcome message on
// first contact. A session restored from storage keeps its original
// opening instead of getting a second one.
func (s *Service) seedIfEmpty(ctx context.Context, sess *memory.SessionMemory, language string) {
	if len(sess.History(1)) > 0 {
		return
	}
	sess.AppendMessage(ctx, core.RoleSystem, systemPrompt(language))
	sess.AppendMessage(ctx, core.RoleAssistant,
		fmt.Sprintf("I'll be your multilingual assistant, responding in %s. How can I help you today?", language))
}

func (s *Service) buildPrompt(query, language, memoryContext string) []core.Message {
	msgs := make([]core.Message, 0, 3)
	msgs = append(msgs, core.Message{Role: core.RoleSystem, Content: systemPrompt(language)})
	if memoryContext != "" {
		msgs = append(msgs, core.Message{
			Role:    core.RoleSystem,
			Content: "Context from the conversation memory:\n\n" + memoryContext,
		})
	}
	msgs = append(msgs, core.Message{Role: core.RoleUser, Content: query})
	return msgs
}

func systemPrompt(language string) string {
	return fmt.Sprintf("You are a multilingual chatbot. Respond to all my messages in %s. Be friendly and helpful.", language)
}
