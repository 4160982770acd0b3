package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/internal/service/memory"
)

type completerFunc func(ctx context.Context, messages []core.Message) (string, error)

func (f completerFunc) Complete(ctx context.Context, messages []core.Message) (string, error) {
	return f(ctx, messages)
}

// scriptedCompleter answers each internal model call by looking at its
// system prompt, so tests do not depend on call ordering.
func scriptedCompleter(reply string) completerFunc {
	return func(_ context.Context, messages []core.Message) (string, error) {
		system := messages[0].Content
		switch {
		case strings.Contains(system, "memory extraction expert"):
			return "[]", nil
		case strings.Contains(system, "analyze a user query"):
			return `{"needs_history": false, "needs_facts": false, "history_turns": 0, "search_terms": [], "explanation": "test"}`, nil
		case strings.Contains(system, "Rank the following"):
			return "[]", nil
		default:
			return reply, nil
		}
	}
}

type fakeRepo struct {
	records map[string]core.SessionRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]core.SessionRecord)}
}

func (r *fakeRepo) Load(_ context.Context, identity string) (core.SessionRecord, error) {
	if rec, ok := r.records[identity]; ok {
		return rec, nil
	}
	return core.SessionRecord{
		Session: core.Session{Messages: []core.Message{}},
		Facts:   []core.Fact{},
	}, nil
}

func (r *fakeRepo) InitSession(_ context.Context, identity, language string) error {
	rec := r.records[identity]
	rec.Session.Language = language
	r.records[identity] = rec
	return nil
}

func (r *fakeRepo) AppendMessage(_ context.Context, identity string, msg core.Message) error {
	rec := r.records[identity]
	rec.Session.Messages = append(rec.Session.Messages, msg)
	r.records[identity] = rec
	return nil
}

func (r *fakeRepo) AppendFact(_ context.Context, identity string, fact core.Fact) error {
	rec := r.records[identity]
	rec.Facts = append(rec.Facts, fact)
	r.records[identity] = rec
	return nil
}

func newTestService(completer core.Completer) *Service {
	registry := memory.NewRegistry(
		newFakeRepo(),
		memory.NewPlanner(completer),
		memory.NewRanker(completer),
	)
	return NewService(registry, completer, "English")
}

func TestChatSeedsNewSession(t *testing.T) {
	svc := newTestService(scriptedCompleter("Hello Sam!"))

	reply, err := svc.Chat(context.Background(), "key-1", "Hi", "English")
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if reply.Response != "Hello Sam!" {
		t.Errorf("response = %q, want %q", reply.Response, "Hello Sam!")
	}
	if reply.Identity != "key-1" {
		t.Errorf("identity = %q, want %q", reply.Identity, "key-1")
	}

	history, err := svc.History("key-1")
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	// system prompt, welcome, user query, assistant reply
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4: %+v", len(history), history)
	}
	if history[0].Role != core.RoleSystem || !strings.Contains(history[0].Content, "Respond to all my messages in English") {
		t.Errorf("missing system seed, got %+v", history[0])
	}
	if history[1].Role != core.RoleAssistant {
		t.Errorf("missing welcome seed, got %+v", history[1])
	}
	if history[3].Role != core.RoleAssistant || history[3].Content != "Hello Sam!" {
		t.Errorf("assistant reply not recorded, got %+v", history[3])
	}
}

func TestChatDoesNotReseedExistingSession(t *testing.T) {
	svc := newTestService(scriptedCompleter("reply"))

	if _, err := svc.Chat(context.Background(), "key-1", "first", "English"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Chat(context.Background(), "key-1", "second", "English"); err != nil {
		t.Fatal(err)
	}

	history, _ := svc.History("key-1")
	systemCount := 0
	for _, msg := range history {
		if msg.Role == core.RoleSystem {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Errorf("system seed count = %d, want 1: %+v", systemCount, history)
	}
}

func TestChatGeneratesAnonymousIdentity(t *testing.T) {
	svc := newTestService(scriptedCompleter("reply"))

	first, err := svc.Chat(context.Background(), "", "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(first.Identity, "anon-") {
		t.Errorf("identity = %q, want anon- prefix", first.Identity)
	}

	second, _ := svc.Chat(context.Background(), "", "hello again", "")
	if first.Identity == second.Identity {
		t.Error("anonymous identities must be unique per request")
	}
}

func TestChatRecordsExtractedFacts(t *testing.T) {
	completer := completerFunc(func(_ context.Context, messages []core.Message) (string, error) {
		system := messages[0].Content
		switch {
		case strings.Contains(system, "memory extraction expert"):
			return `["User's name is Sam"]`, nil
		case strings.Contains(system, "analyze a user query"):
			return `{"needs_history": false, "needs_facts": true, "history_turns": 0, "search_terms": [], "explanation": "test"}`, nil
		default:
			return "Nice to meet you, Sam!", nil
		}
	})
	svc := newTestService(completer)

	if _, err := svc.Chat(context.Background(), "key-1", "My name is Sam", "English"); err != nil {
		t.Fatal(err)
	}

	info, err := svc.Debug("key-1")
	if err != nil {
		t.Fatal(err)
	}
	if info.FactsCount != 1 || info.RecentFacts[0] != "User's name is Sam" {
		t.Errorf("facts not recorded: %+v", info)
	}
}

func TestChatCompletionFailure(t *testing.T) {
	completer := completerFunc(func(_ context.Context, _ []core.Message) (string, error) {
		return "", errors.New("provider down")
	})
	svc := newTestService(completer)

	_, err := svc.Chat(context.Background(), "key-1", "hello", "English")
	if err == nil {
		t.Fatal("Chat() should fail when the completion provider fails")
	}

	// The user's message is still part of the session; only the reply
	// is missing.
	history, histErr := svc.History("key-1")
	if histErr != nil {
		t.Fatal(histErr)
	}
	last := history[len(history)-1]
	if last.Role != core.RoleUser || last.Content != "hello" {
		t.Errorf("last message = %+v, want the user's query", last)
	}
}

func TestAddFactRequiresSession(t *testing.T) {
	svc := newTestService(scriptedCompleter("reply"))

	if err := svc.AddFact(context.Background(), "stranger", "some fact"); !errors.Is(err, ErrNoSession) {
		t.Errorf("AddFact() for unknown identity = %v, want ErrNoSession", err)
	}

	if _, err := svc.Chat(context.Background(), "key-1", "hello", "English"); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddFact(context.Background(), "key-1", "likes tea"); err != nil {
		t.Errorf("AddFact() after chat = %v, want nil", err)
	}

	info, _ := svc.Debug("key-1")
	if info.FactsCount != 1 {
		t.Errorf("facts count = %d, want 1", info.FactsCount)
	}
}

func TestDebugRequiresSession(t *testing.T) {
	svc := newTestService(scriptedCompleter("reply"))

	if _, err := svc.Debug("stranger"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Debug() for unknown identity = %v, want ErrNoSession", err)
	}
}
