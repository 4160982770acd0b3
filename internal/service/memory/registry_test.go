package memory

import (
	"context"
	"testing"
	"time"

	"github.com/sandevgo/linguabot/internal/core"
)

func newTestRegistry(repo core.SessionRepository, opts ...RegistryOption) *Registry {
	planner := NewPlanner(failingCompleter)
	ranker := NewRanker(failingCompleter)
	return NewRegistry(repo, planner, ranker, opts...)
}

func TestRegistryReturnsSameInstance(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(newFakeRepo())

	first := reg.Get(ctx, "alice", "English")
	second := reg.Get(ctx, "alice", "English")
	if first != second {
		t.Error("Get returned different instances for the same identity")
	}

	other := reg.Get(ctx, "bob", "English")
	if other == first {
		t.Error("distinct identities share a session instance")
	}
}

func TestRegistryLanguageSwitch(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(newFakeRepo())

	sess := reg.Get(ctx, "alice", "English")
	sess.AppendMessage(ctx, core.RoleUser, "hello")

	same := reg.Get(ctx, "alice", "French")
	if same != sess {
		t.Fatal("language switch must not replace the instance")
	}
	if got := sess.Language(); got != "French" {
		t.Errorf("language = %q, want %q", got, "French")
	}
	if got := len(sess.History(0)); got != 1 {
		t.Errorf("history length after language switch = %d, want 1", got)
	}
}

func TestRegistryLookup(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(newFakeRepo())

	if _, ok := reg.Lookup("nobody"); ok {
		t.Error("Lookup created or found a session that should not exist")
	}

	created := reg.Get(ctx, "alice", "English")
	found, ok := reg.Lookup("alice")
	if !ok || found != created {
		t.Error("Lookup did not return the live session")
	}
}

func TestRegistryCapacityEviction(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(newFakeRepo(), WithMaxSessions(2))

	reg.Get(ctx, "a", "English")
	reg.Get(ctx, "b", "English")
	// Touch "a" so "b" is the least recently used
	reg.Get(ctx, "a", "English")
	reg.Get(ctx, "c", "English")

	if got := reg.Len(); got != 2 {
		t.Errorf("registry size = %d, want 2", got)
	}
	if _, ok := reg.Lookup("b"); ok {
		t.Error("least recently used session survived eviction")
	}
	if _, ok := reg.Lookup("a"); !ok {
		t.Error("recently used session was evicted")
	}
}

func TestRegistryIdleEviction(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(newFakeRepo(), WithIdleTTL(time.Millisecond))

	reg.Get(ctx, "a", "English")
	time.Sleep(5 * time.Millisecond)
	reg.Get(ctx, "b", "English")

	if _, ok := reg.Lookup("a"); ok {
		t.Error("idle session survived TTL eviction")
	}
	if _, ok := reg.Lookup("b"); !ok {
		t.Error("fresh session was evicted")
	}
}

func TestRegistryEvictionKeepsDurableState(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	reg := newTestRegistry(repo, WithMaxSessions(1))

	sess := reg.Get(ctx, "alice", "English")
	sess.AppendMessage(ctx, core.RoleUser, "remember me")

	// Force alice out of the cache
	reg.Get(ctx, "bob", "English")
	if _, ok := reg.Lookup("alice"); ok {
		t.Fatal("alice should have been evicted")
	}

	reloaded := reg.Get(ctx, "alice", "English")
	history := reloaded.History(0)
	if len(history) != 1 || history[0].Content != "remember me" {
		t.Errorf("reloaded history = %v, want the persisted message", history)
	}
}
