package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/pkg/log"
)

const (
	defaultMaxSessions = 256
	defaultIdleTTL     = time.Hour
)

type registryEntry struct {
	identity string
	session  *SessionMemory
	lastUsed time.Time
}

// Registry hands out one SessionMemory per identity. Entries are kept
// in an LRU list capped at maxSessions and swept by idle TTL, so the
// cache cannot grow without bound. Eviction only drops the in-memory
// copy; durable state is untouched and the next Get reloads it.
//
// Get always returns the same instance for a live identity, which is
// what keeps per-identity appends serialized: the session's own mutex
// is the ordering guarantee, and it only works if everyone shares the
// instance that owns it.
type Registry struct {
	mu          sync.Mutex
	entries     map[string]*list.Element
	lru         *list.List // front = most recently used
	maxSessions int
	idleTTL     time.Duration

	repo    core.SessionRepository
	planner *Planner
	ranker  *Ranker
}

type RegistryOption func(*Registry)

func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) { r.maxSessions = n }
}

func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idleTTL = d }
}

func NewRegistry(repo core.SessionRepository, planner *Planner, ranker *Ranker, opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:     make(map[string]*list.Element),
		lru:         list.New(),
		maxSessions: defaultMaxSessions,
		idleTTL:     defaultIdleTTL,
		repo:        repo,
		planner:     planner,
		ranker:      ranker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the identity's session memory, creating it on first use.
// A changed language re-initializes the session (messages and facts
// survive, only the language updates).
func (r *Registry) Get(ctx context.Context, identity, language string) *SessionMemory {
	r.mu.Lock()

	if el, ok := r.entries[identity]; ok {
		entry := el.Value.(*registryEntry)
		entry.lastUsed = time.Now()
		r.lru.MoveToFront(el)
		sess := entry.session
		r.mu.Unlock()

		if language != "" && sess.Language() != language {
			sess.Initialize(ctx, language)
		}
		return sess
	}

	r.evictLocked(ctx)
	r.mu.Unlock()

	// Loading hits storage, keep it outside the registry lock
	sess := NewSessionMemory(ctx, identity, language, r.repo, r.planner, r.ranker)

	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.entries[identity]; ok {
		// Lost the creation race; use the winner
		entry := el.Value.(*registryEntry)
		entry.lastUsed = time.Now()
		r.lru.MoveToFront(el)
		return entry.session
	}
	el := r.lru.PushFront(&registryEntry{identity: identity, session: sess, lastUsed: time.Now()})
	r.entries[identity] = el
	return sess
}

// Lookup returns the session only if it is already live, without
// creating one.
func (r *Registry) Lookup(identity string) (*SessionMemory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.entries[identity]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*registryEntry)
	entry.lastUsed = time.Now()
	r.lru.MoveToFront(el)
	return entry.session, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

// evictLocked drops idle entries and, if the cache is still at
// capacity, the least recently used one.
func (r *Registry) evictLocked(ctx context.Context) {
	now := time.Now()
	for el := r.lru.Back(); el != nil; {
		entry := el.Value.(*registryEntry)
		if now.Sub(entry.lastUsed) < r.idleTTL {
			break
		}
		prev := el.Prev()
		r.removeLocked(ctx, el, entry, "idle")
		el = prev
	}

	for r.lru.Len() >= r.maxSessions {
		el := r.lru.Back()
		if el == nil {
			return
		}
		r.removeLocked(ctx, el, el.Value.(*registryEntry), "capacity")
	}
}

func (r *Registry) removeLocked(ctx context.Context, el *list.Element, entry *registryEntry, reason string) {
	r.lru.Remove(el)
	delete(r.entries, entry.identity)
	log.FromCtx(ctx).Debug().
		Str("identity", entry.identity).
		Str("reason", reason).
		Msg("evicted session from registry")
}
