package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/pkg/log"
)

// Store keeps every identity's session record in a single JSON file:
// a flat mapping from identity to its full record. Every mutation
// re-reads the whole mapping, updates one entry and rewrites the file.
//
// The rewrite is atomic within one process (guarded by a mutex), but
// two processes sharing the same file can lose each other's updates:
// last writer wins on the entire mapping. Run one process per file.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the identity's record. A missing file, an unreadable
// file or an unknown identity all yield a fresh empty record; absence
// is a valid default state, not an error.
func (s *Store) Load(ctx context.Context, identity string) (core.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.readAll(ctx)
	if rec, ok := all[identity]; ok {
		return rec, nil
	}
	return emptyRecord(), nil
}

// InitSession creates session metadata for the identity if none exists,
// stamped with the current time and language. If a session already
// exists only the language is overwritten; messages and facts are
// never touched.
func (s *Store) InitSession(ctx context.Context, identity, language string) error {
	return s.update(ctx, func(rec *core.SessionRecord) {
		if rec.Session.Timestamp.IsZero() {
			rec.Session.Timestamp = time.Now()
		}
		rec.Session.Language = language
	}, identity)
}

func (s *Store) AppendMessage(ctx context.Context, identity string, msg core.Message) error {
	return s.update(ctx, func(rec *core.SessionRecord) {
		rec.Session.Messages = append(rec.Session.Messages, msg)
	}, identity)
}

func (s *Store) AppendFact(ctx context.Context, identity string, fact core.Fact) error {
	return s.update(ctx, func(rec *core.SessionRecord) {
		rec.Facts = append(rec.Facts, fact)
	}, identity)
}

// update applies fn to the identity's record inside a full
// read-modify-write cycle over the mapping.
func (s *Store) update(ctx context.Context, fn func(*core.SessionRecord), identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.readAll(ctx)
	rec, ok := all[identity]
	if !ok {
		rec = emptyRecord()
	}
	fn(&rec)
	all[identity] = rec

	return s.writeAll(all)
}

func (s *Store) readAll(ctx context.Context) map[string]core.SessionRecord {
	all := make(map[string]core.SessionRecord)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.FromCtx(ctx).Warn().Err(err).Str("path", s.path).Msg("failed to read memory file, starting empty")
		}
		return all
	}

	if err := json.Unmarshal(data, &all); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("path", s.path).Msg("memory file is corrupt, starting empty")
		return make(map[string]core.SessionRecord)
	}
	return all
}

func (s *Store) writeAll(all map[string]core.SessionRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory: %w", err)
	}

	// Write-then-rename so readers never observe a partial file
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write memory file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace memory file: %w", err)
	}
	return nil
}

func emptyRecord() core.SessionRecord {
	return core.SessionRecord{
		Session: core.Session{Messages: []core.Message{}},
		Facts:   []core.Fact{},
	}
}
