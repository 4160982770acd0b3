package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sandevgo/linguabot/internal/core"
	"github.com/sandevgo/linguabot/pkg/log"
)

// SessionsRepo is the sqlite-backed session store. Unlike the file
// store it appends rows instead of rewriting a whole mapping, so
// concurrent writers do not clobber each other's records.
type SessionsRepo struct {
	db *sql.DB
}

func NewSessionsRepo(db *sql.DB) *SessionsRepo {
	return &SessionsRepo{db: db}
}

func (r *SessionsRepo) Load(ctx context.Context, identity string) (core.SessionRecord, error) {
	rec := core.SessionRecord{
		Session: core.Session{Messages: []core.Message{}},
		Facts:   []core.Fact{},
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT language, created_at FROM sessions WHERE identity = ?`, identity)
	var language string
	var createdAt time.Time
	switch err := row.Scan(&language, &createdAt); err {
	case nil:
		rec.Session.Language = language
		rec.Session.Timestamp = createdAt
	case sql.ErrNoRows:
		// Absence is a valid default state
		return rec, nil
	default:
		return rec, fmt.Errorf("failed to load session: %w", err)
	}

	msgs, err := r.loadMessages(ctx, identity)
	if err != nil {
		return rec, err
	}
	rec.Session.Messages = msgs

	facts, err := r.loadFacts(ctx, identity)
	if err != nil {
		return rec, err
	}
	rec.Facts = facts

	log.FromCtx(ctx).Debug().
		Int("messages", len(msgs)).
		Int("facts", len(facts)).
		Msg("loaded session record")
	return rec, nil
}

func (r *SessionsRepo) InitSession(ctx context.Context, identity, language string) error {
	query := `INSERT INTO sessions (identity, language, created_at) VALUES (?, ?, ?)
	          ON CONFLICT(identity) DO UPDATE SET language = excluded.language`
	if _, err := r.db.ExecContext(ctx, query, identity, language, time.Now()); err != nil {
		return fmt.Errorf("failed to init session: %w", err)
	}
	return nil
}

func (r *SessionsRepo) AppendMessage(ctx context.Context, identity string, msg core.Message) error {
	query := `INSERT INTO messages (identity, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, identity, msg.Role, msg.Content, msg.Timestamp); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *SessionsRepo) AppendFact(ctx context.Context, identity string, fact core.Fact) error {
	query := `INSERT INTO facts (identity, content, created_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, identity, fact.Content, fact.Timestamp); err != nil {
		return fmt.Errorf("failed to insert fact: %w", err)
	}
	return nil
}

func (r *SessionsRepo) loadMessages(ctx context.Context, identity string) ([]core.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE identity = ? ORDER BY id`, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []core.Message{}
	for rows.Next() {
		var msg core.Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *SessionsRepo) loadFacts(ctx context.Context, identity string) ([]core.Fact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT content, created_at FROM facts WHERE identity = ? ORDER BY id`, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	facts := []core.Fact{}
	for rows.Next() {
		var fact core.Fact
		if err := rows.Scan(&fact.Content, &fact.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}
