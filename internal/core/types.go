package core

import "time"

const (
	AppName      = "LinguaBot"
	AppUserAgent = "LinguaBot/0.1"
	AppVersion   = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. Messages are append-only:
// once stored they are never edited or deleted, and slice position is
// the source of truth for recency.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Fact is a free-text assertion about the user, extracted from
// conversation and kept for long-term memory.
type Fact struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversational state of one identity.
type Session struct {
	Timestamp time.Time `json:"timestamp"`
	Language  string    `json:"language"`
	Messages  []Message `json:"messages"`
}

// SessionRecord is the full durable payload for one identity:
// the session plus its extracted facts.
type SessionRecord struct {
	Session Session `json:"session"`
	Facts   []Fact  `json:"facts"`
}
