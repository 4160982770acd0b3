package core

import "context"

// SessionRepository persists per-identity session records. All state is
// partitioned by identity; implementations never share data across keys.
//
// Load must treat an unknown identity as an empty record, not an error.
type SessionRepository interface {
	Load(ctx context.Context, identity string) (SessionRecord, error)
	InitSession(ctx context.Context, identity, language string) error
	AppendMessage(ctx context.Context, identity string, msg Message) error
	AppendFact(ctx context.Context, identity string, fact Fact) error
}
