package core

import "context"

// Completer is a text-in/text-out call to a generative model.
// Responses are arbitrary free text; callers must never assume clean JSON.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
