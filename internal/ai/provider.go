package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a synchronous chat backend. Implementations must be safe
// for concurrent use.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
