package relay

import "context"

//go:generate mockgen -destination=mocks/mock_relay.go -package=mocks github.com/mattjoyce/mention-relay/internal/relay Generator,Responder

// Generator produces a reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Responder posts a reply into a conversation thread.
type Responder interface {
	Respond(ctx context.Context, msg Message) error
}

// Message is a reply addressed to a thread.
type Message struct {
	Channel  string
	ThreadTS string
	Text     string
}
