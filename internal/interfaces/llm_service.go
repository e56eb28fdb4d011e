package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// ChatOptions tunes a single completion request
type ChatOptions struct {
	Temperature float32
	// JSONResponse asks the provider for a JSON object when it supports it
	JSONResponse bool
}

// LLMService defines the extraction backend. Implementations wrap a hosted
// chat-completion API.
type LLMService interface {
	// Chat generates a completion for the conversation
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)

	// Name identifies the provider and model for logging
	Name() string

	// Close releases resources
	Close() error
}
