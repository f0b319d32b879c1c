// Package chat provides the chat transport integrations.
package chat

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/Arimodu/wipbot/internal/domain/request"
)

// Integration is the chat backend capability set: receive messages and send
// replies. The backend is chosen once at startup.
type Integration interface {
	// Run connects the backend and blocks until the context is cancelled
	// or the connection fails.
	Run(ctx context.Context) error
	// SendMessage posts a message to the channel.
	SendMessage(text string)
	// OnMessage registers the inbound message handler. Must be called
	// before Run.
	OnMessage(handler func(request.ChatMessage))
}

// Config selects and configures a backend.
type Config struct {
	Backend  string
	Settings map[string]any
}

// New creates the configured chat backend. Unknown backends are an error.
func New(cfg Config) (Integration, error) {
	switch cfg.Backend {
	case "twitch":
		return NewTwitch(cfg.Settings)
	case "console", "":
		return NewConsole(), nil
	default:
		return nil, errors.Newf("unsupported chat backend: %s", cfg.Backend)
	}
}
