package chat

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	twitchirc "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arimodu/wipbot/internal/domain/request"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		expectErr bool
	}{
		{
			name: "Console backend",
			cfg:  Config{Backend: "console"},
		},
		{
			name: "Empty backend defaults to console",
			cfg:  Config{},
		},
		{
			name: "Twitch backend with full settings",
			cfg: Config{
				Backend: "twitch",
				Settings: map[string]any{
					"username":    "wipbot",
					"oauth_token": "oauth:abc",
					"channel":     "somechannel",
				},
			},
		},
		{
			name: "Twitch backend with missing settings",
			cfg: Config{
				Backend:  "twitch",
				Settings: map[string]any{"username": "wipbot"},
			},
			expectErr: true,
		},
		{
			name:      "Unknown backend",
			cfg:       Config{Backend: "irc"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			integ, err := New(tt.cfg)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, integ)
		})
	}
}

func TestToChatMessage(t *testing.T) {
	tests := []struct {
		name     string
		badges   map[string]int
		expected request.ChatMessage
	}{
		{
			name:     "Plain viewer",
			badges:   map[string]int{},
			expected: request.ChatMessage{UserName: "alice", Content: "!wip 0ab12"},
		},
		{
			name:   "Broadcaster",
			badges: map[string]int{"broadcaster": 1},
			expected: request.ChatMessage{
				UserName: "alice", Content: "!wip 0ab12", IsBroadcaster: true,
			},
		},
		{
			name:   "Moderator",
			badges: map[string]int{"moderator": 1},
			expected: request.ChatMessage{
				UserName: "alice", Content: "!wip 0ab12", IsModerator: true,
			},
		},
		{
			name:   "Founder counts as subscriber",
			badges: map[string]int{"founder": 1},
			expected: request.ChatMessage{
				UserName: "alice", Content: "!wip 0ab12", IsSubscriber: true,
			},
		},
		{
			name:   "VIP subscriber",
			badges: map[string]int{"vip": 1, "subscriber": 12},
			expected: request.ChatMessage{
				UserName: "alice", Content: "!wip 0ab12", IsVip: true, IsSubscriber: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := twitchirc.PrivateMessage{
				User:    twitchirc.User{Name: "alice", Badges: tt.badges},
				Message: "!wip 0ab12",
			}
			assert.Equal(t, tt.expected, toChatMessage(m))
		})
	}
}

func TestConsole_Run(t *testing.T) {
	var out bytes.Buffer
	c := &Console{
		in:  strings.NewReader("!wip 0ab12\nhello\n"),
		out: &out,
	}

	var received []request.ChatMessage
	c.OnMessage(func(msg request.ChatMessage) {
		received = append(received, msg)
	})

	require.NoError(t, c.Run(context.Background()))

	require.Len(t, received, 2)
	assert.Equal(t, "console", received[0].UserName)
	assert.True(t, received[0].IsBroadcaster)
	assert.Equal(t, "!wip 0ab12", received[0].Content)
	assert.Equal(t, "hello", received[1].Content)

	c.SendMessage("! WIP requested")
	assert.Equal(t, "! WIP requested\n", out.String())
}

func TestConsole_RunCancelled(t *testing.T) {
	c := &Console{in: blockingReader{}, out: &bytes.Buffer{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// blockingReader never returns, standing in for an idle stdin.
type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	time.Sleep(time.Hour)
	return 0, nil
}
