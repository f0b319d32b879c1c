package chat

import (
	"context"

	"github.com/cockroachdb/errors"
	twitchirc "github.com/gempir/go-twitch-irc/v4"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/Arimodu/wipbot/internal/domain/request"
)

// TwitchConfig represents the twitch backend settings.
type TwitchConfig struct {
	Username   string `mapstructure:"username" validate:"required"`
	OAuthToken string `mapstructure:"oauth_token" validate:"required"`
	Channel    string `mapstructure:"channel" validate:"required"`
}

// Twitch is the Twitch IRC chat backend.
type Twitch struct {
	client  *twitchirc.Client
	channel string
	handler func(request.ChatMessage)
}

// NewTwitch creates the Twitch backend from the raw settings map.
func NewTwitch(settings map[string]any) (*Twitch, error) {
	var cfg TwitchConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &cfg,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, errors.Wrap(err, "failed to decode twitch settings")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "twitch settings validation failed")
	}

	client := twitchirc.NewClient(cfg.Username, cfg.OAuthToken)
	t := &Twitch{client: client, channel: cfg.Channel}

	client.OnPrivateMessage(func(m twitchirc.PrivateMessage) {
		if t.handler != nil {
			t.handler(toChatMessage(m))
		}
	})
	client.OnConnect(func() {
		zlog.Info().Msgf("twitch: connected, joining channel %s", cfg.Channel)
		client.Join(cfg.Channel)
	})

	return t, nil
}

// OnMessage registers the inbound message handler.
func (t *Twitch) OnMessage(handler func(request.ChatMessage)) {
	t.handler = handler
}

// SendMessage posts a message to the configured channel.
func (t *Twitch) SendMessage(text string) {
	t.client.Say(t.channel, text)
}

// Run connects the IRC client and blocks until the context is cancelled or
// the connection fails.
func (t *Twitch) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- t.client.Connect()
	}()

	select {
	case <-ctx.Done():
		if err := t.client.Disconnect(); err != nil {
			zlog.Warn().Msgf("twitch: disconnect: %v", err)
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func toChatMessage(m twitchirc.PrivateMessage) request.ChatMessage {
	return request.ChatMessage{
		UserName:      m.User.Name,
		Content:       m.Message,
		IsBroadcaster: m.User.Badges["broadcaster"] > 0,
		IsModerator:   m.User.Badges["moderator"] > 0,
		IsVip:         m.User.Badges["vip"] > 0,
		IsSubscriber:  m.User.Badges["subscriber"] > 0 || m.User.Badges["founder"] > 0,
	}
}
