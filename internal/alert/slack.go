package alert

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/chatsentry/chatsentry/internal/store"
)

// SlackConfig configures the Slack sink.
type SlackConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	Token   string `json:"token" envconfig:"TOKEN"`
	Channel string `json:"channel" envconfig:"CHANNEL"`
}

// SlackSink posts alerts to a Slack channel.
type SlackSink struct {
	api     *slack.Client
	channel string
}

// NewSlackSink creates a Slack sink from a bot token and channel ID.
func NewSlackSink(cfg SlackConfig) *SlackSink {
	return &SlackSink{
		api:     slack.New(cfg.Token),
		channel: cfg.Channel,
	}
}

func (s *SlackSink) Name() string { return "slack" }

func (s *SlackSink) Deliver(ctx context.Context, a *store.AlertRecord) error {
	text := fmt.Sprintf(":rotating_light: *%s* (severity %d)\n%s", a.AlertType, a.Severity, a.Message)
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}
