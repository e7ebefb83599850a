package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/delivery"
	"github.com/coinsentry/coinsentry/internal/types"
)

// slackAPI is the slice of the Slack client the channel needs.
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts notifications to one channel.
type Slack struct {
	logger  *zap.Logger
	api     slackAPI
	channel string
}

func NewSlack(logger *zap.Logger, token, channel string) *Slack {
	s := &Slack{logger: logger.Named("slack"), channel: channel}
	if token != "" && channel != "" {
		s.api = slack.New(token)
	}
	return s
}

func (s *Slack) Name() string       { return "slack" }
func (s *Slack) IsConfigured() bool { return s.api != nil }

func (s *Slack) Send(ctx context.Context, n types.Notification) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(renderSlackMessage(n), false))
	if err != nil {
		if isSlackPermanent(err) {
			return delivery.Permanent(s.Name(), err)
		}
		return delivery.Retryable(s.Name(), err)
	}
	return nil
}

func isSlackPermanent(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"invalid_auth", "channel_not_found", "not_in_channel", "msg_too_long"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func renderSlackMessage(n types.Notification) string {
	icon := ":chart_with_upwards_trend:"
	if n.Analysis.RiskLevel == types.RiskHigh {
		icon = ":rotating_light:"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", icon, n.Summary())
	if url := n.Mention.Payload.URL; url != "" {
		fmt.Fprintf(&b, "\n<%s|details>", url)
	}
	return b.String()
}
