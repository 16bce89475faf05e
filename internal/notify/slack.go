package notify

import (
	"context"
	"errors"
	"time"

	slackapi "github.com/slack-go/slack"
)

// slackMaxRetries is the max number of retries for rate-limited API calls.
const slackMaxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier delivers events to a Slack channel.
type SlackNotifier struct {
	client    slackClient
	channelID string
}

// NewSlack creates a Slack notifier posting to the given channel.
func NewSlack(botToken, channelID string) *SlackNotifier {
	return &SlackNotifier{
		client:    slackapi.New(botToken),
		channelID: channelID,
	}
}

// Send posts the event as an attachment. Rate-limited calls are retried after
// the server-indicated delay, up to slackMaxRetries times.
func (n *SlackNotifier) Send(ctx context.Context, ev Event) error {
	attachment := slackapi.Attachment{
		Title: ev.Title,
		Text:  ev.Body,
		Color: severityColor(ev.Severity),
	}

	var err error
	for attempt := 0; attempt <= slackMaxRetries; attempt++ {
		_, _, err = n.client.PostMessageContext(ctx, n.channelID,
			slackapi.MsgOptionAttachments(attachment))
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rle.RetryAfter):
		}
	}
	return err
}
