package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// SlackSender posts to a channel with a bot token.
type SlackSender struct {
	api     *slack.Client
	channel string
}

// NewSlackSender creates a SlackSender. apiURL overrides the Web API root and
// must end with a slash; empty uses the public endpoint.
func NewSlackSender(apiURL, token, channel string) *SlackSender {
	opts := []slack.Option{slack.OptionHTTPClient(&http.Client{Timeout: defaultSendTimeout})}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &SlackSender{
		api:     slack.New(token, opts...),
		channel: channel,
	}
}

// Send posts a header block with the title and the body as a code block.
func (s *SlackSender) Send(ctx context.Context, title, message string) error {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false)),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "```\n"+message+"\n```", false, false),
			nil, nil,
		),
	}
	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(title, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}

// Name returns "slack".
func (s *SlackSender) Name() string {
	return "slack"
}
