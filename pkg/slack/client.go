// Package slack provides the outbound Slack API client used as the Brain's
// concrete chat transport (spec §6's "outbound chat" contract). Generalized
// from the teacher's single-fixed-channel alert notifier to a per-call
// room/channel target, since the Brain delivers into whichever room a
// capability resolved rather than one dedicated operations channel.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// Client is a thin wrapper around the slack-go SDK.
type Client struct {
	api    *goslack.Client
	logger *slog.Logger
}

// NewClient creates a new Slack API client authenticated with token.
func NewClient(token string) *Client {
	return &Client{
		api:    goslack.New(token),
		logger: slog.Default().With("component", "slack-client"),
	}
}

// NewClientWithAPIURL creates a Slack API client that targets a custom API URL.
// Useful for testing with a mock server.
func NewClientWithAPIURL(token, apiURL string) *Client {
	return &Client{
		api:    goslack.New(token, goslack.OptionAPIURL(apiURL)),
		logger: slog.Default().With("component", "slack-client"),
	}
}

// PostMessage sends text to channelID, returning the message timestamp
// (Slack's message id) for later reference. If threadTS is non-empty, the
// message is posted as a threaded reply.
func (c *Client) PostMessage(ctx context.Context, channelID, text, threadTS string, timeout time.Duration) (messageID string, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []goslack.MsgOption{
		goslack.MsgOptionBlocks(BuildPlainMessage(text)...),
		goslack.MsgOptionText(text, false),
	}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}

	_, ts, err := c.api.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		return "", fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return ts, nil
}
