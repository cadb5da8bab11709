// Package chatclient adds per-tenant rate limiting in front of the
// Brain's outbound chat adapter, per spec §6's requirement that a single
// noisy tenant cannot exhaust the shared Slack workspace's rate budget.
// Grounded on golang.org/x/time/rate, the same limiter the teacher uses
// to throttle outbound alert delivery (pkg/alert/ratelimit.go),
// generalized from one global bucket to one bucket per tenant.
package chatclient

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/codeready-toolchain/brain/pkg/config"
)

// Sender is the underlying chat adapter being rate limited. Satisfied by
// *pkg/slack.Service.
type Sender interface {
	SendMessage(ctx context.Context, tenantID, roomID, text string) (messageID string, err error)
}

// Client wraps a Sender with one token bucket per tenant, built lazily on
// first use from cfg.
type Client struct {
	sender Sender
	cfg    config.RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs a rate-limited chat Client. sender may be nil — SendMessage
// then fails fast without consuming a token, matching slack.Service's own
// nil-safety contract.
func New(sender Sender, cfg config.RateLimitConfig) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg = config.DefaultRateLimitConfig()
	}
	return &Client{sender: sender, cfg: cfg, limiters: map[string]*rate.Limiter{}}
}

// SendMessage waits for tenantID's bucket to admit one token, then
// delegates to the underlying sender. Returns ctx.Err() without sending
// if the wait is cancelled before a token is available.
func (c *Client) SendMessage(ctx context.Context, tenantID, roomID, text string) (string, error) {
	if c.sender == nil {
		return "", fmt.Errorf("chatclient: no sender configured")
	}
	limiter := c.limiterFor(tenantID)
	if err := limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("chatclient: rate limit wait: %w", err)
	}
	return c.sender.SendMessage(ctx, tenantID, roomID, text)
}

func (c *Client) limiterFor(tenantID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), c.cfg.Burst)
		c.limiters[tenantID] = l
	}
	return l
}
