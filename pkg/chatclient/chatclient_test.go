package chatclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/config"
)

type fakeSender struct {
	calls []string
	err   error
}

func (f *fakeSender) SendMessage(_ context.Context, tenantID, roomID, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, tenantID+":"+roomID+":"+text)
	return "msg-1", nil
}

func TestSendMessage_NilSenderFailsFast(t *testing.T) {
	c := New(nil, config.DefaultRateLimitConfig())
	_, err := c.SendMessage(context.Background(), "tenant-a", "room-1", "hi")
	require.Error(t, err)
}

func TestSendMessage_DelegatesToSender(t *testing.T) {
	fs := &fakeSender{}
	c := New(fs, config.DefaultRateLimitConfig())

	id, err := c.SendMessage(context.Background(), "tenant-a", "room-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, []string{"tenant-a:room-1:hello"}, fs.calls)
}

func TestLimiterFor_IsolatedPerTenant(t *testing.T) {
	fs := &fakeSender{}
	c := New(fs, config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	la := c.limiterFor("tenant-a")
	lb := c.limiterFor("tenant-b")
	assert.NotSame(t, la, lb)
	assert.Same(t, la, c.limiterFor("tenant-a"))
}

func TestSendMessage_ZeroConfigFallsBackToDefault(t *testing.T) {
	fs := &fakeSender{}
	c := New(fs, config.RateLimitConfig{})
	assert.Equal(t, config.DefaultRateLimitConfig().RequestsPerSecond, c.cfg.RequestsPerSecond)
}
