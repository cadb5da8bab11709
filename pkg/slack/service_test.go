package slack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_NilReceiver(t *testing.T) {
	var s *Service

	messageID, err := s.SendMessage(context.Background(), "tenant-1", "C123", "hello")
	assert.Empty(t, messageID)
	assert.ErrorIs(t, err, errServiceDisabled)
}

func TestNewService(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: ""})
		assert.Nil(t, svc)
	})

	t.Run("returns service when configured", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "xoxb-test"})
		assert.NotNil(t, svc)
	})
}
