package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token string
}

// Service is the Brain's concrete outbound chat adapter (spec §6):
// send-message to an arbitrary room. Nil-safe: SendMessage on a nil
// Service returns an error rather than panicking, so a tenant without chat
// credentials configured degrades to a no-op delivery rather than crashing
// the pipeline.
type Service struct {
	client *Client
	logger *slog.Logger
}

// NewService creates a new Slack-backed chat service. Returns nil if Token
// is empty — callers treat a nil Service as "chat delivery disabled".
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" {
		return nil
	}
	return &Service{
		client: NewClient(cfg.Token),
		logger: slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client) *Service {
	return &Service{client: client, logger: slog.Default().With("component", "slack-service")}
}

// SendMessage posts text into roomID (a Slack channel id) and returns its
// message id. tenantID is accepted (and logged) for parity with the rest
// of the Brain's per-tenant contracts even though a single Slack workspace
// carries no further tenant scoping of its own.
func (s *Service) SendMessage(ctx context.Context, tenantID, roomID, text string) (string, error) {
	if s == nil {
		return "", errServiceDisabled
	}
	ts, err := s.client.PostMessage(ctx, roomID, text, "", 10*time.Second)
	if err != nil {
		s.logger.Error("failed to send chat message", "tenant_id", tenantID, "room_id", roomID, "error", err)
		return "", err
	}
	return ts, nil
}

var errServiceDisabled = sendError("slack: service not configured")

type sendError string

func (e sendError) Error() string { return string(e) }
