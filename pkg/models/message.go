package models

import "time"

// Message is an inbound chat message ingested from a webhook delivery.
type Message struct {
	ID         string
	TenantID   string
	RoomID     string
	UserID     string
	Channel    string
	Body       string
	ReceivedAt time.Time
	WebhookID  string
	Metadata   map[string]any
}

// CreateMessageRequest contains the fields needed to persist one ingested
// message. WebhookID is the delivery-layer idempotency key; a duplicate
// WebhookID within a tenant is rejected by the unique index rather than
// re-processed.
type CreateMessageRequest struct {
	TenantID  string
	RoomID    string
	UserID    string
	Channel   string
	Body      string
	WebhookID string
	Metadata  map[string]any
}
