// Package ingress implements the Ingress layer (spec §4.1): it normalizes
// a chat adapter's raw delivery into a BrainInput, resolving tenant and
// sender identity and enforcing strictly-serial processing per
// (tenant, room, user). Grounded on pkg/identity's fail-closed resolution
// and pkg/state's cancel-keyword handling for the normalization idiom; the
// per-key serial mutex with a short "still working" timeout generalizes
// the per-session single-writer guarantee TARSy's stage pipeline relied on
// from "one session at a time" to "one (tenant, room, user) at a time."
package ingress

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/codeready-toolchain/brain/pkg/brainerr"
	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/identity"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/store"
)

// WaitTimeout is how long a second message for the same (tenant, room,
// user) waits for the first to finish before receiving the "one moment"
// reply, per spec §4.9's ordering guarantee.
const WaitTimeout = 3 * time.Second

// RawDelivery is what the chat adapter hands Ingress: a normalized record
// from its own wire format, but not yet validated or identity-resolved.
type RawDelivery struct {
	ChatOrgID     string // external chat organization/workspace id
	ChatAccountID string
	SenderName    string
	RoomID        string
	Text          string
	WebhookID     string
	ReceivedAt    time.Time
	ToAll         bool // true if the message carried a broadcast tag
	DirectMention bool // true if the message also @-mentioned the bot directly
}

// BrainInput is what a successfully ingested message hands to the rest of
// the pipeline.
type BrainInput struct {
	TenantID      string
	RoomID        string
	UserID        string // internal user id, resolved via identity
	ChatAccountID string
	SenderName    string
	RoleLevel     int
	DepartmentID  string
	Text          string
	MessageID     string
	WebhookID     string
	ReceivedAt    time.Time
	Duplicate     bool // true if this webhook id was already ingested
}

// TenantResolver maps a chat organization id to the Brain's internal
// tenant id. Implementations are free to cache; Ingress fails closed
// (brainerr.ErrInputInvalid) when the org is unknown.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, chatOrgID string) (tenantID string, err error)
}

var mentionRe = regexp.MustCompile(`<@[^>]+>`)

// Gate enforces per-(tenant, room, user) serial ordering. Zero value is
// ready to use.
type Gate struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGate constructs an empty Gate.
func NewGate() *Gate {
	return &Gate{locks: map[string]*sync.Mutex{}}
}

func (g *Gate) keyLock(key string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[key]
	if !ok {
		l = &sync.Mutex{}
		g.locks[key] = l
	}
	return l
}

// Acquire blocks until key's lock is free or waitTimeout elapses. Returns
// a release func and ok=false if the wait timed out (caller should send the
// "one moment" reply and drop the message rather than process it
// out of order).
func (g *Gate) Acquire(ctx context.Context, key string, waitTimeout time.Duration) (release func(), ok bool) {
	l := g.keyLock(key)
	done := make(chan struct{})
	go func() {
		l.Lock()
		close(done)
	}()
	select {
	case <-done:
		return l.Unlock, true
	case <-time.After(waitTimeout):
		return func() {}, false
	case <-ctx.Done():
		return func() {}, false
	}
}

// Service normalizes and identity-resolves inbound deliveries.
type Service struct {
	tenants  TenantResolver
	identity *identity.Store
	store    *store.Store
	gate     *Gate
}

// New constructs an ingress Service.
func New(tenants TenantResolver, identityStore *identity.Store, st *store.Store) *Service {
	return &Service{tenants: tenants, identity: identityStore, store: st, gate: NewGate()}
}

// Normalize strips mention markup and broadcast tags, rejecting a toall
// that did not also directly mention the bot (spec §4.1's "reject toall
// without direct mention"). Returns the cleaned body.
func Normalize(raw RawDelivery) (text string, err error) {
	if raw.ToAll && !raw.DirectMention {
		return "", brainerr.New(config.ErrorKindInputInvalid, fmt.Errorf("toall without direct mention"))
	}
	cleaned := mentionRe.ReplaceAllString(raw.Text, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", brainerr.New(config.ErrorKindInputInvalid, fmt.Errorf("empty message body after normalization"))
	}
	return cleaned, nil
}

// Ingest resolves tenant and sender, normalizes the body, and persists the
// message (or detects it as a duplicate delivery). It never returns a raw
// uncaught error: every failure is a *brainerr.TaxonomyError the caller can
// relay verbatim via brainerr.UserMessageFor, per spec §4.1's "failures
// never bubble as uncaught errors to the chat adapter."
func (s *Service) Ingest(ctx context.Context, raw RawDelivery) (*BrainInput, error) {
	tenantID, err := s.tenants.ResolveTenant(ctx, raw.ChatOrgID)
	if err != nil {
		return nil, brainerr.Wrap(config.ErrorKindInputInvalid, "resolve tenant", err)
	}

	if existing, err := s.store.GetMessageByWebhookID(ctx, tenantID, raw.WebhookID); err == nil {
		return &BrainInput{
			TenantID: tenantID, RoomID: existing.RoomID, UserID: existing.UserID,
			MessageID: existing.ID, WebhookID: existing.WebhookID, ReceivedAt: existing.ReceivedAt,
			Duplicate: true,
		}, nil
	} else if err != store.ErrNotFound {
		return nil, brainerr.Wrap(config.ErrorKindUpstreamUnavailable, "check duplicate delivery", err)
	}

	text, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	user, err := s.identity.ResolveUser(ctx, tenantID, raw.ChatAccountID)
	if err != nil {
		return nil, brainerr.Wrap(config.ErrorKindInputInvalid, "resolve sender identity", err)
	}

	msg, err := s.store.CreateMessage(ctx, models.CreateMessageRequest{
		TenantID:  tenantID,
		RoomID:    raw.RoomID,
		UserID:    user.ID,
		Channel:   string(config.ChatChannelSlack),
		Body:      text,
		WebhookID: raw.WebhookID,
		Metadata:  map[string]any{"sender_name": raw.SenderName},
	})
	if err != nil {
		return nil, brainerr.Wrap(config.ErrorKindUpstreamUnavailable, "persist message", err)
	}

	return &BrainInput{
		TenantID:      tenantID,
		RoomID:        raw.RoomID,
		UserID:        user.ID,
		ChatAccountID: raw.ChatAccountID,
		SenderName:    raw.SenderName,
		RoleLevel:     user.RoleLevel,
		DepartmentID:  user.DepartmentID,
		Text:          text,
		MessageID:     msg.ID,
		WebhookID:     raw.WebhookID,
		ReceivedAt:    raw.ReceivedAt,
	}, nil
}

// SerialKey builds the Gate key for one (tenant, room, user) triple.
func SerialKey(tenantID, roomID, userID string) string {
	return tenantID + "/" + roomID + "/" + userID
}

// Acquire serializes processing of messages from the same (tenant, room,
// user), returning ok=false (caller should send the "one moment" reply)
// if another message for the same key is still in flight after
// WaitTimeout.
func (s *Service) Acquire(ctx context.Context, tenantID, roomID, userID string) (release func(), ok bool) {
	return s.gate.Acquire(ctx, SerialKey(tenantID, roomID, userID), WaitTimeout)
}
