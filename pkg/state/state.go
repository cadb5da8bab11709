// Package state implements the State layer: the single
// authoritative per-(tenant, room, user) conversation state, cancel
// detection, and continuation dispatch into the active flow's next-step
// handler. Uses a handler-key -> function-table dispatch
// (pkg/config/agent.go registry + pkg/agent/factory.go), generalized from
// "route to an agent" to "route to a state continuation."
package state

import (
	"context"
	"time"

	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/store"
)

// cancelKeywords is the closed, locale-specific set of synonyms for
// "cancel/stop/never mind/quit".
var cancelKeywords = []string{
	"cancel", "stop", "never mind", "nevermind", "forget it", "quit", "abort", "nvm",
}

// IsCancel reports whether msg matches a cancel keyword. Matching is
// case-insensitive substring on the closed set — deliberately simple so
// cancellation never depends on the (slower, fallible) Understanding path.
func IsCancel(msg string) bool {
	lower := toLower(msg)
	for _, kw := range cancelKeywords {
		if contains(lower, kw) {
			return true
		}
	}
	return false
}

// Manager owns reads/writes of ConversationState and dispatches
// continuations for non-normal states.
type Manager struct {
	store         *store.Store
	continuations map[models.ConversationStateType]ContinuationFunc
}

// ContinuationFunc consumes an incoming message as the next step of an
// active flow. It may transition state further, or signal that the
// message should be handed off to a full Decision run (upgrade=true).
type ContinuationFunc func(ctx context.Context, st models.ConversationState, msg Input) (result ContinuationResult, err error)

// Input is the subset of the inbound message a continuation needs.
type Input struct {
	TenantID string
	RoomID   string
	UserID   string
	Text     string
}

// ContinuationResult is what a continuation produces.
type ContinuationResult struct {
	// Reply, when non-empty, is sent directly without a Decision run.
	Reply string
	// Upgrade signals the message should proceed through full
	// Understanding/Decision instead of being fully handled here.
	Upgrade bool
	// NewState, if non-nil, replaces the current state; clearing is done
	// by setting StateType to models.StateNormal.
	NewState *models.ConversationState
}

// New constructs a Manager with no continuations registered; call
// Register for each flow (see pkg/state's companion continuations.go in
// the executable binary's wiring, or RegisterDefaults below).
func New(st *store.Store) *Manager {
	return &Manager{store: st, continuations: map[models.ConversationStateType]ContinuationFunc{}}
}

// Register binds a continuation function to a state type.
func (m *Manager) Register(t models.ConversationStateType, fn ContinuationFunc) {
	m.continuations[t] = fn
}

// Current returns the active state for (room, user), or models.StateNormal
// if none is active or the prior one expired (store.GetConversationState
// already performs the atomic expire-and-delete).
func (m *Manager) Current(ctx context.Context, tenantID, roomID, userID string) (models.ConversationState, error) {
	return m.store.GetConversationState(ctx, tenantID, roomID, userID)
}

// TransitionTo upserts the (room, user) state, overwriting whatever was
// there. A zero timeout applies
// the default 30-minute expiry.
func (m *Manager) TransitionTo(ctx context.Context, tenantID, roomID, userID string, stateType models.ConversationStateType, step string, data map[string]any, referenceType, referenceID string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = models.DefaultStateTimeout
	}
	return m.store.UpsertConversationState(ctx, models.ConversationState{
		TenantID:      tenantID,
		RoomID:        roomID,
		UserID:        userID,
		StateType:     stateType,
		Step:          step,
		Data:          data,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		ExpiresAt:     time.Now().Add(timeout),
	})
}

// Clear resets (room, user) to normal. reason is recorded by the caller
// (Post layer) in the audit entry every clear produces.
func (m *Manager) Clear(ctx context.Context, tenantID, roomID, userID string, reason models.ConversationClearReason) error {
	return m.store.DeleteConversationState(ctx, tenantID, roomID, userID)
}

// HandleCancel implements cancel fast path: if the current
// state is non-normal and msg matches a cancel keyword, Brain clears state
// immediately and replies with a canonical acknowledgement, bypassing
// Understanding entirely.
func (m *Manager) HandleCancel(ctx context.Context, current models.ConversationState, msg Input) (handled bool, reply string, err error) {
	if current.IsNormal() || !IsCancel(msg.Text) {
		return false, "", nil
	}
	if err := m.Clear(ctx, msg.TenantID, msg.RoomID, msg.UserID, models.ClearReasonUserCancel); err != nil {
		return true, "", err
	}
	return true, "Okay, I've cancelled that.", nil
}

// Continue dispatches an incoming message to the continuation registered
// for current's StateType. Returns ok=false if current is normal or no
// continuation is registered for its type, in which case the caller
// should fall back to a full Decision run.
func (m *Manager) Continue(ctx context.Context, current models.ConversationState, msg Input) (result ContinuationResult, ok bool, err error) {
	if current.IsNormal() {
		return ContinuationResult{}, false, nil
	}
	fn, registered := m.continuations[current.StateType]
	if !registered {
		return ContinuationResult{}, false, nil
	}
	result, err = fn(ctx, current, msg)
	return result, true, err
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func contains(haystack, needle string) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
