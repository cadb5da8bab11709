// Package post implements the Post layer (spec §4.8): the single place
// that writes everything one Brain invocation produced. It appends the
// conversation turn, rolls the summary forward once enough turns have
// buffered, persists the append-only decision log and (optionally) an
// audit entry, sends the reply through the chat adapter, and proposes up
// to three follow-up suggestions from the winning capability's chain
// hints. Shaped after pkg/agent/orchestrator's single "finalize a
// session" step that writes the timeline and sends the outbound
// notification in one place, generalized from "one alert" to "one chat
// reply plus two audit streams."
package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/masking"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/store"
)

// summaryRegenThreshold is how many buffered turns trigger a rolling
// summary refresh, per spec §4.2's "update summary every ~10 turns".
const summaryRegenThreshold = 10

// maxChainSuggestions bounds how many follow-up suggestions a reply carries.
const maxChainSuggestions = 3

// ChatSender delivers the final reply into a room. Satisfied directly by
// pkg/chatclient.Client and pkg/slack.Service.
type ChatSender interface {
	SendMessage(ctx context.Context, tenantID, roomID, text string) (messageID string, err error)
}

// Request carries everything Finalize needs to record one invocation's
// outcome. Exactly one Request is built per inbound message, regardless of
// how many handlers a chain invoked — Detail/Summary from every hop is
// folded into ScrubbedDetail before Finalize is called.
type Request struct {
	TenantID  string
	RoomID    string
	UserID    string
	MessageID string

	UserText string
	Reply    string

	Stage   models.DecisionStage
	Outcome string
	Reason  string

	InferredIntent      string
	SelectedCapability  string
	OverallConfidence   *float64
	IntentConfidence    *float64
	ParameterConfidence *float64

	GuardrailAction string
	PolicyReason    string

	Success   bool
	ErrorCode string

	TokensIn        int
	TokensOut       int
	ModelID         string
	TimingBreakdown map[string]int64

	ConfirmationNeeded     bool
	ConfirmationQuestion   string
	ConfirmationResolution string

	Warnings       []string
	ScrubbedDetail map[string]any

	// Capability is the winning capability's descriptor, used to source
	// chain-hint suggestions. Nil when no capability was selected (a
	// refusal or a state continuation reply).
	Capability *config.CapabilityConfig

	// LearnedPreferences, when non-nil, is merged into the user's
	// preference bag — set only when a handler or Understanding detected
	// an explicit learning signal ("remember that I prefer...").
	LearnedPreferences map[string]any

	// Audit, when non-nil, records one administrative action alongside
	// the decision log.
	Audit *AuditEntry

	// SkipDecisionLog suppresses the decision-log write entirely. Set for
	// duplicate-webhook deliveries, which must never produce a second
	// decision log row for the same logical message.
	SkipDecisionLog bool
}

// AuditEntry is one administrative action to record, kept as a separate
// stream from decision_log per models.AuditLog's doc comment.
type AuditEntry struct {
	Actor          string
	Action         string
	ResourceType   string
	ResourceID     string
	Target         string
	Classification models.AuditClassification
	Detail         map[string]any
}

// Result is what Finalize produces after writing every stream.
type Result struct {
	DecisionLog *models.DecisionLog
	Audit       *models.AuditLog
	MessageID   string // the chat adapter's id for the sent reply, if sent
	Suggestions []string
}

// Engine is the Post layer. Constructed once at startup and shared across
// requests.
type Engine struct {
	store   *store.Store
	chat    ChatSender
	masking *masking.Service
}

// New constructs a Post Engine. chat may be nil — SendMessage is then
// skipped and Finalize only records the streams.
func New(st *store.Store, chat ChatSender, maskingSvc *masking.Service) *Engine {
	return &Engine{store: st, chat: chat, masking: maskingSvc}
}

// Finalize writes the conversation turn(s), rolls the summary forward,
// applies any learned preference, writes the decision log and audit
// entry, sends the reply, and computes follow-up suggestions — in that
// order, so a later failure (e.g. the chat send) never leaves an
// inconsistent audit trail behind it.
func (e *Engine) Finalize(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}

	maskedReply := e.maskReply(req)

	if err := e.recordTurns(ctx, req, maskedReply); err != nil {
		slog.Error("post: failed to append conversation turns",
			"tenant_id", req.TenantID, "room_id", req.RoomID, "user_id", req.UserID, "error", err)
	}

	if req.LearnedPreferences != nil {
		if err := e.store.UpdatePreferences(ctx, req.TenantID, req.UserID, req.LearnedPreferences); err != nil {
			slog.Error("post: failed to update preferences",
				"tenant_id", req.TenantID, "user_id", req.UserID, "error", err)
		}
	}

	if !req.SkipDecisionLog {
		log, err := e.writeDecisionLog(ctx, req)
		if err != nil {
			slog.Error("post: failed to write decision log",
				"tenant_id", req.TenantID, "room_id", req.RoomID, "error", err)
		}
		result.DecisionLog = log
	}

	if req.Audit != nil {
		audit, err := e.writeAudit(ctx, req)
		if err != nil {
			slog.Error("post: failed to write audit entry",
				"tenant_id", req.TenantID, "action", req.Audit.Action, "error", err)
		}
		result.Audit = audit
	}

	if maskedReply != "" && e.chat != nil {
		messageID, err := e.chat.SendMessage(ctx, req.TenantID, req.RoomID, maskedReply)
		if err != nil {
			slog.Error("post: failed to send reply",
				"tenant_id", req.TenantID, "room_id", req.RoomID, "error", err)
		}
		result.MessageID = messageID
	}

	result.Suggestions = suggestionsFor(req.Capability)

	return result, nil
}

// maskReply applies capability-specific masking to the reply body. A
// refusal or continuation reply with no selected capability still passes
// through the log pattern group via MaskLogContext-equivalent behavior:
// MaskHandlerResult against an empty capability id is a no-op pass-through
// (see masking.Service), which is the desired behavior here since those
// replies never echo handler output.
func (e *Engine) maskReply(req Request) string {
	if req.Reply == "" {
		return ""
	}
	if e.masking == nil {
		return req.Reply
	}
	return e.masking.MaskHandlerResult(req.Reply, req.SelectedCapability)
}

// recordTurns appends the user's message and the bot's reply, then rolls
// the summary forward once enough turns have buffered since the last one.
func (e *Engine) recordTurns(ctx context.Context, req Request, maskedReply string) error {
	if req.UserText != "" {
		if err := e.store.AppendTurn(ctx, req.TenantID, req.RoomID, req.UserID, "user", req.UserText); err != nil {
			return fmt.Errorf("append user turn: %w", err)
		}
	}
	if maskedReply != "" {
		if err := e.store.AppendTurn(ctx, req.TenantID, req.RoomID, req.UserID, "brain", maskedReply); err != nil {
			return fmt.Errorf("append reply turn: %w", err)
		}
	}

	turns, err := e.store.RecentTurns(ctx, req.TenantID, req.RoomID, req.UserID, summaryRegenThreshold+1)
	if err != nil {
		return fmt.Errorf("load recent turns for summary check: %w", err)
	}
	if len(turns) < summaryRegenThreshold {
		return nil
	}

	summary := rollSummary(turns)
	if err := e.store.UpdateConversationSummary(ctx, req.TenantID, req.RoomID, req.UserID, summary); err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}
	return nil
}

// rollSummary condenses turns into a single rolling summary line per
// speaker turn. This is a deterministic fallback; tenants that configure
// an LLM-backed summarizer get a richer summary from the same hook by
// wrapping Engine with their own Summarizer (see DESIGN.md).
func rollSummary(turns []store.ConversationTurn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s: %s", t.Speaker, truncateLine(t.Body, 160))
	}
	return b.String()
}

func truncateLine(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (e *Engine) writeDecisionLog(ctx context.Context, req Request) (*models.DecisionLog, error) {
	var messageID *string
	if req.MessageID != "" {
		messageID = &req.MessageID
	}

	detail := req.ScrubbedDetail
	if e.masking != nil && detail != nil {
		detail = maskDetailValues(e.masking, detail, req.SelectedCapability)
	}

	return e.store.CreateDecisionLog(ctx, models.CreateDecisionLogRequest{
		TenantID:  req.TenantID,
		RoomID:    req.RoomID,
		UserID:    req.UserID,
		MessageID: messageID,

		Stage:   req.Stage,
		Outcome: req.Outcome,
		Reason:  req.Reason,

		MessageExcerpt:      e.maskExcerpt(req.UserText),
		InferredIntent:      req.InferredIntent,
		SelectedCapability:  req.SelectedCapability,
		OverallConfidence:   req.OverallConfidence,
		IntentConfidence:    req.IntentConfidence,
		ParameterConfidence: req.ParameterConfidence,

		GuardrailAction: req.GuardrailAction,
		PolicyReason:    req.PolicyReason,

		Success:   req.Success,
		ErrorCode: req.ErrorCode,

		TokensIn:        req.TokensIn,
		TokensOut:       req.TokensOut,
		ModelID:         req.ModelID,
		TimingBreakdown: req.TimingBreakdown,

		ConfirmationNeeded:     req.ConfirmationNeeded,
		ConfirmationQuestion:   req.ConfirmationQuestion,
		ConfirmationResolution: req.ConfirmationResolution,

		Warnings:       req.Warnings,
		ScrubbedDetail: detail,
	})
}

func (e *Engine) maskExcerpt(text string) string {
	if text == "" {
		return ""
	}
	if e.masking == nil {
		return text
	}
	return e.masking.MaskLogContext(text)
}

func maskDetailValues(m *masking.Service, detail map[string]any, capabilityID string) map[string]any {
	out := make(map[string]any, len(detail))
	for k, v := range detail {
		if s, ok := v.(string); ok {
			out[k] = m.MaskHandlerResult(s, capabilityID)
			continue
		}
		out[k] = v
	}
	return out
}

func (e *Engine) writeAudit(ctx context.Context, req Request) (*models.AuditLog, error) {
	a := req.Audit
	detail := a.Detail
	if e.masking != nil && detail != nil {
		detail = maskDetailValues(e.masking, detail, req.SelectedCapability)
	}
	return e.store.CreateAuditLog(ctx, models.CreateAuditLogRequest{
		TenantID:       req.TenantID,
		Actor:          a.Actor,
		Action:         a.Action,
		ResourceType:   a.ResourceType,
		ResourceID:     a.ResourceID,
		Target:         a.Target,
		Classification: a.Classification,
		ScrubbedDetail: detail,
	})
}

// suggestionsFor returns up to maxChainSuggestions follow-up prompts drawn
// from cap's configured chain hints.
func suggestionsFor(cap *config.CapabilityConfig) []string {
	if cap == nil || len(cap.ChainHints) == 0 {
		return nil
	}
	if len(cap.ChainHints) <= maxChainSuggestions {
		return append([]string(nil), cap.ChainHints...)
	}
	return append([]string(nil), cap.ChainHints[:maxChainSuggestions]...)
}
