// Package brain wires Ingress, Memory, State, Understanding, Decision,
// Guardrail, Execution, and Post into the single request-scoped pipeline
// spec §2/§4 describes. One Brain is constructed per process from the
// shared engines every other package builds; Handle drives exactly one
// inbound message from raw chat delivery to a reply, writing every
// required stream through Post before returning. Modeled on pkg/agent/
// orchestrator's top-level Run — one function that calls each stage in
// strict order and never lets a later stage start before the earlier one
// has committed its state — generalized from "run one agent session" to
// "run one seven-layer request".
package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/brain/pkg/announcement"
	"github.com/codeready-toolchain/brain/pkg/brainerr"
	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/decision"
	"github.com/codeready-toolchain/brain/pkg/execution"
	"github.com/codeready-toolchain/brain/pkg/guardrail"
	"github.com/codeready-toolchain/brain/pkg/ingress"
	"github.com/codeready-toolchain/brain/pkg/llm"
	"github.com/codeready-toolchain/brain/pkg/masking"
	"github.com/codeready-toolchain/brain/pkg/memory"
	"github.com/codeready-toolchain/brain/pkg/metrics"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/post"
	"github.com/codeready-toolchain/brain/pkg/state"
	"github.com/codeready-toolchain/brain/pkg/store"
	"github.com/codeready-toolchain/brain/pkg/understanding"
)

// RequestDeadline is the hard ceiling on one inbound message's whole
// pipeline run, per spec §4.9.
const RequestDeadline = 45 * time.Second

// ExecutionDeadline bounds the Execution layer's handler chain, a subset
// of RequestDeadline.
const ExecutionDeadline = 30 * time.Second

// defaultTimezone is used for date-parameter coercion when the tenant has
// not configured one; see DESIGN.md for why this is a fixed default
// rather than a per-tenant lookup in this iteration.
const defaultTimezone = "UTC"

// knowledgeTopK bounds how many vector-store chunks back one
// knowledge_query answer.
const knowledgeTopK = 5

// Deps bundles every engine the pipeline calls, constructed once at
// startup and shared across requests.
type Deps struct {
	Ingress       *ingress.Service
	Memory        *memory.Loader
	State         *state.Manager
	Understanding *understanding.Engine
	Decision      *decision.Engine
	Guardrail     *guardrail.Engine
	Execution     *execution.Engine
	Post          *post.Engine
	Announcement  *announcement.Engine
	Store         *store.Store
	Capabilities  *config.CapabilityRegistry
	Masking       *masking.Service

	// LLM and EmbeddingModel back the knowledge_query capability's
	// retrieval step: LLM embeds the sender's query and EmbeddingModel
	// names the model to embed with. LLM may be nil — retrieval then
	// degrades to KnowledgeQuery's keyword fallback over teachings.
	LLM            llm.Client
	EmbeddingModel string
}

// Brain drives the full pipeline for one process.
type Brain struct {
	deps Deps
}

// New constructs a Brain and registers its own confirmation continuation
// with deps.State, so a conversation parked awaiting yes/no on a plan
// resumes back into this package rather than needing a second place that
// knows how to run a capability handler.
func New(deps Deps) *Brain {
	b := &Brain{deps: deps}
	deps.State.Register(models.StateConfirmation, b.confirmationContinuation())
	return b
}

// Handle ingests one raw delivery and drives it through every layer,
// returning the text that was (or would have been) sent back to the room.
// An empty reply with a nil error means no reply is owed — duplicate
// deliveries and the "still working" gate timeout both resolve this way.
func (b *Brain) Handle(ctx context.Context, raw ingress.RawDelivery) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, RequestDeadline)
	defer cancel()

	input, err := b.deps.Ingress.Ingest(ctx, raw)
	if err != nil {
		return brainerr.UserMessageFor(err), nil
	}
	if input.Duplicate {
		slog.Info("brain: dropping duplicate delivery", "webhook_id", input.WebhookID, "message_id", input.MessageID)
		return "", nil
	}

	release, ok := b.deps.Ingress.Acquire(ctx, input.TenantID, input.RoomID, input.UserID)
	if !ok {
		return "I'm still working on your last message — one moment.", nil
	}
	defer release()

	mc, err := b.deps.Memory.Load(ctx, input.TenantID, input.RoomID, input.UserID, input.ChatAccountID, input.Text)
	if err != nil {
		mc = &memory.Context{TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID}
	}

	current, err := b.deps.State.Current(ctx, input.TenantID, input.RoomID, input.UserID)
	if err != nil {
		current = models.Normal(input.TenantID, input.RoomID, input.UserID)
	}

	msgInput := state.Input{TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, Text: input.Text}

	if handled, reply, err := b.deps.State.HandleCancel(ctx, current, msgInput); handled {
		if err != nil {
			slog.Error("brain: cancel handling failed", "error", err)
			reply = brainerr.UserMessageFor(err)
		}
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageStateCancel, Outcome: "cancelled",
			Reason: "user requested cancel", Success: err == nil,
		}, start)
		return reply, nil
	}

	if result, ok, err := b.deps.State.Continue(ctx, current, msgInput); ok && err == nil && !result.Upgrade {
		b.applyStateResult(ctx, input, result)
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: result.Reply, Stage: models.StageDecision, Outcome: "continuation",
			Reason: "handled by active conversation state", Success: true,
		}, start)
		return result.Reply, nil
	} else if ok && err != nil {
		slog.Error("brain: state continuation failed", "error", err)
		reply := brainerr.UserMessageFor(err)
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageDecision, Outcome: "error",
			Success: false, ErrorCode: string(brainerr.KindOf(err)),
		}, start)
		return reply, nil
	}

	return b.runFullPipeline(ctx, input, mc, current, start)
}

// runFullPipeline drives Understanding through Execution for a message
// that either started in StateNormal or was upgraded out of a
// continuation.
func (b *Brain) runFullPipeline(ctx context.Context, input *ingress.BrainInput, mc *memory.Context, current models.ConversationState, start time.Time) (string, error) {
	var stateData map[string]any
	if !current.IsNormal() {
		stateData = current.Data
	}

	u, err := b.deps.Understanding.Infer(ctx, input.Text, mc, stateData)
	if err != nil {
		reply := brainerr.UserMessageFor(err)
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageUnderstanding, Outcome: "error",
			Success: false, ErrorCode: string(brainerr.KindOf(err)), Warnings: mc.Warnings,
		}, start)
		return reply, nil
	}

	confidence := u.Confidence
	intentConf := u.IntentConfidence

	decRes := b.deps.Decision.Decide(ctx, u, mc, input.TenantID, input.RoomID, input.UserID, input.MessageID)

	switch decRes.Outcome {
	case decision.OutcomeRefused:
		reply := fmt.Sprintf("I can't help with that: %s.", decRes.RefusalReason)
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageDecision, Outcome: "refused",
			Reason: decRes.RefusalReason, InferredIntent: u.Intent, OverallConfidence: &confidence,
			IntentConfidence: &intentConf, Success: false, ErrorCode: string(config.ErrorKindPolicyBlocked),
			TokensIn: u.TokensIn, TokensOut: u.TokensOut, ModelID: u.ModelID, Warnings: mc.Warnings,
		}, start)
		return reply, nil

	case decision.OutcomeConfirmationNeeded:
		return b.beginConfirmation(ctx, input, mc, u, decRes.Plan, decRes.ConfirmationReason, true, start)

	case decision.OutcomePlan:
		return b.approveAndRun(ctx, input, mc, u, decRes.Plan, confidence, intentConf, start)

	default:
		reply := "Something went wrong figuring out what to do — please try again."
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageDecision, Outcome: "unknown",
			Success: false, ErrorCode: string(config.ErrorKindHandlerInternal), Warnings: mc.Warnings,
		}, start)
		return reply, nil
	}
}

// beginConfirmation persists plan (if not already persisted) and parks
// the conversation in StateConfirmation until the sender answers yes/no.
// guardrailPending records whether Evaluate still needs to run once the
// sender confirms (true when Decision itself asked for confirmation;
// false when Guardrail already ran and downgraded to confirmation).
func (b *Brain) beginConfirmation(ctx context.Context, input *ingress.BrainInput, mc *memory.Context, u understanding.Result, plan *models.ExecutionPlan, reason string, guardrailPending bool, start time.Time) (string, error) {
	persisted, err := b.deps.Store.CreateExecutionPlan(ctx, models.CreateExecutionPlanRequest{
		TenantID: plan.TenantID, RoomID: plan.RoomID, UserID: plan.UserID, MessageID: plan.MessageID,
		CapabilityID: plan.CapabilityID, Parameters: plan.Parameters, Confidence: plan.Confidence,
	})
	if err != nil {
		slog.Error("brain: failed to persist pending plan", "error", err)
		reply := brainerr.UserMessageFor(brainerr.New(config.ErrorKindHandlerInternal, err))
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageDecision, Outcome: "error",
			Success: false, ErrorCode: string(config.ErrorKindHandlerInternal),
		}, start)
		return reply, nil
	}

	err = b.deps.State.TransitionTo(ctx, input.TenantID, input.RoomID, input.UserID, models.StateConfirmation,
		"awaiting_confirmation",
		map[string]any{"execution_plan_id": persisted.ID, "guardrail_pending": guardrailPending},
		"execution_plan", persisted.ID, 0)
	if err != nil {
		slog.Error("brain: failed to transition to confirmation state", "error", err)
	}

	reply := fmt.Sprintf("%s. Shall I go ahead? (yes/no)", strings.TrimSuffix(reason, "."))

	confidence := u.Confidence
	intentConf := u.IntentConfidence
	b.finalize(ctx, post.Request{
		TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
		UserText: input.Text, Reply: reply, Stage: models.StageDecision, Outcome: "confirmation_needed",
		Reason: reason, InferredIntent: u.Intent, SelectedCapability: plan.CapabilityID,
		OverallConfidence: &confidence, IntentConfidence: &intentConf,
		ConfirmationNeeded: true, ConfirmationQuestion: reply, Success: true,
		TokensIn: u.TokensIn, TokensOut: u.TokensOut, ModelID: u.ModelID, Warnings: mc.Warnings,
	}, start)
	return reply, nil
}

// approveAndRun evaluates Guardrail against a Decision-approved plan and,
// if allowed, persists and executes it.
func (b *Brain) approveAndRun(ctx context.Context, input *ingress.BrainInput, mc *memory.Context, u understanding.Result, plan *models.ExecutionPlan, confidence, intentConf float64, start time.Time) (string, error) {
	cap, err := b.deps.Capabilities.Get(plan.CapabilityID)
	if err != nil {
		reply := "I picked an action that no longer exists — please try again."
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageDecision, Outcome: "error",
			Success: false, ErrorCode: string(config.ErrorKindHandlerInternal),
		}, start)
		return reply, nil
	}

	persisted, err := b.deps.Store.CreateExecutionPlan(ctx, models.CreateExecutionPlanRequest{
		TenantID: plan.TenantID, RoomID: plan.RoomID, UserID: plan.UserID, MessageID: plan.MessageID,
		CapabilityID: plan.CapabilityID, Parameters: plan.Parameters, Confidence: plan.Confidence,
	})
	if err != nil {
		reply := brainerr.UserMessageFor(brainerr.New(config.ErrorKindHandlerInternal, err))
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageDecision, Outcome: "error",
			Success: false, ErrorCode: string(config.ErrorKindHandlerInternal),
		}, start)
		return reply, nil
	}

	teachings := b.teachingsFor(ctx, input.TenantID, cap)
	gdec, err := b.deps.Guardrail.Evaluate(ctx, cap, persisted, teachings)
	if err != nil {
		slog.Error("brain: guardrail evaluation failed, failing closed", "error", err)
		_ = b.deps.Store.UpdateExecutionPlanStatus(ctx, input.TenantID, persisted.ID, models.PlanStatusBlocked)
		reply := brainerr.UserMessageFor(brainerr.New(config.ErrorKindPolicyBlocked, err))
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageGuardrail, Outcome: "blocked",
			SelectedCapability: cap.ID, Success: false, ErrorCode: string(config.ErrorKindPolicyBlocked),
		}, start)
		return reply, nil
	}

	metrics.RecordGuardrailVerdict(string(gdec.Verdict))

	switch gdec.Verdict {
	case guardrail.VerdictBlocked:
		_ = b.deps.Store.UpdateExecutionPlanStatus(ctx, input.TenantID, persisted.ID, models.PlanStatusBlocked)
		reply := brainerr.UserMessageFor(brainerr.New(config.ErrorKindPolicyBlocked, errors.New(gdec.Reason)))
		b.finalize(ctx, post.Request{
			TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
			UserText: input.Text, Reply: reply, Stage: models.StageGuardrail, Outcome: "blocked",
			Reason: gdec.Reason, PolicyReason: gdec.Reason, GuardrailAction: string(gdec.Verdict),
			SelectedCapability: cap.ID, Success: false, ErrorCode: string(config.ErrorKindPolicyBlocked),
			Warnings: mc.Warnings,
		}, start)
		return reply, nil

	case guardrail.VerdictDowngradeToConfirm:
		return b.beginConfirmation(ctx, input, mc, u, plan, gdec.Reason, false, start)
	}

	_ = b.deps.Store.UpdateExecutionPlanStatus(ctx, input.TenantID, persisted.ID, models.PlanStatusApproved)
	reply, detail, success, errorCode, audit := b.executeApprovedPlan(ctx, persisted, cap, mc)

	_ = b.deps.State.Clear(ctx, input.TenantID, input.RoomID, input.UserID, models.ClearReasonCompleted)

	b.finalize(ctx, post.Request{
		TenantID: input.TenantID, RoomID: input.RoomID, UserID: input.UserID, MessageID: input.MessageID,
		UserText: input.Text, Reply: reply, Stage: models.StageExecution,
		Outcome: outcomeLabel(success), InferredIntent: u.Intent, SelectedCapability: cap.ID,
		OverallConfidence: &confidence, IntentConfidence: &intentConf, GuardrailAction: string(gdec.Verdict),
		Success: success, ErrorCode: errorCode, TokensIn: u.TokensIn, TokensOut: u.TokensOut, ModelID: u.ModelID,
		Warnings: mc.Warnings, ScrubbedDetail: detail, Capability: cap, Audit: audit,
	}, start)
	return reply, nil
}

// confirmationContinuation resumes a plan parked in StateConfirmation.
func (b *Brain) confirmationContinuation() state.ContinuationFunc {
	return func(ctx context.Context, st models.ConversationState, msg state.Input) (state.ContinuationResult, error) {
		start := time.Now()
		planID, _ := st.Data["execution_plan_id"].(string)
		if planID == "" {
			return state.ContinuationResult{
				Reply:    "I lost track of that request — let's start over.",
				NewState: normalPtr(msg),
			}, nil
		}

		lower := strings.ToLower(strings.TrimSpace(msg.Text))
		if isNegativeReply(lower) {
			_ = b.deps.Store.UpdateExecutionPlanStatus(ctx, msg.TenantID, planID, models.PlanStatusBlocked)
			return state.ContinuationResult{Reply: "Okay, I won't do that.", NewState: normalPtr(msg)}, nil
		}
		if !isAffirmativeReply(lower) {
			return state.ContinuationResult{Reply: "Sorry — should I go ahead with that? (yes/no)"}, nil
		}

		plan, err := b.deps.Store.GetExecutionPlan(ctx, msg.TenantID, planID)
		if err != nil {
			return state.ContinuationResult{}, fmt.Errorf("confirmation: load plan: %w", err)
		}
		cap, err := b.deps.Capabilities.Get(plan.CapabilityID)
		if err != nil {
			return state.ContinuationResult{Reply: "That action isn't available anymore.", NewState: normalPtr(msg)}, nil
		}

		guardrailPending, _ := st.Data["guardrail_pending"].(bool)
		if guardrailPending {
			teachings := b.teachingsFor(ctx, msg.TenantID, cap)
			gdec, err := b.deps.Guardrail.Evaluate(ctx, cap, plan, teachings)
			if err == nil && gdec.Verdict == guardrail.VerdictBlocked {
				_ = b.deps.Store.UpdateExecutionPlanStatus(ctx, msg.TenantID, planID, models.PlanStatusBlocked)
				return state.ContinuationResult{
					Reply:    brainerr.UserMessageFor(brainerr.New(config.ErrorKindPolicyBlocked, errors.New(gdec.Reason))),
					NewState: normalPtr(msg),
				}, nil
			}
			// downgrade_to_confirm or allow both proceed here: the sender
			// has already answered the one confirmation prompt this flow owes.
		}

		_ = b.deps.Store.UpdateExecutionPlanStatus(ctx, msg.TenantID, planID, models.PlanStatusApproved)

		mc, err := b.deps.Memory.Load(ctx, msg.TenantID, msg.RoomID, msg.UserID, "", msg.Text)
		if err != nil {
			mc = &memory.Context{TenantID: msg.TenantID, RoomID: msg.RoomID, UserID: msg.UserID}
		}

		reply, detail, success, errorCode, audit := b.executeApprovedPlan(ctx, plan, cap, mc)

		b.finalize(ctx, post.Request{
			TenantID: msg.TenantID, RoomID: msg.RoomID, UserID: msg.UserID,
			UserText: msg.Text, Reply: reply, Stage: models.StageExecution, Outcome: outcomeLabel(success),
			SelectedCapability: cap.ID, Success: success, ErrorCode: errorCode,
			ScrubbedDetail: detail, Capability: cap, Audit: audit,
		}, start)

		return state.ContinuationResult{Reply: reply, NewState: normalPtr(msg)}, nil
	}
}

// executeApprovedPlan runs plan's handler chain, persists every hop's
// handler_result (masked), and returns the reply text along with whatever
// Post needs to finish the invocation's record.
func (b *Brain) executeApprovedPlan(ctx context.Context, plan *models.ExecutionPlan, cap *config.CapabilityConfig, mc *memory.Context) (reply string, detail map[string]any, success bool, errorCode string, audit *post.AuditEntry) {
	execCtx, cancel := context.WithTimeout(ctx, ExecutionDeadline)
	defer cancel()

	env := execution.Envelope{
		TenantID: plan.TenantID, RoomID: plan.RoomID, UserID: plan.UserID,
		MessageID: plan.MessageID, Timezone: defaultTimezone,
	}

	params := plan.Parameters
	switch cap.ID {
	case "help":
		params = map[string]any{"available": availableCapabilityNames(b.deps.Capabilities)}
	case "knowledge_query":
		params = b.retrieveKnowledge(execCtx, params, mc)
	}

	invocations := b.deps.Execution.Run(execCtx, plan.ID, cap, params, env, mc)

	success = true
	for _, inv := range invocations {
		metrics.RecordHandlerInvocation(inv.CapabilityID, string(inv.Result.Status), time.Duration(inv.Result.DurationMS)*time.Millisecond)
		summary := inv.Result.Summary
		invDetail := inv.Result.Detail
		if b.deps.Masking != nil {
			summary = b.deps.Masking.MaskHandlerResult(summary, inv.CapabilityID)
			invDetail = maskDetail(b.deps.Masking, invDetail, inv.CapabilityID)
		}
		if _, err := b.deps.Store.CreateHandlerResult(ctx, models.CreateHandlerResultRequest{
			TenantID: plan.TenantID, ExecutionPlanID: plan.ID, Status: inv.Result.Status,
			Summary: summary, Detail: invDetail, ErrorKind: inv.Result.ErrorKind, DurationMS: inv.Result.DurationMS,
		}); err != nil {
			slog.Error("brain: failed to persist handler result", "capability", inv.CapabilityID, "error", err)
		}

		if inv.Err != nil {
			success = false
			errorCode = string(brainerr.KindOf(inv.Err))
			reply = summary
			detail = invDetail
			continue
		}
		reply = summary
		detail = invDetail
	}

	status := models.PlanStatusDone
	if !success {
		status = models.PlanStatusFailed
	}
	_ = b.deps.Store.UpdateExecutionPlanStatus(ctx, plan.TenantID, plan.ID, status)

	if success && cap.ID == "announcement_request" && b.deps.Announcement != nil {
		if overriddenReply, ok := b.handleAnnouncementHandoff(ctx, plan, detail); ok {
			reply = overriddenReply
		}
	}

	if success {
		audit = auditFor(cap, plan, detail)
	}

	return reply, detail, success, errorCode, audit
}

// retrieveKnowledge embeds params["query"] and pulls the nearest vector-store
// chunks into params["retrieved_chunks"] before KnowledgeQuery runs, since
// embedding generation belongs at the LLM boundary, not inside a handler.
// Falls through to params unchanged (and KnowledgeQuery's own keyword
// fallback) when no LLM is configured, the embed call fails, or nothing is
// found.
func (b *Brain) retrieveKnowledge(ctx context.Context, params map[string]any, mc *memory.Context) map[string]any {
	query, _ := params["query"].(string)
	if b.deps.LLM == nil || mc == nil || query == "" {
		return params
	}

	emb, err := b.deps.LLM.Embed(ctx, llm.EmbeddingRequest{Model: b.deps.EmbeddingModel, Input: query})
	if err != nil {
		slog.Warn("brain: knowledge query embedding failed, falling back to keyword match", "error", err)
		return params
	}

	chunks, err := mc.Knowledge(ctx, emb.Embedding, knowledgeTopK)
	if err != nil {
		slog.Warn("brain: knowledge retrieval failed, falling back to keyword match", "error", err)
		return params
	}
	if len(chunks) == 0 {
		return params
	}

	var b2 strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b2.WriteString("\n")
		}
		fmt.Fprintf(&b2, "- (%s) %s", c.Source, c.Content)
	}

	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out["retrieved_chunks"] = b2.String()
	return out
}

// handleAnnouncementHandoff takes the announcement_request handler's
// parsed output, captures the announcement row, and parks the
// conversation in StateAnnouncement so its own continuation drives the
// rest of the confirmation flow. Returns ok=false if the handoff could
// not be completed, in which case the handler's own summary stands.
func (b *Brain) handleAnnouncementHandoff(ctx context.Context, plan *models.ExecutionPlan, detail map[string]any) (string, bool) {
	roomAlias, _ := detail["room_alias"].(string)
	body, _ := detail["message_body"].(string)
	if roomAlias == "" || body == "" {
		return "", false
	}
	createTasks, _ := detail["create_tasks"].(bool)

	req := announcement.Request{
		TenantID: plan.TenantID, RequesterAccountID: plan.UserID, SourceRoomID: plan.RoomID,
		RoomAlias: roomAlias, MessageBody: body, CreateTasks: createTasks,
		ScheduleType: models.ScheduleImmediate, Timezone: defaultTimezone,
	}

	ann, needsRoom, err := b.deps.Announcement.Capture(ctx, req)
	if err != nil {
		slog.Error("brain: announcement capture failed", "error", err)
		return "", false
	}

	var candidates []announcement.RoomCandidate
	if needsRoom {
		candidates, _ = b.deps.Announcement.RoomCandidates(ctx, plan.TenantID, roomAlias)
	}
	question, _ := announcement.ConfirmationPrompt(ann, roomAlias, candidates)

	if err := b.deps.State.TransitionTo(ctx, plan.TenantID, plan.RoomID, plan.UserID, models.StateAnnouncement,
		"awaiting_confirmation", map[string]any{"announcement_id": ann.ID}, "announcement", ann.ID, 0); err != nil {
		slog.Error("brain: failed to transition to announcement state", "error", err)
	}

	return question, true
}

// applyStateResult persists whatever state change a continuation
// produced.
func (b *Brain) applyStateResult(ctx context.Context, input *ingress.BrainInput, result state.ContinuationResult) {
	if result.NewState == nil {
		return
	}
	if err := b.deps.Store.UpsertConversationState(ctx, *result.NewState); err != nil {
		slog.Error("brain: failed to persist continuation state", "tenant_id", input.TenantID, "error", err)
	}
}

func (b *Brain) teachingsFor(ctx context.Context, tenantID string, cap *config.CapabilityConfig) []models.CEOTeaching {
	category := models.CEOTeachingCategory(cap.Category)
	if !category.IsValid() {
		category = models.CategoryGeneral
	}
	teachings, err := b.deps.Store.ActiveTeachingsByCategory(ctx, tenantID, category)
	if err != nil {
		slog.Warn("brain: failed to load teachings for guardrail", "category", category, "error", err)
		return nil
	}
	return teachings
}

func (b *Brain) finalize(ctx context.Context, req post.Request, start time.Time) {
	metrics.RecordRequest(req.Outcome, time.Since(start))
	if _, err := b.deps.Post.Finalize(ctx, req); err != nil {
		slog.Error("brain: post finalize failed", "tenant_id", req.TenantID, "room_id", req.RoomID, "error", err)
	}
}

func outcomeLabel(success bool) string {
	if success {
		return "handled"
	}
	return "handler_error"
}

func auditFor(cap *config.CapabilityConfig, plan *models.ExecutionPlan, detail map[string]any) *post.AuditEntry {
	switch cap.ID {
	case "help", "task_search", "knowledge_query", "insight_list", "announcement_request":
		return nil
	}
	resourceID := firstNonEmpty(detail, "task_id", "goal_id", "teaching_id")
	return &post.AuditEntry{
		Actor: plan.UserID, Action: cap.ID, ResourceType: cap.Category, ResourceID: resourceID,
		Classification: models.ClassificationInternal, Detail: detail,
	}
}

func firstNonEmpty(detail map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := detail[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func availableCapabilityNames(reg *config.CapabilityRegistry) []string {
	var names []string
	for _, cap := range reg.GetAll() {
		if cap.Enabled {
			names = append(names, cap.DisplayName)
		}
	}
	return names
}

func maskDetail(m *masking.Service, detail map[string]any, capabilityID string) map[string]any {
	if detail == nil {
		return nil
	}
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

func normalPtr(msg state.Input) *models.ConversationState {
	n := models.Normal(msg.TenantID, msg.RoomID, msg.UserID)
	return &n
}

func isAffirmativeReply(s string) bool {
	switch s {
	case "yes", "y", "yep", "yeah", "sure", "go ahead", "do it", "confirm", "confirmed":
		return true
	default:
		return false
	}
}

func isNegativeReply(s string) bool {
	switch s {
	case "no", "n", "nope", "cancel", "never mind", "nevermind", "stop":
		return true
	default:
		return false
	}
}
