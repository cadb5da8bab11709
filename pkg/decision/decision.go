// Package decision implements the Decision layer: scores every enabled
// capability against Understanding's output, breaks ties by descriptor
// priority, and decides whether the winning plan can proceed, must be
// confirmed first, or must be refused outright. Shaped after
// pkg/agent/orchestrator's plan-selection step (pick one agent config from
// many, by score), generalized from "agent selection" to "capability
// selection with a confirmation gate."
package decision

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/memory"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/understanding"
)

// Scoring weights from spec §4.5: score = 0.4*keyword_hit_ratio +
// 0.3*intent_match + 0.2*category_continuity + 0.1*recency_affinity.
const (
	weightKeywordHitRatio  = 0.4
	weightIntentMatch      = 0.3
	weightCategoryContinue = 0.2
	weightRecencyAffinity  = 0.1

	// recencyWindow bounds how far back "recent" activity in the same
	// category still counts toward the recency affinity term.
	recencyWindow = 15 * time.Minute

	// monetaryConfirmThreshold gates any plan whose extracted "amount"
	// entity is at or above this value, regardless of capability risk.
	monetaryConfirmThreshold = 500.0
)

// destructiveVerbSet names capability ids Decision always treats as
// destructive for the >=3-recipient / irreversible-verb confirmation rule.
var destructiveVerbSet = map[string]bool{
	"task_delete": true, "announcement_cancel": true, "announcement_request": true,
}

// Outcome is the closed set of results a Decision run can produce.
type Outcome string

const (
	OutcomePlan               Outcome = "plan"
	OutcomeConfirmationNeeded Outcome = "confirmation_needed"
	OutcomeRefused            Outcome = "refused"
)

// Scored is one capability's Decision-layer score, kept for the decision
// log's alternates list.
type Scored struct {
	CapabilityID string
	Score        float64
}

// Result is what Decide returns: exactly one of a ready-to-run Plan, a
// ConfirmationPrompt, or a Refusal reason.
type Result struct {
	Outcome Outcome

	Plan *models.ExecutionPlan

	// ConfirmationReason explains why OutcomeConfirmationNeeded fired, for
	// both the chat reply and the decision log.
	ConfirmationReason string

	// RefusalReason explains an OutcomeRefused, e.g. "below required role
	// level" or "no capability scored above threshold".
	RefusalReason string

	Alternates []Scored
}

// minScoreThreshold is the floor below which Decision refuses rather than
// acting on a low-confidence guess.
const minScoreThreshold = 0.2

// Engine scores capabilities and decides the outcome for one message.
type Engine struct {
	capabilities *config.CapabilityRegistry
}

// New constructs a decision Engine over the given capability registry.
func New(capabilities *config.CapabilityRegistry) *Engine {
	return &Engine{capabilities: capabilities}
}

// Decide scores every enabled, role-eligible capability against u and mc,
// and returns the single outcome Execution (or the confirmation flow)
// should act on next.
func (e *Engine) Decide(ctx context.Context, u understanding.Result, mc *memory.Context, tenantID, roomID, userID, messageID string) Result {
	roleLevel := 1
	if mc != nil && mc.Sender != nil {
		roleLevel = mc.Sender.RoleLevel
	}

	var scored []Scored
	var eligible []*config.CapabilityConfig
	for id, cap := range e.capabilities.GetAll() {
		if !cap.Enabled {
			continue
		}
		if cap.RequiredRoleLevel > roleLevel {
			continue
		}
		s := e.scoreCapability(cap, u, mc)
		scored = append(scored, Scored{CapabilityID: id, Score: s})
		if s > 0 {
			eligible = append(eligible, cap)
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		ci, _ := e.capabilities.Get(scored[i].CapabilityID)
		cj, _ := e.capabilities.Get(scored[j].CapabilityID)
		return ci != nil && cj != nil && ci.Priority > cj.Priority
	})

	if len(scored) == 0 || scored[0].Score < minScoreThreshold {
		return Result{Outcome: OutcomeRefused, RefusalReason: "no capability scored above the confidence threshold", Alternates: scored}
	}

	winnerID := scored[0].CapabilityID
	winner, err := e.capabilities.Get(winnerID)
	if err != nil {
		return Result{Outcome: OutcomeRefused, RefusalReason: "internal: winning capability vanished from registry", Alternates: scored}
	}

	if winner.RequiredRoleLevel > roleLevel {
		return Result{Outcome: OutcomeRefused, RefusalReason: "this action requires a higher role level than you have", Alternates: scored}
	}

	plan := &models.ExecutionPlan{
		TenantID:     tenantID,
		RoomID:       roomID,
		UserID:       userID,
		MessageID:    messageID,
		CapabilityID: winnerID,
		Parameters:   entitiesToParameters(u.Entities),
		Confidence:   u.Confidence,
		Status:       models.PlanStatusPending,
	}

	if reason, needsConfirm := e.needsConfirmation(winner, u, plan); needsConfirm {
		return Result{Outcome: OutcomeConfirmationNeeded, Plan: plan, ConfirmationReason: reason, Alternates: scored}
	}

	return Result{Outcome: OutcomePlan, Plan: plan, Alternates: scored}
}

// needsConfirmation implements spec §4.5/§4.6's confirmation gate: risk
// high, confidence below floor, capability explicitly marked, >=3
// recipients, a monetary amount at or above threshold, or a destructive
// verb paired with ambiguity.
func (e *Engine) needsConfirmation(cap *config.CapabilityConfig, u understanding.Result, plan *models.ExecutionPlan) (string, bool) {
	if cap.RiskLevel == config.RiskHigh {
		return "this is a high-risk action", true
	}
	if cap.RequiresConfirmation {
		return "this capability always confirms before running", true
	}
	if u.Confidence < 0.7 {
		return "I'm not fully confident I understood that correctly", true
	}
	if recipients, ok := plan.Parameters["recipient_count"]; ok {
		if n, ok := recipients.(float64); ok && n >= 3 {
			return "this would reach 3 or more people", true
		}
	}
	if amountStr, ok := plan.Parameters["amount"]; ok {
		if amount, ok := parseAmount(amountStr); ok && amount >= monetaryConfirmThreshold {
			return "this involves an amount at or above the confirmation threshold", true
		}
	}
	if destructiveVerbSet[cap.ID] && u.NeedsConfirmationHint {
		return "this action can't easily be undone and I'm not fully sure of the target", true
	}
	return "", false
}

// scoreCapability implements the spec §4.5 weighted formula.
func (e *Engine) scoreCapability(cap *config.CapabilityConfig, u understanding.Result, mc *memory.Context) float64 {
	kwRatio := keywordHitRatio(cap, u)
	intentMatch := 0.0
	if strings.EqualFold(u.Intent, cap.ID) {
		intentMatch = 1.0
	}
	categoryContinuity := categoryContinuityScore(cap, mc)
	recency := recencyAffinityScore(cap, mc)

	return weightKeywordHitRatio*kwRatio +
		weightIntentMatch*intentMatch +
		weightCategoryContinue*categoryContinuity +
		weightRecencyAffinity*recency
}

func keywordHitRatio(cap *config.CapabilityConfig, u understanding.Result) float64 {
	kw := cap.EffectiveDecisionKeywords()
	total := len(kw.Primary) + len(kw.Secondary)
	if total == 0 {
		if s, ok := u.KeywordScores[cap.ID]; ok && s > 0 {
			return 1.0
		}
		return 0.0
	}
	if s, ok := u.KeywordScores[cap.ID]; ok {
		ratio := s / float64(total)
		if ratio > 1 {
			ratio = 1
		}
		return ratio
	}
	return 0.0
}

// categoryContinuityScore rewards capabilities in the same category as
// the most recent conversation turn's capability, approximated here from
// the active tasks/goals the sender most recently touched.
func categoryContinuityScore(cap *config.CapabilityConfig, mc *memory.Context) float64 {
	if mc == nil {
		return 0
	}
	if cap.Category == "tasks" && len(mc.ActiveTasks) > 0 {
		return 1.0
	}
	if cap.Category == "goals" && len(mc.ActiveGoals) > 0 {
		return 1.0
	}
	return 0
}

// recencyAffinityScore rewards a capability whose category matches
// something the sender interacted with inside the recency window.
func recencyAffinityScore(cap *config.CapabilityConfig, mc *memory.Context) float64 {
	if mc == nil || len(mc.RecentTurns) == 0 {
		return 0
	}
	last := mc.RecentTurns[len(mc.RecentTurns)-1]
	if time.Since(last.CreatedAt) > recencyWindow {
		return 0
	}
	lower := strings.ToLower(last.Body)
	for _, kw := range cap.EffectiveDecisionKeywords().Primary {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return 1.0
		}
	}
	return 0
}

func entitiesToParameters(entities map[string]string) map[string]any {
	out := make(map[string]any, len(entities))
	for k, v := range entities {
		out[k] = v
	}
	return out
}

func parseAmount(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		var f float64
		n, err := fmt.Sscanf(t, "%f", &f)
		if err != nil || n != 1 {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
