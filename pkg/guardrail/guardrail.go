// Package guardrail implements the value-alignment check: before a plan
// reaches Execution, it is evaluated against the tenant's active CEO
// teachings (filtered to the capability's category) and a closed set of
// organizational no-go patterns, compiled once as a rego module and
// evaluated per request via OPA's rego package. No production file in the
// retrieved pack wires rego end to end, so this follows OPA's own
// documented PrepareForEval/Eval usage rather than a teacher file.
package guardrail

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/rego"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/models"
)

// Verdict is the closed set of outcomes a guardrail evaluation can reach.
type Verdict string

const (
	VerdictAllow              Verdict = "allow"
	VerdictDowngradeToConfirm Verdict = "downgrade_to_confirm"
	VerdictBlocked            Verdict = "blocked"
)

// Decision is the result of evaluating one plan.
type Decision struct {
	Verdict Verdict
	Reason  string
	// MatchedTeachingIDs names the teachings the rego query considered
	// relevant, for the decision log.
	MatchedTeachingIDs []string
}

// policyInput is the document rego evaluates against, built fresh per
// request so policy authors never see more than what the rule needs.
type policyInput struct {
	CapabilityID string            `json:"capability_id"`
	Category     string            `json:"category"`
	RiskLevel    string            `json:"risk_level"`
	Parameters   map[string]any    `json:"parameters"`
	Teachings    []teachingSummary `json:"teachings"`
	NoGoPatterns []string          `json:"no_go_patterns"`
}

type teachingSummary struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Statement string `json:"statement"`
	Priority  int    `json:"priority"`
}

// regoResult is the shape the compiled policy's query result is unmarshaled
// into.
type regoResult struct {
	Verdict            string   `json:"verdict"`
	Reason             string   `json:"reason"`
	MatchedTeachingIDs []string `json:"matched_teaching_ids"`
}

// defaultNoGoPatterns is the closed set of organizational no-go phrases
// evaluated against a plan's flattened string parameters, independent of
// any tenant-authored teaching.
var defaultNoGoPatterns = []string{
	"terminate employment",
	"disclose salary",
	"bypass approval",
	"ignore safety",
	"share confidential",
}

// Engine holds the compiled rego query, built once at startup. Safe for
// concurrent use: rego.PreparedEvalQuery.Eval does not mutate engine state.
type Engine struct {
	mu      sync.RWMutex
	query   rego.PreparedEvalQuery
	module  string
	pkgName string
	qName   string
}

// defaultModule is the built-in policy: block on an exact no-go phrase
// match, downgrade to confirmation when a category-matched teaching with
// priority >= 8 is present, allow otherwise.
const defaultModule = `
package brain.guardrail

default verdict := "allow"
default reason := ""
default matched_teaching_ids := []

no_go_hit {
	some p
	p := input.no_go_patterns[_]
	contains(lower(input.parameters_flat), p)
}

high_priority_teaching[t.id] {
	some t
	t := input.teachings[_]
	t.category == input.category
	t.priority >= 8
}

verdict := "blocked" {
	no_go_hit
} else := "downgrade_to_confirm" {
	count(high_priority_teaching) > 0
} else := "allow"

reason := "matches an organizational no-go pattern" {
	no_go_hit
} else := "a high-priority teaching in this category calls for confirmation" {
	count(high_priority_teaching) > 0
} else := ""

matched_teaching_ids := [id | id := high_priority_teaching[_]]
`

// New compiles the built-in guardrail module under the configured
// package/query names.
func New(cfg *config.GuardrailConfig) (*Engine, error) {
	pkgName := "brain.guardrail"
	qName := "verdict"
	if cfg != nil && cfg.PackageName != "" {
		pkgName = cfg.PackageName
	}
	if cfg != nil && cfg.QueryName != "" {
		qName = cfg.QueryName
	}
	e := &Engine{module: defaultModule, pkgName: pkgName, qName: qName}
	if err := e.compile(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) compile(ctx context.Context) error {
	r := rego.New(
		rego.Query("x := data.brain.guardrail"),
		rego.Module("guardrail.rego", e.module),
	)
	pq, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("guardrail: compile policy: %w", err)
	}
	e.mu.Lock()
	e.query = pq
	e.mu.Unlock()
	return nil
}

// Evaluate runs the compiled policy against one candidate plan, filtering
// teachings to those in the capability's category before evaluation so a
// noisy tenant teaching set never dominates an unrelated capability.
func (e *Engine) Evaluate(ctx context.Context, cap *config.CapabilityConfig, plan *models.ExecutionPlan, teachings []models.CEOTeaching) (Decision, error) {
	var relevant []teachingSummary
	for _, t := range teachings {
		if !t.IsActive {
			continue
		}
		if string(t.Category) != cap.Category && t.Category != models.CategoryGeneral {
			continue
		}
		relevant = append(relevant, teachingSummary{ID: t.ID, Category: string(t.Category), Statement: t.Statement, Priority: t.Priority})
	}

	input := map[string]any{
		"capability_id":    cap.ID,
		"category":         cap.Category,
		"risk_level":       string(cap.RiskLevel),
		"parameters_flat":  strings.ToLower(flattenParameters(plan.Parameters)),
		"teachings":        relevant,
		"no_go_patterns":   defaultNoGoPatterns,
	}

	e.mu.RLock()
	pq := e.query
	e.mu.RUnlock()

	rs, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("guardrail: evaluate: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Bindings) == 0 {
		return Decision{Verdict: VerdictAllow}, nil
	}

	raw, ok := rs[0].Bindings["x"].(map[string]any)
	if !ok {
		return Decision{Verdict: VerdictAllow}, nil
	}

	var res regoResult
	if v, ok := raw["verdict"].(string); ok {
		res.Verdict = v
	}
	if v, ok := raw["reason"].(string); ok {
		res.Reason = v
	}
	if ids, ok := raw["matched_teaching_ids"].([]any); ok {
		for _, id := range ids {
			if s, ok := id.(string); ok {
				res.MatchedTeachingIDs = append(res.MatchedTeachingIDs, s)
			}
		}
	}

	verdict := VerdictAllow
	switch res.Verdict {
	case string(VerdictBlocked):
		verdict = VerdictBlocked
	case string(VerdictDowngradeToConfirm):
		verdict = VerdictDowngradeToConfirm
	}

	return Decision{Verdict: verdict, Reason: res.Reason, MatchedTeachingIDs: res.MatchedTeachingIDs}, nil
}

func flattenParameters(params map[string]any) string {
	var b strings.Builder
	for k, v := range params {
		fmt.Fprintf(&b, "%s=%v ", k, v)
	}
	return b.String()
}
