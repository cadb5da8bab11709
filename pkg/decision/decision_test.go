package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/understanding"
)

func newRegistry(caps map[string]*config.CapabilityConfig) *config.CapabilityRegistry {
	return config.NewCapabilityRegistry(caps)
}

func TestDecide_RefusesBelowScoreThreshold(t *testing.T) {
	caps := newRegistry(map[string]*config.CapabilityConfig{
		"help": {ID: "help", Enabled: true, RequiredRoleLevel: 1, Priority: 1},
	})
	e := New(caps)

	res := e.Decide(context.Background(), understanding.Result{Intent: "help", Confidence: 0.9}, nil, "t1", "r1", "u1", "m1")
	assert.Equal(t, OutcomeRefused, res.Outcome)
}

func TestDecide_PicksHighestScoringEligibleCapability(t *testing.T) {
	caps := newRegistry(map[string]*config.CapabilityConfig{
		"task_create": {
			ID: "task_create", Enabled: true, RequiredRoleLevel: 1, Priority: 5,
			DecisionKeywords: config.KeywordSet{Primary: []string{"create a task"}},
		},
		"task_search": {
			ID: "task_search", Enabled: true, RequiredRoleLevel: 1, Priority: 5,
			DecisionKeywords: config.KeywordSet{Primary: []string{"my tasks"}},
		},
	})
	e := New(caps)

	u := understanding.Result{
		Intent:        "task_create",
		Confidence:    0.9,
		KeywordScores: map[string]float64{"task_create": 1.0},
	}
	res := e.Decide(context.Background(), u, nil, "t1", "r1", "u1", "m1")
	require.Equal(t, OutcomePlan, res.Outcome)
	assert.Equal(t, "task_create", res.Plan.CapabilityID)
}

func TestDecide_RefusesBelowRequiredRoleLevel(t *testing.T) {
	caps := newRegistry(map[string]*config.CapabilityConfig{
		"teaching_record": {
			ID: "teaching_record", Enabled: true, RequiredRoleLevel: 5, Priority: 6,
			DecisionKeywords: config.KeywordSet{Primary: []string{"remember that"}},
		},
	})
	e := New(caps)

	u := understanding.Result{
		Intent:        "teaching_record",
		Confidence:    0.95,
		KeywordScores: map[string]float64{"teaching_record": 1.0},
	}
	res := e.Decide(context.Background(), u, nil, "t1", "r1", "u1", "m1")
	assert.Equal(t, OutcomeRefused, res.Outcome)
	assert.Contains(t, res.RefusalReason, "role level")
}

func TestDecide_ConfirmationNeeded_HighRisk(t *testing.T) {
	caps := newRegistry(map[string]*config.CapabilityConfig{
		"announcement_request": {
			ID: "announcement_request", Enabled: true, RequiredRoleLevel: 1, Priority: 8,
			RiskLevel:        config.RiskHigh,
			DecisionKeywords: config.KeywordSet{Primary: []string{"announce"}},
		},
	})
	e := New(caps)

	u := understanding.Result{
		Intent:        "announcement_request",
		Confidence:    0.95,
		KeywordScores: map[string]float64{"announcement_request": 1.0},
	}
	res := e.Decide(context.Background(), u, nil, "t1", "r1", "u1", "m1")
	require.Equal(t, OutcomeConfirmationNeeded, res.Outcome)
	assert.Equal(t, "this is a high-risk action", res.ConfirmationReason)
}

func TestDecide_ConfirmationNeeded_LowConfidence(t *testing.T) {
	caps := newRegistry(map[string]*config.CapabilityConfig{
		"goal_set": {
			ID: "goal_set", Enabled: true, RequiredRoleLevel: 1, Priority: 4,
			DecisionKeywords: config.KeywordSet{Primary: []string{"set a goal"}},
		},
	})
	e := New(caps)

	u := understanding.Result{
		Intent:        "goal_set",
		Confidence:    0.5,
		KeywordScores: map[string]float64{"goal_set": 1.0},
	}
	res := e.Decide(context.Background(), u, nil, "t1", "r1", "u1", "m1")
	require.Equal(t, OutcomeConfirmationNeeded, res.Outcome)
}

func TestDecide_MonetaryAmountAboveThresholdNeedsConfirmation(t *testing.T) {
	caps := newRegistry(map[string]*config.CapabilityConfig{
		"task_create": {
			ID: "task_create", Enabled: true, RequiredRoleLevel: 1, Priority: 5,
			DecisionKeywords: config.KeywordSet{Primary: []string{"create a task"}},
		},
	})
	e := New(caps)

	u := understanding.Result{
		Intent:        "task_create",
		Confidence:    0.95,
		KeywordScores: map[string]float64{"task_create": 1.0},
		Entities:      map[string]string{"amount": "750"},
	}
	res := e.Decide(context.Background(), u, nil, "t1", "r1", "u1", "m1")
	require.Equal(t, OutcomeConfirmationNeeded, res.Outcome)
}

func TestDecide_DisabledCapabilitiesNeverWin(t *testing.T) {
	caps := newRegistry(map[string]*config.CapabilityConfig{
		"task_create": {
			ID: "task_create", Enabled: false, RequiredRoleLevel: 1, Priority: 9,
			DecisionKeywords: config.KeywordSet{Primary: []string{"create a task"}},
		},
	})
	e := New(caps)

	u := understanding.Result{
		Intent:        "task_create",
		Confidence:    0.95,
		KeywordScores: map[string]float64{"task_create": 1.0},
	}
	res := e.Decide(context.Background(), u, nil, "t1", "r1", "u1", "m1")
	assert.Equal(t, OutcomeRefused, res.Outcome)
}
