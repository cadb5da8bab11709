package guardrail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/models"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(nil)
	require.NoError(t, err)
	return e
}

func TestEvaluate_AllowsByDefault(t *testing.T) {
	e := newEngine(t)
	cap := &config.CapabilityConfig{ID: "task_create", Category: "tasks"}
	plan := &models.ExecutionPlan{Parameters: map[string]any{"title": "write the quarterly report"}}

	dec, err := e.Evaluate(context.Background(), cap, plan, nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, dec.Verdict)
}

func TestEvaluate_BlocksOnNoGoPattern(t *testing.T) {
	e := newEngine(t)
	cap := &config.CapabilityConfig{ID: "announcement_request", Category: "announcement"}
	plan := &models.ExecutionPlan{Parameters: map[string]any{"message_body": "We need to terminate employment of the whole team."}}

	dec, err := e.Evaluate(context.Background(), cap, plan, nil)
	require.NoError(t, err)
	assert.Equal(t, VerdictBlocked, dec.Verdict)
	assert.NotEmpty(t, dec.Reason)
}

func TestEvaluate_DowngradesOnHighPriorityCategoryTeaching(t *testing.T) {
	e := newEngine(t)
	cap := &config.CapabilityConfig{ID: "teaching_record", Category: "governance"}
	plan := &models.ExecutionPlan{Parameters: map[string]any{}}
	teachings := []models.CEOTeaching{
		{ID: "teach-1", Category: "governance", Priority: 9, IsActive: true, Statement: "Always get sign-off before any policy change."},
	}

	dec, err := e.Evaluate(context.Background(), cap, plan, teachings)
	require.NoError(t, err)
	assert.Equal(t, VerdictDowngradeToConfirm, dec.Verdict)
	assert.Contains(t, dec.MatchedTeachingIDs, "teach-1")
}

func TestEvaluate_IgnoresInactiveOrOffCategoryTeachings(t *testing.T) {
	e := newEngine(t)
	cap := &config.CapabilityConfig{ID: "task_create", Category: "tasks"}
	plan := &models.ExecutionPlan{Parameters: map[string]any{}}
	teachings := []models.CEOTeaching{
		{ID: "teach-1", Category: "governance", Priority: 10, IsActive: true},
		{ID: "teach-2", Category: "tasks", Priority: 10, IsActive: false},
	}

	dec, err := e.Evaluate(context.Background(), cap, plan, teachings)
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, dec.Verdict)
}

func TestEvaluate_GeneralCategoryTeachingMatchesGeneralCapability(t *testing.T) {
	e := newEngine(t)
	cap := &config.CapabilityConfig{ID: "help", Category: "general"}
	plan := &models.ExecutionPlan{Parameters: map[string]any{}}
	teachings := []models.CEOTeaching{
		{ID: "teach-1", Category: models.CategoryGeneral, Priority: 9, IsActive: true},
	}

	dec, err := e.Evaluate(context.Background(), cap, plan, teachings)
	require.NoError(t, err)
	assert.Equal(t, VerdictDowngradeToConfirm, dec.Verdict)
	assert.Contains(t, dec.MatchedTeachingIDs, "teach-1")
}
