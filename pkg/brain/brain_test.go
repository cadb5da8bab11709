package brain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/masking"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/state"
)

func TestIsAffirmativeReply(t *testing.T) {
	for _, s := range []string{"yes", "y", "yep", "yeah", "sure", "go ahead", "do it", "confirm", "confirmed"} {
		assert.True(t, isAffirmativeReply(s), s)
	}
	for _, s := range []string{"no", "maybe", "not sure", ""} {
		assert.False(t, isAffirmativeReply(s), s)
	}
}

func TestIsNegativeReply(t *testing.T) {
	for _, s := range []string{"no", "n", "nope", "cancel", "never mind", "nevermind", "stop"} {
		assert.True(t, isNegativeReply(s), s)
	}
	for _, s := range []string{"yes", "maybe", ""} {
		assert.False(t, isNegativeReply(s), s)
	}
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "handled", outcomeLabel(true))
	assert.Equal(t, "handler_error", outcomeLabel(false))
}

func TestFirstNonEmpty(t *testing.T) {
	detail := map[string]any{"goal_id": "g-1", "task_id": ""}
	assert.Equal(t, "g-1", firstNonEmpty(detail, "task_id", "goal_id"))
	assert.Equal(t, "", firstNonEmpty(detail, "missing_key"))
}

func TestAuditFor(t *testing.T) {
	plan := &models.ExecutionPlan{UserID: "user-1"}

	t.Run("read-only capabilities produce no audit entry", func(t *testing.T) {
		for _, id := range []string{"help", "task_search", "knowledge_query", "insight_list", "announcement_request"} {
			cap := &config.CapabilityConfig{ID: id, Category: "productivity"}
			assert.Nil(t, auditFor(cap, plan, nil), id)
		}
	})

	t.Run("mutating capability produces an audit entry", func(t *testing.T) {
		cap := &config.CapabilityConfig{ID: "task_create", Category: "productivity"}
		detail := map[string]any{"task_id": "task-42"}
		audit := auditFor(cap, plan, detail)
		require.NotNil(t, audit)
		assert.Equal(t, "user-1", audit.Actor)
		assert.Equal(t, "task_create", audit.Action)
		assert.Equal(t, "task-42", audit.ResourceID)
		assert.Equal(t, models.ClassificationInternal, audit.Classification)
	})
}

func TestAvailableCapabilityNames(t *testing.T) {
	reg := config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"task_create": {ID: "task_create", DisplayName: "Create a task", Enabled: true},
		"disabled_one": {ID: "disabled_one", DisplayName: "Disabled", Enabled: false},
	})
	names := availableCapabilityNames(reg)
	assert.Equal(t, []string{"Create a task"}, names)
}

func TestMaskDetail(t *testing.T) {
	registry := config.NewCapabilityRegistry(nil)
	svc := masking.NewService(registry, masking.LogMaskingConfig{Enabled: true, PatternGroup: "pii"})

	assert.Nil(t, maskDetail(svc, nil, "task_create"))

	detail := map[string]any{"summary": "ok", "count": 3}
	out := maskDetail(svc, detail, "task_create")
	assert.Equal(t, "ok", out["summary"])
	assert.Equal(t, 3, out["count"])
}

func TestNormalPtr(t *testing.T) {
	msg := state.Input{TenantID: "t1", RoomID: "r1", UserID: "u1", Text: "cancel"}

	n := normalPtr(msg)
	require.NotNil(t, n)
	assert.True(t, n.IsNormal())
	assert.Equal(t, "t1", n.TenantID)
	assert.Equal(t, "r1", n.RoomID)
	assert.Equal(t, "u1", n.UserID)
}
