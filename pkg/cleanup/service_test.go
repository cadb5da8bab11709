package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/store"
	testdatabase "github.com/codeready-toolchain/brain/test/database"
	"github.com/stretchr/testify/require"
)

func testRetentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		DecisionLogRetentionDays: 1,
		ConversationStateTTL:     time.Hour,
		CleanupInterval:          10 * time.Millisecond,
	}
}

func insertDecisionLog(t *testing.T, st *store.Store, tenantID string, createdAt time.Time) {
	t.Helper()
	db := st.DB()
	_, err := db.DB().ExecContext(context.Background(), `
		INSERT INTO decision_logs (
			tenant_id, room_id, user_id, stage, outcome, reason,
			message_excerpt, inferred_intent, selected_capability,
			guardrail_action, policy_reason, success, error_code,
			tokens_in, tokens_out, model_id, timing_breakdown_ms,
			confirmation_needed, confirmation_question, confirmation_resolution,
			warnings, scrubbed_detail, created_at
		) VALUES (
			$1, 'room-1', 'user-1', 'execution', 'handled', 'test fixture',
			'hello', 'task.create', 'task.create',
			'allow', '', true, '',
			0, 0, 'test-model', '{}',
			false, '', '',
			'{}', '{}', $2
		)`, tenantID, createdAt)
	require.NoError(t, err)
}

func TestService_PurgesOldDecisionLogs(t *testing.T) {
	client := testdatabase.NewTestClient(t)
	st := store.New(client)

	const tenantID = "tenant-cleanup-decision-logs"
	insertDecisionLog(t, st, tenantID, time.Now().Add(-48*time.Hour))
	insertDecisionLog(t, st, tenantID, time.Now())

	svc := NewService(testRetentionConfig(), st)
	svc.purgeOldDecisionLogs(context.Background())

	remaining, err := st.RecentDecisionLogs(context.Background(), tenantID, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.WithinDuration(t, time.Now(), remaining[0].CreatedAt, time.Minute)
}

func TestService_PurgesExpiredConversationStates(t *testing.T) {
	client := testdatabase.NewTestClient(t)
	st := store.New(client)

	const tenantID = "tenant-cleanup-conv-state"

	expired := models.ConversationState{
		TenantID:  tenantID,
		RoomID:    "room-1",
		UserID:    "user-expired",
		StateType: models.StateGoalSetting,
		Step:      "awaiting_title",
		Data:      map[string]any{},
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, st.UpsertConversationState(context.Background(), expired))

	fresh := models.ConversationState{
		TenantID:  tenantID,
		RoomID:    "room-1",
		UserID:    "user-fresh",
		StateType: models.StateGoalSetting,
		Step:      "awaiting_title",
		Data:      map[string]any{},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.UpsertConversationState(context.Background(), fresh))

	svc := NewService(testRetentionConfig(), st)
	svc.purgeExpiredConversationStates(context.Background())

	state, err := st.GetConversationState(context.Background(), tenantID, "room-1", "user-expired")
	require.NoError(t, err)
	require.True(t, state.IsNormal())

	state, err = st.GetConversationState(context.Background(), tenantID, "room-1", "user-fresh")
	require.NoError(t, err)
	require.Equal(t, models.StateGoalSetting, state.StateType)
}

func TestService_StartStopRunsOnInterval(t *testing.T) {
	client := testdatabase.NewTestClient(t)
	st := store.New(client)

	const tenantID = "tenant-cleanup-lifecycle"
	insertDecisionLog(t, st, tenantID, time.Now().Add(-48*time.Hour))

	svc := NewService(testRetentionConfig(), st)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)

	require.Eventually(t, func() bool {
		remaining, err := st.RecentDecisionLogs(context.Background(), tenantID, 10)
		return err == nil && len(remaining) == 0
	}, 2*time.Second, 20*time.Millisecond)
}
