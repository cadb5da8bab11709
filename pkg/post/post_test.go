package post

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/masking"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/store"
	testdatabase "github.com/codeready-toolchain/brain/test/database"
)

type fakeChatSender struct {
	sent []string
	err  error
}

func (f *fakeChatSender) SendMessage(_ context.Context, _, _, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, text)
	return "msg-1", nil
}

func newTestEngine(t *testing.T, chat ChatSender) (*Engine, *store.Store) {
	t.Helper()
	client := testdatabase.NewTestClient(t)
	st := store.New(client)
	registry := config.NewCapabilityRegistry(nil)
	maskingSvc := masking.NewService(registry, masking.LogMaskingConfig{Enabled: true, PatternGroup: "pii"})
	return New(st, chat, maskingSvc), st
}

func TestFinalize_RecordsTurnsAndSendsReply(t *testing.T) {
	chat := &fakeChatSender{}
	engine, st := newTestEngine(t, chat)

	req := Request{
		TenantID:           "tenant-post-1",
		RoomID:             "room-1",
		UserID:             "user-1",
		UserText:           "create a task to ship the report",
		Reply:              "Done — I've created that task.",
		Stage:              models.StageExecution,
		Outcome:            "handled",
		Reason:             "capability executed",
		InferredIntent:     "task_create",
		SelectedCapability: "task_create",
		Success:            true,
		ScrubbedDetail:     map[string]any{"task_id": "task-123"},
	}

	result, err := engine.Finalize(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "msg-1", result.MessageID)
	require.NotNil(t, result.DecisionLog)
	require.Equal(t, "task_create", result.DecisionLog.SelectedCapability)
	require.Len(t, chat.sent, 1)

	turns, err := st.RecentTurns(context.Background(), req.TenantID, req.RoomID, req.UserID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "user", turns[0].Speaker)
	require.Equal(t, "brain", turns[1].Speaker)
}

func TestFinalize_SkipsDecisionLogForDuplicates(t *testing.T) {
	engine, st := newTestEngine(t, &fakeChatSender{})

	req := Request{
		TenantID:        "tenant-post-dup",
		RoomID:          "room-1",
		UserID:          "user-1",
		SkipDecisionLog: true,
	}

	result, err := engine.Finalize(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, result.DecisionLog)

	logs, err := st.RecentDecisionLogs(context.Background(), req.TenantID, 10)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestFinalize_WritesAuditEntryWhenRequested(t *testing.T) {
	engine, st := newTestEngine(t, &fakeChatSender{})

	req := Request{
		TenantID: "tenant-post-audit",
		RoomID:   "room-1",
		UserID:   "user-1",
		Audit: &AuditEntry{
			Actor:          "user-1",
			Action:         "task.create",
			ResourceType:   "task",
			ResourceID:     "task-123",
			Classification: models.ClassificationInternal,
		},
	}

	result, err := engine.Finalize(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Audit)
	require.Equal(t, "task.create", result.Audit.Action)

	recent, err := st.RecentAuditLogs(context.Background(), req.TenantID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestSuggestionsFor_BoundedToThree(t *testing.T) {
	cap := &config.CapabilityConfig{
		ChainHints: []string{"a", "b", "c", "d", "e"},
	}
	require.Equal(t, []string{"a", "b", "c"}, suggestionsFor(cap))
	require.Nil(t, suggestionsFor(nil))
}
