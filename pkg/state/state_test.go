package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/models"
)

func TestIsCancel_MatchesKnownSynonyms(t *testing.T) {
	assert.True(t, IsCancel("cancel"))
	assert.True(t, IsCancel("Never Mind"))
	assert.True(t, IsCancel("actually nvm"))
	assert.False(t, IsCancel("create a task"))
}

func TestHandleCancel_NoOpWhenStateIsNormal(t *testing.T) {
	m := New(nil)
	handled, reply, err := m.HandleCancel(context.Background(), models.ConversationState{StateType: models.StateNormal}, Input{Text: "cancel"})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, reply)
}

func TestHandleCancel_NoOpWhenMessageIsNotACancel(t *testing.T) {
	m := New(nil)
	current := models.ConversationState{StateType: models.ConversationStateType("awaiting_deadline")}
	handled, reply, err := m.HandleCancel(context.Background(), current, Input{Text: "Friday"})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, reply)
}

func TestContinue_FallsBackWhenStateIsNormal(t *testing.T) {
	m := New(nil)
	_, ok, err := m.Continue(context.Background(), models.ConversationState{StateType: models.StateNormal}, Input{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContinue_FallsBackWhenNoContinuationRegistered(t *testing.T) {
	m := New(nil)
	current := models.ConversationState{StateType: models.ConversationStateType("awaiting_deadline")}
	_, ok, err := m.Continue(context.Background(), current, Input{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContinue_DispatchesToRegisteredContinuation(t *testing.T) {
	m := New(nil)
	stateType := models.ConversationStateType("awaiting_deadline")
	m.Register(stateType, func(ctx context.Context, st models.ConversationState, msg Input) (ContinuationResult, error) {
		return ContinuationResult{Reply: "got it: " + msg.Text}, nil
	})

	result, ok, err := m.Continue(context.Background(), models.ConversationState{StateType: stateType}, Input{Text: "Friday"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "got it: Friday", result.Reply)
}
