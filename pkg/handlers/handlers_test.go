package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/execution"
	"github.com/codeready-toolchain/brain/pkg/memory"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/store"
)

func TestHelp_ListsGivenCapabilities(t *testing.T) {
	out, err := Help(context.Background(), map[string]any{"available": []string{"task_create", "goal_set"}}, execution.Envelope{}, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "task_create")
	assert.Contains(t, out.Summary, "goal_set")
}

func TestHelp_FallsBackWhenNoneGiven(t *testing.T) {
	out, err := Help(context.Background(), map[string]any{}, execution.Envelope{}, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "I can help")
}

func TestKnowledgeQuery_PrefersRetrievedChunks(t *testing.T) {
	d := Deps{}
	out, err := d.KnowledgeQuery(context.Background(), map[string]any{
		"query":            "what is our refund policy",
		"retrieved_chunks": "- (handbook) refunds are processed within 30 days",
	}, execution.Envelope{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "- (handbook) refunds are processed within 30 days", out.Summary)
}

func TestKnowledgeQuery_FallsBackToTeachingKeywordMatch(t *testing.T) {
	d := Deps{}
	mc := &memory.Context{
		Teachings: []models.CEOTeaching{
			{ID: "t1", Statement: "We always refund unhappy customers within a week."},
		},
	}
	out, err := d.KnowledgeQuery(context.Background(), map[string]any{"query": "what's our refund policy"}, execution.Envelope{}, mc)
	require.NoError(t, err)
	assert.Equal(t, "We always refund unhappy customers within a week.", out.Summary)
	assert.Equal(t, "t1", out.Detail["teaching_id"])
}

func TestKnowledgeQuery_NoMatchFallsBackToDefaultMessage(t *testing.T) {
	d := Deps{}
	out, err := d.KnowledgeQuery(context.Background(), map[string]any{"query": "what's the weather"}, execution.Envelope{}, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "teach me")
}

func TestTaskCreate_RequiresTitleAndAssignee(t *testing.T) {
	d := Deps{}
	_, err := d.TaskCreate(context.Background(), map[string]any{"title": "write report"}, execution.Envelope{}, nil)
	assert.Error(t, err)
}

func TestTaskComplete_RequiresResolvableTaskID(t *testing.T) {
	d := Deps{}
	_, err := d.TaskComplete(context.Background(), map[string]any{}, execution.Envelope{}, nil)
	assert.Error(t, err)
}

func TestGoalSet_RequiresTitle(t *testing.T) {
	d := Deps{}
	_, err := d.GoalSet(context.Background(), map[string]any{}, execution.Envelope{}, nil)
	assert.Error(t, err)
}

func TestTeachingRecord_RequiresStatement(t *testing.T) {
	d := Deps{}
	_, err := d.TeachingRecord(context.Background(), map[string]any{}, execution.Envelope{}, nil)
	assert.Error(t, err)
}

func TestAnnouncementRequest_RequiresRoomAliasAndBody(t *testing.T) {
	_, err := AnnouncementRequest(context.Background(), map[string]any{"room_alias": "#general"}, execution.Envelope{}, nil)
	assert.Error(t, err)
}

func TestAnnouncementRequest_Valid(t *testing.T) {
	out, err := AnnouncementRequest(context.Background(), map[string]any{
		"room_alias":   "#general",
		"message_body": "office closed Friday",
	}, execution.Envelope{}, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "#general")
	assert.Equal(t, "office closed Friday", out.Detail["message_body"])
}

func TestInsightList_EmptyAndSorted(t *testing.T) {
	out, err := InsightList(context.Background(), nil, execution.Envelope{}, nil)
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "No notable insights")

	mc := &memory.Context{RecentInsights: []store.Insight{
		{ID: "i1", Kind: "trend", Summary: "low", Priority: "low"},
		{ID: "i2", Kind: "anomaly", Summary: "high", Priority: "high"},
	}}
	out, err = InsightList(context.Background(), nil, execution.Envelope{}, mc)
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "high")
}

func TestResolvePerson_MatchesSubstring(t *testing.T) {
	mc := &memory.Context{Persons: []store.Person{{ID: "p1", Name: "Jordan Smith"}}}
	assert.Equal(t, "p1", resolvePerson("jordan", mc))
	assert.Equal(t, "", resolvePerson("nobody", mc))
	assert.Equal(t, "", resolvePerson("anyone", nil))
}
