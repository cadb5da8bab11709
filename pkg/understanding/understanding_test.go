package understanding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/llm"
)

type fakeLLM struct {
	resp *llm.CompletionResponse
	err  error
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeLLM) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, fmt.Errorf("not used in this test")
}

func newCaps() *config.CapabilityRegistry {
	return config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"task_create": {
			ID: "task_create", Enabled: true, Priority: 5,
			IntentKeywords: config.KeywordSet{Primary: []string{"create a task"}, Secondary: []string{"task"}},
		},
		"task_search": {
			ID: "task_search", Enabled: true, Priority: 5,
			IntentKeywords: config.KeywordSet{Primary: []string{"my tasks"}},
		},
	})
}

func TestInfer_KeywordOnlyWhenNoLLMConfigured(t *testing.T) {
	e := New(newCaps(), nil, "")
	res, err := e.Infer(context.Background(), "please create a task for Jordan", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "task_create", res.Intent)
	assert.False(t, res.UsedLLM)
	assert.LessOrEqual(t, res.Confidence, llmOutageConfidenceCap)
}

func TestInfer_LLMAgreesWithStrongKeyword(t *testing.T) {
	caps := config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"task_create": {
			ID: "task_create", Enabled: true, Priority: 10,
			IntentKeywords: config.KeywordSet{Primary: []string{"create a task", "urgent request"}},
		},
	})
	fake := &fakeLLM{resp: &llm.CompletionResponse{Content: `{"intent":"task_create","entities":{"assignee":"Jordan"},"confidence":0.9,"urgency":"normal"}`}}
	e := New(caps, fake, "test-model")
	res, err := e.Infer(context.Background(), "create a task, urgent request for Jordan", nil, nil)
	require.NoError(t, err)
	assert.True(t, res.UsedLLM)
	assert.Equal(t, "task_create", res.Intent)
	assert.Equal(t, "keyword and LLM agree", res.Reasoning)
	assert.Equal(t, "Jordan", res.Entities["assignee"])
}

func TestInfer_LLMOverridesOnDisagreementAboveThreshold(t *testing.T) {
	fake := &fakeLLM{resp: &llm.CompletionResponse{Content: `{"intent":"task_search","entities":{},"confidence":0.8,"urgency":"low"}`}}
	e := New(newCaps(), fake, "test-model")
	res, err := e.Infer(context.Background(), "task", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "task_search", res.Intent)
}

func TestInfer_LLMErrorFallsBackToKeywordOnly(t *testing.T) {
	fake := &fakeLLM{err: fmt.Errorf("upstream unavailable")}
	e := New(newCaps(), fake, "test-model")
	res, err := e.Infer(context.Background(), "my tasks please", nil, nil)
	require.NoError(t, err)
	assert.False(t, res.UsedLLM)
	assert.Equal(t, "task_search", res.Intent)
}

func TestNeedsConfirmationHint_LowConfidence(t *testing.T) {
	e := New(newCaps(), nil, "")
	hint := e.needsConfirmationHint(Result{Confidence: 0.3}, Candidate{}, Candidate{})
	assert.True(t, hint)
}

func TestNeedsConfirmationHint_CloseCandidates(t *testing.T) {
	e := New(newCaps(), nil, "")
	hint := e.needsConfirmationHint(
		Result{Confidence: 0.9},
		Candidate{CapabilityID: "task_create", Score: 1.0},
		Candidate{CapabilityID: "task_search", Score: 0.95},
	)
	assert.True(t, hint)
}

func TestNeedsConfirmationHint_ConfidentAndUnambiguous(t *testing.T) {
	e := New(newCaps(), nil, "")
	hint := e.needsConfirmationHint(
		Result{Confidence: 0.9, Intent: "task_create"},
		Candidate{CapabilityID: "task_create", Score: 1.0},
		Candidate{},
	)
	assert.False(t, hint)
}

func TestScoreKeywords_NegativeKeywordSuppressesMatch(t *testing.T) {
	caps := config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"task_search": {
			ID: "task_search", Enabled: true, Priority: 5,
			IntentKeywords: config.KeywordSet{Primary: []string{"my tasks"}, Negative: []string{"create a task"}},
		},
	})
	e := New(caps, nil, "")
	scores, candidates := e.scoreKeywords("create a task please")
	assert.Len(t, candidates, 0)
	assert.Empty(t, scores)
}
