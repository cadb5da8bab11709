package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/memory"
	"github.com/codeready-toolchain/brain/pkg/models"
)

func TestParseDate_TodayAndTomorrow(t *testing.T) {
	today, err := parseDate("today", "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.Now().UTC().Day(), today.Day())

	tomorrow, err := parseDate("tomorrow", "UTC")
	require.NoError(t, err)
	assert.Equal(t, today.AddDate(0, 0, 1).Day(), tomorrow.Day())
}

func TestParseDate_WeekdayResolvesToUpcomingOccurrence(t *testing.T) {
	got, err := parseDate("friday", "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, got.Weekday())
	assert.True(t, got.After(time.Now()))
}

func TestParseDate_ExplicitLayout(t *testing.T) {
	got, err := parseDate("2026-12-25", "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.December, got.Month())
	assert.Equal(t, 25, got.Day())
}

func TestParseDate_UnparseableReturnsError(t *testing.T) {
	_, err := parseDate("whenever", "UTC")
	assert.Error(t, err)
}

func TestValidateAndCoerce_MissingRequiredParameter(t *testing.T) {
	schema := map[string]config.ParameterSpec{"title": {Type: "string", Required: true}}
	_, err := validateAndCoerce(schema, map[string]any{}, "UTC")
	assert.Error(t, err)
}

func TestValidateAndCoerce_CoercesIntAndBool(t *testing.T) {
	schema := map[string]config.ParameterSpec{
		"count":  {Type: "int"},
		"urgent": {Type: "bool"},
	}
	out, err := validateAndCoerce(schema, map[string]any{"count": "3", "urgent": "true"}, "UTC")
	require.NoError(t, err)
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, true, out["urgent"])
}

func TestEngineRun_InvokesRegisteredHandler(t *testing.T) {
	reg := NewRegistry()
	reg.Register("task_create", func(ctx context.Context, params map[string]any, env Envelope, mc *memory.Context) (Output, error) {
		return Output{Summary: "created " + params["title"].(string)}, nil
	})
	caps := config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"task_create": {
			ID:         "task_create",
			Enabled:    true,
			HandlerKey: "task_create",
			ParameterSchema: map[string]config.ParameterSpec{
				"title": {Type: "string", Required: true},
			},
		},
	})
	e := New(reg, caps)
	cap, err := caps.Get("task_create")
	require.NoError(t, err)

	invocations := e.Run(context.Background(), "plan-1", cap, map[string]any{"title": "write report"}, Envelope{TenantID: "t1"}, nil)
	require.Len(t, invocations, 1)
	assert.NoError(t, invocations[0].Err)
	assert.Equal(t, "created write report", invocations[0].Output.Summary)
	assert.Equal(t, models.HandlerResultSuccess, invocations[0].Result.Status)
}

func TestEngineRun_MissingHandlerProducesErrorInvocation(t *testing.T) {
	reg := NewRegistry()
	caps := config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"task_create": {ID: "task_create", Enabled: true, HandlerKey: "task_create"},
	})
	e := New(reg, caps)
	cap, err := caps.Get("task_create")
	require.NoError(t, err)

	invocations := e.Run(context.Background(), "plan-1", cap, map[string]any{}, Envelope{}, nil)
	require.Len(t, invocations, 1)
	assert.Error(t, invocations[0].Err)
	assert.Equal(t, models.HandlerResultError, invocations[0].Result.Status)
}

func TestEngineRun_ChainsNextActionUpToMaxDepth(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register("chain", func(ctx context.Context, params map[string]any, env Envelope, mc *memory.Context) (Output, error) {
		calls++
		return Output{NextAction: &NextAction{CapabilityID: "chain", Parameters: map[string]any{}}}, nil
	})
	caps := config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"chain": {ID: "chain", Enabled: true, HandlerKey: "chain"},
	})
	e := New(reg, caps)
	cap, err := caps.Get("chain")
	require.NoError(t, err)

	invocations := e.Run(context.Background(), "plan-1", cap, map[string]any{}, Envelope{}, nil)
	assert.Equal(t, MaxChainDepth, calls)
	assert.Len(t, invocations, MaxChainDepth)
}

func TestRegistry_HasAndKeys(t *testing.T) {
	reg := NewRegistry()
	assert.False(t, reg.Has("help"))
	reg.Register("help", func(ctx context.Context, params map[string]any, env Envelope, mc *memory.Context) (Output, error) {
		return Output{}, nil
	})
	assert.True(t, reg.Has("help"))
	assert.Equal(t, []string{"help"}, reg.Keys())
}
