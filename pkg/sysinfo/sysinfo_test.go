package sysinfo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AddAndGet(t *testing.T) {
	svc := New()

	id := svc.AddWarning(CategoryLLMCircuit, "breaker open", "consecutive failures", "anthropic")
	assert.NotEmpty(t, id)

	warnings := svc.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, CategoryLLMCircuit, warnings[0].Category)
	assert.Equal(t, "breaker open", warnings[0].Message)
	assert.Equal(t, "consecutive failures", warnings[0].Details)
	assert.Equal(t, "anthropic", warnings[0].SourceID)
	assert.False(t, warnings[0].CreatedAt.IsZero())
}

func TestService_ClearBySource(t *testing.T) {
	svc := New()

	svc.AddWarning(CategoryChatDelivery, "send failing", "", "slack")
	svc.AddWarning(CategoryChatDelivery, "send failing", "", "other-tenant")

	assert.Len(t, svc.Warnings(), 2)

	cleared := svc.ClearBySource(CategoryChatDelivery, "slack")
	assert.True(t, cleared)
	assert.Len(t, svc.Warnings(), 1)
	assert.Equal(t, "other-tenant", svc.Warnings()[0].SourceID)

	cleared = svc.ClearBySource(CategoryChatDelivery, "nonexistent")
	assert.False(t, cleared)
}

func TestService_ReplacesDuplicate(t *testing.T) {
	svc := New()

	svc.AddWarning(CategoryHandlerFailure, "first error", "err1", "task_create")
	svc.AddWarning(CategoryHandlerFailure, "second error", "err2", "task_create")

	warnings := svc.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "second error", warnings[0].Message)
	assert.Equal(t, "err2", warnings[0].Details)
}

func TestService_Empty(t *testing.T) {
	svc := New()
	assert.Empty(t, svc.Warnings())
}

func TestService_ThreadSafety(t *testing.T) {
	svc := New()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.AddWarning("test", "msg", "", "")
		}()
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Warnings()
		}()
	}

	wg.Wait()
	assert.NotNil(t, svc.Warnings())
}
