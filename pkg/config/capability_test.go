package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityRegistry(t *testing.T) {
	caps := map[string]*CapabilityConfig{
		"task_create": {ID: "task_create", Priority: 5},
		"goal_set":    {ID: "goal_set", Priority: 4},
	}
	registry := NewCapabilityRegistry(caps)

	t.Run("Get existing capability", func(t *testing.T) {
		cap, err := registry.Get("task_create")
		require.NoError(t, err)
		assert.Equal(t, 5, cap.Priority)
	})

	t.Run("Get nonexistent capability", func(t *testing.T) {
		_, err := registry.Get("nonexistent")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCapabilityNotFound)
	})

	t.Run("Has capability", func(t *testing.T) {
		assert.True(t, registry.Has("task_create"))
		assert.False(t, registry.Has("nonexistent"))
	})

	t.Run("Len", func(t *testing.T) {
		assert.Equal(t, 2, registry.Len())
	})

	t.Run("GetAll returns copy", func(t *testing.T) {
		all := registry.GetAll()
		assert.Len(t, all, 2)

		all["goal_pause"] = &CapabilityConfig{ID: "goal_pause"}

		assert.False(t, registry.Has("goal_pause"))
	})

	t.Run("mutating the source map after construction does not affect the registry", func(t *testing.T) {
		caps["task_create"].Priority = 99
		cap, err := registry.Get("task_create")
		require.NoError(t, err)
		assert.Equal(t, 5, cap.Priority)
	})
}

func TestCapabilityRegistryThreadSafety(_ *testing.T) {
	registry := NewCapabilityRegistry(map[string]*CapabilityConfig{
		"task_create": {ID: "task_create"},
	})

	const goroutines = 100
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = registry.Get("task_create")
			_ = registry.Has("task_create")
			_ = registry.GetAll()
			_ = registry.Len()
		}()
	}
	wg.Wait()
}

func TestKeywordSet_Empty(t *testing.T) {
	assert.True(t, KeywordSet{}.Empty())
	assert.False(t, KeywordSet{Primary: []string{"x"}}.Empty())
	assert.False(t, KeywordSet{Negative: []string{"x"}}.Empty())
}

func TestCapabilityConfig_EffectiveIntentKeywords_FallsBackToLegacyKeywords(t *testing.T) {
	c := &CapabilityConfig{Keywords: []string{"help", "what can you do"}}
	kw := c.EffectiveIntentKeywords()
	assert.Equal(t, []string{"help", "what can you do"}, kw.Primary)
}

func TestCapabilityConfig_EffectiveDecisionKeywords_FallsBackToIntentKeywords(t *testing.T) {
	c := &CapabilityConfig{IntentKeywords: KeywordSet{Primary: []string{"create a task"}}}
	assert.Equal(t, c.IntentKeywords, c.EffectiveDecisionKeywords())
}

func TestRiskLevel_IsValid(t *testing.T) {
	assert.True(t, RiskLow.IsValid())
	assert.True(t, RiskMedium.IsValid())
	assert.True(t, RiskHigh.IsValid())
	assert.False(t, RiskLevel("critical").IsValid())
}
