package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBuiltinConfig(t *testing.T) {
	cfg1 := GetBuiltinConfig()
	cfg2 := GetBuiltinConfig()

	assert.Same(t, cfg1, cfg2, "GetBuiltinConfig should return the same instance")
	assert.NotNil(t, cfg1)
	assert.NotEmpty(t, cfg1.Capabilities)
	assert.NotEmpty(t, cfg1.MaskingPatterns)
}

func TestBuiltinConfigThreadSafety(t *testing.T) {
	const goroutines = 100
	var wg sync.WaitGroup
	configs := make([]*BuiltinConfig, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			configs[index] = GetBuiltinConfig()
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, configs[0], configs[i])
	}
}

func TestBuiltinCapabilities_EveryPatternGroupReferencesKnownPatternOrMasker(t *testing.T) {
	cfg := GetBuiltinConfig()
	codeMaskers := make(map[string]bool, len(cfg.CodeMaskers))
	for _, m := range cfg.CodeMaskers {
		codeMaskers[m] = true
	}
	for group, patterns := range cfg.PatternGroups {
		for _, p := range patterns {
			_, isBuiltinPattern := cfg.MaskingPatterns[p]
			assert.True(t, isBuiltinPattern || codeMaskers[p], "pattern group %q references unknown pattern/masker %q", group, p)
		}
	}
}

func TestBuiltinCapabilities_EveryEnabledEntryHasHandlerKeyAndKeywords(t *testing.T) {
	cfg := GetBuiltinConfig()
	for id, cap := range cfg.Capabilities {
		if !cap.Enabled {
			continue
		}
		assert.NotEmpty(t, cap.HandlerKey, "capability %q is enabled but has no handler key", id)
		assert.False(t, cap.EffectiveIntentKeywords().Empty(), "capability %q is enabled but has no intent keywords", id)
	}
}
