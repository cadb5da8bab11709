package masking

import (
	"testing"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestCompileBuiltinPatterns(t *testing.T) {
	svc := NewService(config.NewCapabilityRegistry(nil), LogMaskingConfig{})
	assert.Equal(t, len(config.GetBuiltinConfig().MaskingPatterns), len(svc.patterns))
}

func TestCompileCustomPatterns_Deduplicated(t *testing.T) {
	registry := config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"a": {
			ID: "a",
			DataMasking: &config.MaskingConfig{
				Enabled: true,
				CustomPatterns: []config.CustomPattern{
					{Pattern: `foo\d+`, Replacement: "[FOO]", Description: "test"},
				},
			},
		},
	})
	svc := NewService(registry, LogMaskingConfig{})
	require := assert.New(t)
	require.Contains(svc.patterns, "custom:a:0")
	require.Equal("[FOO]", svc.patterns["custom:a:0"].Replacement)
}

func TestResolvePatterns_GroupsAndIndividualPatternsDeduped(t *testing.T) {
	registry := config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		"a": {
			ID: "a",
			DataMasking: &config.MaskingConfig{
				Enabled:       true,
				PatternGroups: []string{"pii"},
				Patterns:      []string{"email"},
			},
		},
	})
	svc := NewService(registry, LogMaskingConfig{})
	resolved := svc.resolvePatterns(registry.GetAll()["a"].DataMasking, "a")

	seen := map[string]bool{}
	for _, p := range resolved.regexPatterns {
		assert.False(t, seen[p.Name], "pattern %s should not be resolved twice", p.Name)
		seen[p.Name] = true
	}
	assert.True(t, seen["email"])
}

func TestResolvePatternsFromGroup_UnknownGroupReturnsEmpty(t *testing.T) {
	svc := NewService(config.NewCapabilityRegistry(nil), LogMaskingConfig{})
	resolved := svc.resolvePatternsFromGroup("nonexistent")
	assert.Empty(t, resolved.regexPatterns)
	assert.Empty(t, resolved.codeMaskerNames)
}
