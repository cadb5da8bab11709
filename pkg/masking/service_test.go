package masking

import (
	"strings"
	"testing"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryWithMasking(t *testing.T, capID string, cfg *config.MaskingConfig) *config.CapabilityRegistry {
	t.Helper()
	return config.NewCapabilityRegistry(map[string]*config.CapabilityConfig{
		capID: {ID: capID, Enabled: true, DataMasking: cfg},
	})
}

func TestMaskHandlerResult_NoMaskingConfigured(t *testing.T) {
	registry := registryWithMasking(t, "weather", nil)
	svc := NewService(registry, LogMaskingConfig{})

	out := svc.MaskHandlerResult("contact alice@example.com", "weather")
	assert.Equal(t, "contact alice@example.com", out)
}

func TestMaskHandlerResult_RedactsPII(t *testing.T) {
	registry := registryWithMasking(t, "lookup", &config.MaskingConfig{
		Enabled:       true,
		PatternGroups: []string{"pii"},
	})
	svc := NewService(registry, LogMaskingConfig{})

	out := svc.MaskHandlerResult("reach me at alice@example.com", "lookup")
	assert.Equal(t, "reach me at [REDACTED_EMAIL]", out)
}

func TestMaskHandlerResult_UnknownCapabilityPassesThrough(t *testing.T) {
	registry := registryWithMasking(t, "lookup", &config.MaskingConfig{Enabled: true, PatternGroups: []string{"pii"}})
	svc := NewService(registry, LogMaskingConfig{})

	out := svc.MaskHandlerResult("alice@example.com", "does-not-exist")
	assert.Equal(t, "alice@example.com", out)
}

func TestMaskLogContext_FailOpenOnNoGroup(t *testing.T) {
	svc := NewService(config.NewCapabilityRegistry(nil), LogMaskingConfig{
		Enabled:      true,
		PatternGroup: "not-a-real-group",
	})

	in := "alice@example.com"
	out := svc.MaskLogContext(in)
	assert.Equal(t, in, out, "unresolvable pattern group must fail open and return original data")
}

func TestMaskLogContext_Disabled(t *testing.T) {
	svc := NewService(config.NewCapabilityRegistry(nil), LogMaskingConfig{Enabled: false})
	in := "alice@example.com"
	assert.Equal(t, in, svc.MaskLogContext(in))
}

func TestMaskLogContext_RedactsConfiguredGroup(t *testing.T) {
	svc := NewService(config.NewCapabilityRegistry(nil), LogMaskingConfig{
		Enabled:      true,
		PatternGroup: "pii",
	})

	out := svc.MaskLogContext("call 555-123-4567 or email bob@example.com")
	assert.True(t, strings.Contains(out, "[REDACTED_PHONE]") || strings.Contains(out, "[REDACTED_EMAIL]"))
}

func TestMaskHandlerResult_CredentialBlockCodeMasker(t *testing.T) {
	registry := registryWithMasking(t, "integration", &config.MaskingConfig{
		Enabled:       true,
		PatternGroups: []string{"secrets"},
	})
	svc := NewService(registry, LogMaskingConfig{})

	payload := `{"kind":"ServiceAccount","data":{"token":"abcdef"}}`
	out := svc.MaskHandlerResult(payload, "integration")
	require.Contains(t, out, MaskedCredentialValue)
	assert.NotContains(t, out, "abcdef")
}
