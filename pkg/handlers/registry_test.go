package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/execution"
)

// TestCapabilityHandlerRegistryInvariants enforces the three closed-world
// properties every descriptor/handler pair must satisfy: every capability
// names a handler key that is actually registered, every registered handler
// is reachable from at least one capability, and every enabled capability
// carries a non-empty keyword set (otherwise Understanding can never score
// it above zero).
func TestCapabilityHandlerRegistryInvariants(t *testing.T) {
	builtin := config.GetBuiltinConfig()
	capMap := make(map[string]*config.CapabilityConfig, len(builtin.Capabilities))
	for id, c := range builtin.Capabilities {
		cc := c
		capMap[id] = &cc
	}
	capabilities := config.NewCapabilityRegistry(capMap)

	reg := execution.NewRegistry()
	Register(reg, Deps{})

	referenced := map[string]bool{}
	for id, cap := range capabilities.GetAll() {
		t.Run(id+"/handler_registered", func(t *testing.T) {
			assert.True(t, reg.Has(cap.HandlerKey), "capability %q names handler key %q, which has no registered handler", id, cap.HandlerKey)
		})
		referenced[cap.HandlerKey] = true

		if cap.Enabled {
			t.Run(id+"/keywords_non_empty", func(t *testing.T) {
				assert.False(t, cap.EffectiveIntentKeywords().Empty(), "enabled capability %q has no intent keywords", id)
			})
		}
	}

	for _, key := range reg.Keys() {
		assert.True(t, referenced[key], "handler key %q is registered but no capability references it", key)
	}
}
