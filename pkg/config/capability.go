package config

import (
	"fmt"
	"sync"
)

// MaskingConfig controls which redaction patterns apply to one capability's
// handler results before they are logged or returned to Post. Mirrors the
// the per-MCP-server DataMasking block used elsewhere in this config tree.
type MaskingConfig struct {
	Enabled        bool             `yaml:"enabled"`
	PatternGroups  []string         `yaml:"pattern_groups"`
	Patterns       []string         `yaml:"patterns"`
	CustomPatterns []CustomPattern  `yaml:"custom_patterns"`
}

// CustomPattern is a capability-supplied regex pattern, compiled alongside
// the built-in set.
type CustomPattern struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description"`
}

// RiskLevel is the closed set of blast-radius tiers a capability can
// carry; "high" always gates on confirmation regardless of confidence.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// IsValid reports whether r is one of the closed set of risk levels.
func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// KeywordSet is a primary/secondary/negative keyword triple. Primary hits
// contribute full weight, secondary partial weight, negative hits
// subtract — used identically by Understanding's intent scorer and
// Decision's capability scorer, per spec §4.4/§4.5.
type KeywordSet struct {
	Primary   []string `yaml:"primary"`
	Secondary []string `yaml:"secondary"`
	Negative  []string `yaml:"negative"`
}

// Empty reports whether the keyword set carries no terms at all.
func (k KeywordSet) Empty() bool {
	return len(k.Primary) == 0 && len(k.Secondary) == 0 && len(k.Negative) == 0
}

// ParameterSpec describes one named parameter a capability's handler
// expects, used by Execution's parameter validator.
type ParameterSpec struct {
	Type     string `yaml:"type"` // string, int, float, bool, date, duration
	Required bool   `yaml:"required"`
}

// CapabilityConfig describes one handler the Decision layer can route to.
// Mirrors the teacher's AgentConfig entries (pkg/config/agent.go): a
// declarative descriptor plus a handler_key pointing into a function
// table, generalized from "agent + tool chain" to "capability + handler".
type CapabilityConfig struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Enabled     bool   `yaml:"enabled"`

	// RequiredRoleLevel gates who may invoke this capability (1-6,
	// matching identity.User.RoleLevel).
	RequiredRoleLevel int       `yaml:"required_role_level"`
	RiskLevel         RiskLevel `yaml:"risk_level"`

	// Priority breaks ties in both Understanding's keyword scorer and
	// Decision's capability scorer; higher wins.
	Priority int `yaml:"priority"`

	// IntentKeywords drives Understanding's keyword path; DecisionKeywords
	// drives Decision's scoring formula. Kept separate per spec §4.3/§4.5
	// even though most capabilities give them the same values.
	IntentKeywords   KeywordSet `yaml:"intent_keywords"`
	DecisionKeywords KeywordSet `yaml:"decision_keywords"`

	// Keywords is a flattened legacy alias consulted when IntentKeywords
	// is empty, so existing tenant YAML with a bare keyword list keeps
	// working after this field set was introduced.
	Keywords []string `yaml:"keywords"`

	ParameterSchema      map[string]ParameterSpec `yaml:"parameter_schema"`
	RequiresConfirmation bool                     `yaml:"requires_confirmation"`

	// HandlerKey links this descriptor to exactly one entry in the
	// Execution layer's handler function table.
	HandlerKey string `yaml:"handler_key"`

	// ChainHints names follow-up suggestion strings offered after a
	// successful invocation (§4.8, capped to 3 by Post).
	ChainHints []string `yaml:"chain_hints"`

	DataMasking   *MaskingConfig `yaml:"data_masking"`
	MaxIterations *int           `yaml:"max_iterations"`
	Timeout       *int           `yaml:"timeout_seconds"`
}

// EffectiveIntentKeywords returns IntentKeywords, falling back to the
// legacy flat Keywords list (treated as all-primary) when IntentKeywords
// carries no terms.
func (c *CapabilityConfig) EffectiveIntentKeywords() KeywordSet {
	if !c.IntentKeywords.Empty() {
		return c.IntentKeywords
	}
	if len(c.Keywords) > 0 {
		return KeywordSet{Primary: c.Keywords}
	}
	return KeywordSet{}
}

// EffectiveDecisionKeywords returns DecisionKeywords, falling back to
// EffectiveIntentKeywords when empty — most capabilities score the same
// way in both layers.
func (c *CapabilityConfig) EffectiveDecisionKeywords() KeywordSet {
	if !c.DecisionKeywords.Empty() {
		return c.DecisionKeywords
	}
	return c.EffectiveIntentKeywords()
}

// CapabilityRegistry is a thread-safe, read-mostly registry of capabilities
// keyed by id, built once at config load and consulted by the Decision and
// Execution layers on every request. Shape mirrors the
// AgentRegistry: map + RWMutex + defensive copies on every accessor.
type CapabilityRegistry struct {
	capabilities map[string]*CapabilityConfig
	mu           sync.RWMutex
}

// NewCapabilityRegistry builds a registry from a loaded config map, copying
// each entry so later mutation of the source map cannot affect the registry.
func NewCapabilityRegistry(capabilities map[string]*CapabilityConfig) *CapabilityRegistry {
	copied := make(map[string]*CapabilityConfig, len(capabilities))
	for id, entry := range capabilities {
		c := *entry
		copied[id] = &c
	}
	return &CapabilityRegistry{capabilities: copied}
}

// Get returns the capability with the given id.
func (r *CapabilityRegistry) Get(id string) (*CapabilityConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.capabilities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCapabilityNotFound, id)
	}
	return entry, nil
}

// GetAll returns a defensive copy of every registered capability.
func (r *CapabilityRegistry) GetAll() map[string]*CapabilityConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*CapabilityConfig, len(r.capabilities))
	for id, entry := range r.capabilities {
		out[id] = entry
	}
	return out
}

// Has reports whether id is registered.
func (r *CapabilityRegistry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.capabilities[id]
	return ok
}

// Len returns the number of registered capabilities.
func (r *CapabilityRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities)
}
