package config

import "fmt"

// Validator performs ordered, component-by-component validation of a loaded
// Config. One method per
// concern, all invoked from ValidateAll in a fixed order so the first
// error reported is always the most fundamental one.
type Validator struct {
	cfg *Config
}

// NewValidator constructs a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every validation check and returns the first failure.
func (v *Validator) ValidateAll() error {
	checks := []func() error{
		v.validateChat,
		v.validateCapabilities,
		v.validateLLMProviders,
		v.validateDefaults,
		v.validateRateLimit,
		v.validateGuardrail,
		v.validateAnnouncement,
		v.validateIngest,
		v.validateRetention,
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateChat() error {
	chat := v.cfg.Chat
	if chat == nil {
		return NewValidationError("chat", "", "chat", fmt.Errorf("%w: chat config is required", ErrMissingRequiredField))
	}
	if !chat.Channel.IsValid() {
		return NewValidationError("chat", "", "channel", fmt.Errorf("%w: %q", ErrInvalidValue, chat.Channel))
	}
	if chat.TokenEnv == "" {
		return NewValidationError("chat", "", "token_env", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	return nil
}

func (v *Validator) validateCapabilities() error {
	for id, entry := range v.cfg.Capabilities.GetAll() {
		if entry.ID != id {
			return NewValidationError("capability", id, "id", fmt.Errorf("%w: map key %q does not match id %q", ErrInvalidValue, id, entry.ID))
		}
		if entry.DisplayName == "" {
			return NewValidationError("capability", id, "display_name", fmt.Errorf("%w", ErrMissingRequiredField))
		}
		if entry.MaxIterations != nil && *entry.MaxIterations < 1 {
			return NewValidationError("capability", id, "max_iterations", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
		}
		if entry.Timeout != nil && *entry.Timeout < 1 {
			return NewValidationError("capability", id, "timeout_seconds", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
		}
		if entry.Enabled {
			if entry.HandlerKey == "" {
				return NewValidationError("capability", id, "handler_key", fmt.Errorf("%w: enabled capability must name a handler", ErrMissingRequiredField))
			}
			if entry.EffectiveIntentKeywords().Empty() {
				return NewValidationError("capability", id, "intent_keywords", fmt.Errorf("%w: enabled capability must carry at least one keyword", ErrMissingRequiredField))
			}
			if entry.RequiredRoleLevel < 1 || entry.RequiredRoleLevel > 6 {
				return NewValidationError("capability", id, "required_role_level", fmt.Errorf("%w: must be 1-6", ErrInvalidValue))
			}
			if entry.RiskLevel != "" && !entry.RiskLevel.IsValid() {
				return NewValidationError("capability", id, "risk_level", fmt.Errorf("%w: %q", ErrInvalidValue, entry.RiskLevel))
			}
		}
		if err := v.validateMasking(id, entry.DataMasking); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateMasking(capabilityID string, m *MaskingConfig) error {
	if m == nil || !m.Enabled {
		return nil
	}
	builtin := GetBuiltinConfig()
	for _, group := range m.PatternGroups {
		if _, ok := builtin.PatternGroups[group]; !ok {
			return NewValidationError("capability", capabilityID, "data_masking.pattern_groups", fmt.Errorf("%w: unknown pattern group %q", ErrInvalidValue, group))
		}
	}
	for _, pattern := range m.Patterns {
		if _, ok := builtin.MaskingPatterns[pattern]; !ok {
			return NewValidationError("capability", capabilityID, "data_masking.patterns", fmt.Errorf("%w: unknown pattern %q", ErrInvalidValue, pattern))
		}
	}
	for i, custom := range m.CustomPatterns {
		if custom.Pattern == "" {
			return NewValidationError("capability", capabilityID, fmt.Sprintf("data_masking.custom_patterns[%d].pattern", i), fmt.Errorf("%w", ErrMissingRequiredField))
		}
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	providers := v.cfg.LLMProviders.GetAll()
	if len(providers) == 0 {
		return NewValidationError("llm_providers", "", "llm_providers", fmt.Errorf("%w: at least one LLM provider must be configured", ErrMissingRequiredField))
	}
	for name, p := range providers {
		if !p.Backend.IsValid() {
			return NewValidationError("llm_provider", name, "backend", fmt.Errorf("%w: %q", ErrInvalidValue, p.Backend))
		}
		if p.Model == "" {
			return NewValidationError("llm_provider", name, "model", fmt.Errorf("%w", ErrMissingRequiredField))
		}
		if p.MaxTokens < 1 {
			return NewValidationError("llm_provider", name, "max_tokens", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
		}
		if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 1) {
			return NewValidationError("llm_provider", name, "temperature", fmt.Errorf("%w: must be between 0 and 1", ErrInvalidValue))
		}
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return NewValidationError("defaults", "", "defaults", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if d.LLMProvider != "" && !v.cfg.LLMProviders.Has(d.LLMProvider) {
		return NewValidationError("defaults", "", "llm_provider", fmt.Errorf("%w: %q", ErrInvalidValue, d.LLMProvider))
	}
	if d.UnderstandingLLM != "" && !v.cfg.LLMProviders.Has(d.UnderstandingLLM) {
		return NewValidationError("defaults", "", "understanding_llm", fmt.Errorf("%w: %q", ErrInvalidValue, d.UnderstandingLLM))
	}
	return nil
}

func (v *Validator) validateRateLimit() error {
	rl := v.cfg.RateLimit
	if rl.RequestsPerSecond <= 0 {
		return NewValidationError("rate_limit", "", "requests_per_second", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if rl.Burst < 1 {
		return NewValidationError("rate_limit", "", "burst", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateGuardrail() error {
	g := v.cfg.Guardrail
	if g == nil {
		return NewValidationError("guardrail", "", "guardrail", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if g.PackageName == "" {
		return NewValidationError("guardrail", "", "package_name", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if g.QueryName == "" {
		return NewValidationError("guardrail", "", "query_name", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	return nil
}

func (v *Validator) validateAnnouncement() error {
	a := v.cfg.Announcement
	if a == nil {
		return NewValidationError("announcement", "", "announcement", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if a.RoomMatchThreshold <= 0 || a.RoomMatchThreshold > 1 {
		return NewValidationError("announcement", "", "room_match_threshold", fmt.Errorf("%w: must be in (0, 1]", ErrInvalidValue))
	}
	if a.SchedulerInterval <= 0 {
		return NewValidationError("announcement", "", "scheduler_interval", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateIngest() error {
	i := v.cfg.Ingest
	if i == nil {
		return NewValidationError("ingest", "", "ingest", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if i.WorkerCount < 1 {
		return NewValidationError("ingest", "", "worker_count", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if i.QueueDepth < 1 {
		return NewValidationError("ingest", "", "queue_depth", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if i.PerUserTimeout <= 0 {
		return NewValidationError("ingest", "", "per_user_timeout", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return NewValidationError("retention", "", "retention", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if r.DecisionLogRetentionDays < 1 {
		return NewValidationError("retention", "", "decision_log_retention_days", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if r.ConversationStateTTL <= 0 {
		return NewValidationError("retention", "", "conversation_state_ttl", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	if r.CleanupInterval <= 0 {
		return NewValidationError("retention", "", "cleanup_interval", fmt.Errorf("%w: must be > 0", ErrInvalidValue))
	}
	return nil
}
