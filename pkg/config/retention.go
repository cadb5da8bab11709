package config

import "time"

// RetentionConfig controls data retention and cleanup behavior.
type RetentionConfig struct {
	// DecisionLogRetentionDays is how many days to keep decision_log rows
	// before deleting them outright (decision_log is append-only audit
	// trail, not soft-deleted).
	DecisionLogRetentionDays int `yaml:"decision_log_retention_days"`

	// ConversationStateTTL bounds how long an idle conversation state
	// survives; a background sweep enforces this in addition to the
	// read-time lazy-expiry check every State layer read already performs.
	ConversationStateTTL time.Duration `yaml:"conversation_state_ttl"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		DecisionLogRetentionDays: 90,
		ConversationStateTTL:     24 * time.Hour,
		CleanupInterval:          1 * time.Hour,
	}
}
