package config

import "time"

// ChatConfig holds resolved outbound chat transport configuration.
type ChatConfig struct {
	Channel      ChatChannel `yaml:"channel"`
	TokenEnv     string      `yaml:"token_env"`     // env var holding the bot token
	DashboardURL string      `yaml:"dashboard_url"` // linked back from outbound messages
}

// RateLimitConfig bounds outbound chat throughput per tenant.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// DefaultRateLimitConfig returns conservative per-tenant outbound defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 1, Burst: 5}
}

// GuardrailConfig points at the compiled policy bundle the Decision layer's
// value-alignment check evaluates every plan against.
type GuardrailConfig struct {
	PolicyDir  string `yaml:"policy_dir"`
	PackageName string `yaml:"package_name"`
	QueryName  string `yaml:"query_name"`
}

// AnnouncementConfig controls Announcement State Machine defaults.
type AnnouncementConfig struct {
	RoomMatchThreshold float64       `yaml:"room_match_threshold"`
	SchedulerInterval  time.Duration `yaml:"scheduler_interval"`
}

// DefaultAnnouncementConfig returns the built-in announcement defaults. The
// 0.8 fuzzy room-match threshold is the default; tenants may override it
// (see DESIGN.md for the reasoning).
func DefaultAnnouncementConfig() *AnnouncementConfig {
	return &AnnouncementConfig{
		RoomMatchThreshold: 0.8,
		SchedulerInterval:  30 * time.Second,
	}
}
