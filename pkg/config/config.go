package config

// Config is the umbrella configuration object encapsulating every registry
// and setting loaded at startup. This is the primary object returned by
// Initialize() and threaded through the pipeline layers.
type Config struct {
	configDir string

	Defaults            *Defaults
	Capabilities        *CapabilityRegistry
	LLMProviders        *LLMProviderRegistry
	Chat                *ChatConfig
	RateLimit           RateLimitConfig
	Guardrail           *GuardrailConfig
	Announcement        *AnnouncementConfig
	Ingest              *IngestConfig
	Retention           *RetentionConfig
}

// ConfigStats contains statistics about loaded configuration, surfaced on
// the health endpoint.
type ConfigStats struct {
	Capabilities int
	LLMProviders int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Capabilities: c.Capabilities.Len(),
		LLMProviders: c.LLMProviders.Len(),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetCapability retrieves a capability configuration by id.
func (c *Config) GetCapability(id string) (*CapabilityConfig, error) {
	return c.Capabilities.Get(id)
}

// GetLLMProvider retrieves an LLM provider configuration by name.
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviders.Get(name)
}
