package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// BrainYAMLConfig represents the complete brain.yaml file structure.
type BrainYAMLConfig struct {
	Chat         *ChatConfig                    `yaml:"chat"`
	RateLimit    *RateLimitConfig               `yaml:"rate_limit"`
	Guardrail    *GuardrailConfig               `yaml:"guardrail"`
	Announcement *AnnouncementConfig            `yaml:"announcement"`
	Ingest       *IngestConfig                  `yaml:"ingest"`
	Retention    *RetentionConfig               `yaml:"retention"`
	Capabilities map[string]CapabilityConfig    `yaml:"capabilities"`
	Defaults     *Defaults                      `yaml:"defaults"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file.
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined configurations
//  5. Build in-memory registries
//  6. Apply default values
//  7. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized successfully",
		"capabilities", stats.Capabilities,
		"llm_providers", stats.LLMProviders)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	brainYAML, err := loader.loadBrainYAML()
	if err != nil {
		return nil, &LoadError{File: "brain.yaml", Err: err}
	}

	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, &LoadError{File: "llm-providers.yaml", Err: err}
	}

	builtin := GetBuiltinConfig()

	capabilities := mergeCapabilities(builtin.Capabilities, brainYAML.Capabilities)
	llmProvidersMerged := mergeLLMProviders(builtin.LLMProviders, llmProviders)

	capabilityRegistry := NewCapabilityRegistry(capabilities)
	llmProviderRegistry := NewLLMProviderRegistry(llmProvidersMerged)

	defaults := brainYAML.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}

	chat := brainYAML.Chat
	if chat == nil {
		chat = &ChatConfig{Channel: ChatChannelSlack}
	}

	rateLimit := DefaultRateLimitConfig()
	if brainYAML.RateLimit != nil {
		if err := mergo.Merge(&rateLimit, *brainYAML.RateLimit, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge rate limit config: %w", err)
		}
	}

	guardrail := brainYAML.Guardrail
	if guardrail == nil {
		guardrail = &GuardrailConfig{PackageName: "brain.guardrail", QueryName: "data.brain.guardrail.allow"}
	}

	announcement := DefaultAnnouncementConfig()
	if brainYAML.Announcement != nil {
		if err := mergo.Merge(announcement, brainYAML.Announcement, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge announcement config: %w", err)
		}
	}

	ingest := DefaultIngestConfig()
	if brainYAML.Ingest != nil {
		if err := mergo.Merge(ingest, brainYAML.Ingest, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge ingest config: %w", err)
		}
	}

	retention := DefaultRetentionConfig()
	if brainYAML.Retention != nil {
		if err := mergo.Merge(retention, brainYAML.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	return &Config{
		configDir:    configDir,
		Defaults:     defaults,
		Capabilities: capabilityRegistry,
		LLMProviders: llmProviderRegistry,
		Chat:         chat,
		RateLimit:    rateLimit,
		Guardrail:    guardrail,
		Announcement: announcement,
		Ingest:       ingest,
		Retention:    retention,
	}, nil
}

func validateConfig(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadBrainYAML() (*BrainYAMLConfig, error) {
	cfg := &BrainYAMLConfig{
		Capabilities: make(map[string]CapabilityConfig),
	}
	if err := l.loadYAML("brain.yaml", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]LLMProviderConfig, error) {
	cfg := LLMProvidersYAMLConfig{LLMProviders: make(map[string]LLMProviderConfig)}
	if err := l.loadYAML("llm-providers.yaml", &cfg); err != nil {
		return nil, err
	}
	return cfg.LLMProviders, nil
}
