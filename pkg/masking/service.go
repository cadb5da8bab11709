// Package masking scrubs PII and credential-shaped data out of handler
// results before they reach decision/audit logs or get echoed back to a
// room, and out of best-effort context the pipeline logs for debugging.
package masking

import (
	"log/slog"

	"github.com/codeready-toolchain/brain/pkg/config"
)

// LogMaskingConfig holds decision/audit-log payload masking settings.
type LogMaskingConfig struct {
	Enabled      bool
	PatternGroup string
}

// Service applies data masking to handler results and log payloads.
// Created once at application startup (singleton). Thread-safe and stateless
// aside from compiled patterns.
type Service struct {
	registry                 *config.CapabilityRegistry
	patterns                 map[string]*CompiledPattern // built-in + custom compiled patterns
	patternGroups            map[string][]string         // group name -> pattern names
	codeMaskers              map[string]Masker            // registered code-based maskers
	logMasking               LogMaskingConfig             // log payload masking settings
	capabilityCustomPatterns map[string][]string          // capabilityID -> custom pattern keys
}

// NewService creates a masking service with compiled patterns and registered maskers.
// All patterns are compiled eagerly at creation time. Invalid patterns are logged and skipped.
func NewService(registry *config.CapabilityRegistry, logCfg LogMaskingConfig) *Service {
	s := &Service{
		registry:                 registry,
		patterns:                 make(map[string]*CompiledPattern),
		patternGroups:            config.GetBuiltinConfig().PatternGroups,
		codeMaskers:              make(map[string]Masker),
		logMasking:               logCfg,
		capabilityCustomPatterns: make(map[string][]string),
	}

	s.compileBuiltinPatterns()
	s.compileCustomPatterns()
	s.registerMasker(&CredentialBlockMasker{})

	slog.Info("masking service initialized",
		"builtin_patterns", len(config.GetBuiltinConfig().MaskingPatterns),
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers),
		"log_masking_enabled", logCfg.Enabled)

	return s
}

// MaskHandlerResult applies capability-specific masking to a handler's
// result content before it is persisted or sent to a room.
// Returns masked content. On masking failure, returns a redaction notice
// (fail-closed) — a handler result the pipeline can't prove is safe never
// reaches a user or a log.
func (s *Service) MaskHandlerResult(content string, capabilityID string) string {
	if content == "" {
		return content
	}

	capCfg, err := s.registry.Get(capabilityID)
	if err != nil || capCfg.DataMasking == nil || !capCfg.DataMasking.Enabled {
		return content
	}

	resolved := s.resolvePatterns(capCfg.DataMasking, capabilityID)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return content
	}

	masked, err := s.applyMasking(content, resolved)
	if err != nil {
		slog.Error("masking failed, redacting content (fail-closed)",
			"capability", capabilityID, "error", err)
		return "[REDACTED: data masking failure — handler result could not be safely processed]"
	}

	return masked
}

// MaskLogContext applies masking to decision/audit-log context using the
// configured pattern group. Returns masked data. On masking failure,
// returns original data (fail-open — losing the audit trail is worse than
// an unmasked-but-internal-only log entry).
func (s *Service) MaskLogContext(data string) string {
	if !s.logMasking.Enabled || data == "" {
		return data
	}

	resolved := s.resolvePatternsFromGroup(s.logMasking.PatternGroup)
	if len(resolved.codeMaskerNames) == 0 && len(resolved.regexPatterns) == 0 {
		return data
	}

	masked, err := s.applyMasking(data, resolved)
	if err != nil {
		slog.Error("log masking failed, continuing with unmasked data (fail-open)", "error", err)
		return data
	}

	return masked
}

// applyMasking applies code-based maskers then regex patterns to content.
func (s *Service) applyMasking(content string, resolved *resolvedPatterns) (string, error) {
	masked := content

	for _, maskerName := range resolved.codeMaskerNames {
		masker, ok := s.codeMaskers[maskerName]
		if !ok {
			continue
		}
		if masker.AppliesTo(masked) {
			masked = masker.Mask(masked)
		}
	}

	for _, pattern := range resolved.regexPatterns {
		masked = pattern.Regex.ReplaceAllString(masked, pattern.Replacement)
	}

	return masked, nil
}

// registerMasker registers a code-based masker by its name.
func (s *Service) registerMasker(m Masker) {
	s.codeMaskers[m.Name()] = m
}
