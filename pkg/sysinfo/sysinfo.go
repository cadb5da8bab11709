// Package sysinfo tracks non-fatal, in-memory system warnings surfaced on
// the health endpoint: degraded integrations, an open LLM circuit breaker,
// a chat adapter that started failing. Warnings are transient and reset on
// restart, grounded on the teacher's pkg/services.SystemWarningsService.
package sysinfo

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Warning categories this deployment can raise.
const (
	CategoryLLMCircuit     = "llm_circuit_open"
	CategoryChatDelivery   = "chat_delivery_degraded"
	CategoryHandlerFailure = "handler_integration_failing"
)

// Warning is one active, non-fatal system condition.
type Warning struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	SourceID  string    `json:"source_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Service holds the current set of active warnings, keyed internally by id.
// Thread-safe.
type Service struct {
	mu       sync.RWMutex
	warnings map[string]*Warning
}

// New constructs an empty Service.
func New() *Service {
	return &Service{warnings: make(map[string]*Warning)}
}

// AddWarning adds a warning, replacing any existing one with the same
// category and sourceID, and returns the new warning's id.
func (s *Service) AddWarning(category, message, details, sourceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range s.warnings {
		if w.Category == category && w.SourceID == sourceID {
			delete(s.warnings, id)
			break
		}
	}

	id := uuid.New().String()
	s.warnings[id] = &Warning{
		ID:        id,
		Category:  category,
		Message:   message,
		Details:   details,
		SourceID:  sourceID,
		CreatedAt: time.Now(),
	}
	return id
}

// Warnings returns every active warning as a value copy.
func (s *Service) Warnings() []*Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Warning, 0, len(s.warnings))
	for _, w := range s.warnings {
		cp := *w
		out = append(out, &cp)
	}
	return out
}

// ClearBySource removes the warning matching category+sourceID, reporting
// whether one was found.
func (s *Service) ClearBySource(category, sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, w := range s.warnings {
		if w.Category == category && w.SourceID == sourceID {
			delete(s.warnings, id)
			return true
		}
	}
	return false
}
