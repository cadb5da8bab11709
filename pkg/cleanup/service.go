// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/store"
)

// Service periodically enforces retention policies:
//   - Deletes decision_log rows past config.RetentionConfig.DecisionLogRetentionDays
//     (append-only audit trail, deleted outright rather than soft-deleted)
//   - Deletes conversation_state rows past their expiry, as defense-in-depth
//     alongside the read-time lazy-expiry every State layer read performs
//
// Both sweeps are idempotent and cross-tenant, so it is safe to run from
// multiple pods without coordination.
type Service struct {
	config *config.RetentionConfig
	store  *store.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, st *store.Store) *Service {
	return &Service{config: cfg, store: st}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"decision_log_retention_days", s.config.DecisionLogRetentionDays,
		"conversation_state_ttl", s.config.ConversationStateTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeOldDecisionLogs(ctx)
	s.purgeExpiredConversationStates(ctx)
}

func (s *Service) purgeOldDecisionLogs(ctx context.Context) {
	retention := time.Duration(s.config.DecisionLogRetentionDays) * 24 * time.Hour
	count, err := s.store.PurgeOldDecisionLogs(context.WithoutCancel(ctx), retention)
	if err != nil {
		slog.Error("retention: decision log purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged decision logs", "count", count)
	}
}

func (s *Service) purgeExpiredConversationStates(ctx context.Context) {
	count, err := s.store.PurgeAllExpiredConversationStates(context.WithoutCancel(ctx))
	if err != nil {
		slog.Error("retention: conversation state purge failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged expired conversation states", "count", count)
	}
}
