// Package scheduler drives announcements that have passed their
// confirmation step and are waiting on a clock rather than a chat
// message: one-time sends at a fixed timestamp and cron-recurring sends,
// per spec §7. It polls for due announcements on its own interval,
// independent of any inbound webhook, and fires each one exactly once
// per execution number via pkg/announcement.Engine.Fire's idempotent log
// write. Shaped after pkg/cleanup.Service's Start/Stop/ticker loop,
// generalized from "sweep expired rows" to "fire due announcements
// across every tenant holding one".
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/brain/pkg/announcement"
	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/metrics"
	"github.com/codeready-toolchain/brain/pkg/store"
)

// dueBatchSize bounds how many announcements one tenant's poll pulls per tick.
const dueBatchSize = 50

// Scheduler polls for and fires due announcements.
type Scheduler struct {
	store        *store.Store
	announcement *announcement.Engine
	interval     time.Duration
	holidayCheck func(tenantID string, at time.Time) bool
}

// New constructs a Scheduler. holidayCheck may be nil, in which case no day
// is ever treated as a holiday (SkipHolidays then has no effect).
func New(st *store.Store, ann *announcement.Engine, cfg *config.AnnouncementConfig, holidayCheck func(tenantID string, at time.Time) bool) *Scheduler {
	interval := 30 * time.Second
	if cfg != nil && cfg.SchedulerInterval > 0 {
		interval = cfg.SchedulerInterval
	}
	if holidayCheck == nil {
		holidayCheck = func(string, time.Time) bool { return false }
	}
	return &Scheduler{store: st, announcement: ann, interval: interval, holidayCheck: holidayCheck}
}

// Run blocks, polling every s.interval until ctx is cancelled. Intended to
// be launched via pkg/bgtask.Tracker.Go, which supplies ctx and recovers a
// panic so one bad tick never takes the process down.
func (s *Scheduler) Run(ctx context.Context) error {
	s.pollAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.pollAll(ctx)
		}
	}
}

func (s *Scheduler) pollAll(ctx context.Context) {
	now := time.Now().UTC()
	tenantIDs, err := s.store.DueTenantIDs(ctx, now)
	if err != nil {
		slog.Error("scheduler: failed to list tenants with due announcements", "error", err)
		return
	}
	for _, tenantID := range tenantIDs {
		s.pollTenant(ctx, tenantID, now)
	}
}

func (s *Scheduler) pollTenant(ctx context.Context, tenantID string, now time.Time) {
	due, err := s.announcement.Due(ctx, tenantID, now, dueBatchSize)
	if err != nil {
		slog.Error("scheduler: failed to load due announcements", "tenant_id", tenantID, "error", err)
		return
	}
	for _, ann := range due {
		executionNumber := ann.ExecutionCount + 1
		isHoliday := s.holidayCheck(tenantID, now)
		log, err := s.announcement.Fire(ctx, ann, executionNumber, isHoliday)
		if err != nil {
			slog.Error("scheduler: fire failed", "tenant_id", tenantID, "announcement_id", ann.ID, "error", err)
			continue
		}
		if log != nil {
			metrics.RecordAnnouncementFired(log.SkipReason)
		}
	}
}
