package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/codeready-toolchain/brain/pkg/models"
)

const announcementColumns = `id, tenant_id, title, body, target_room_id, create_tasks, task_include, task_exclude,
	schedule_type, scheduled_at, cron_expression, timezone, skip_weekends, skip_holidays, status,
	requester_account_id, source_room_id, confirmation_message_id, next_execution_at, last_execution_at,
	execution_count, max_executions, created_at, updated_at`

func scanAnnouncement(row interface{ Scan(...any) error }) (models.Announcement, error) {
	var a models.Announcement
	var targetRoomID sql.NullString
	var cronExpr sql.NullString
	var maxExecutions sql.NullInt64
	err := row.Scan(&a.ID, &a.TenantID, &a.Title, &a.MessageBody, &targetRoomID, &a.CreateTasks,
		pq.Array(&a.TaskInclude), pq.Array(&a.TaskExclude), &a.ScheduleType, &a.ScheduledAt, &cronExpr,
		&a.Timezone, &a.SkipWeekends, &a.SkipHolidays, &a.Status, &a.RequesterAccountID, &a.SourceRoomID,
		&a.ConfirmationMessageID, &a.NextExecutionAt, &a.LastExecutionAt, &a.ExecutionCount, &maxExecutions,
		&a.CreatedAt, &a.UpdatedAt)
	if targetRoomID.Valid {
		a.TargetRoomID = targetRoomID.String
	}
	if cronExpr.Valid {
		a.CronExpression = cronExpr.String
	}
	if maxExecutions.Valid {
		a.MaxExecutions = &maxExecutions.Int64
	}
	return a, err
}

// CreateAnnouncement records a newly captured announcement request, before
// room resolution or confirmation.
func (s *Store) CreateAnnouncement(ctx context.Context, req models.CreateAnnouncementRequest) (*models.Announcement, error) {
	status := req.Status
	if status == "" {
		status = models.AnnouncementPending
	}
	scheduleType := req.ScheduleType
	if scheduleType == "" {
		scheduleType = models.ScheduleImmediate
	}
	tz := req.Timezone
	if tz == "" {
		tz = models.DefaultTimezone
	}

	var a models.Announcement
	err := execTx(ctx, s.db, req.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO announcements (tenant_id, title, body, target_room_id, create_tasks, task_include, task_exclude,
				schedule_type, scheduled_at, cron_expression, timezone, skip_weekends, skip_holidays, status,
				requester_account_id, source_room_id, confirmation_message_id)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14, $15, $16, $17)
			RETURNING `+announcementColumns,
			req.TenantID, req.Title, req.MessageBody, req.TargetRoomID, req.CreateTasks,
			pq.Array(req.TaskInclude), pq.Array(req.TaskExclude), scheduleType, req.ScheduledAt,
			req.CronExpression, tz, req.SkipWeekends, req.SkipHolidays, status,
			req.RequesterAccountID, req.SourceRoomID, req.ConfirmationMessageID,
		)
		var err error
		a, err = scanAnnouncement(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAnnouncement looks up one announcement by id.
func (s *Store) GetAnnouncement(ctx context.Context, tenantID, id string) (*models.Announcement, error) {
	var a models.Announcement
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		var err error
		a, err = scanAnnouncement(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// PendingAnnouncementForRequester returns the requester's most recent
// non-terminal announcement, if any, so a fresh request can auto-cancel a
// still-pending one older than itself per spec §4.7.
func (s *Store) PendingAnnouncementForRequester(ctx context.Context, tenantID, requesterAccountID string) (*models.Announcement, error) {
	var a models.Announcement
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+announcementColumns+` FROM announcements
			WHERE tenant_id = $1 AND requester_account_id = $2
				AND status IN ($3, $4, $5)
			ORDER BY created_at DESC LIMIT 1`,
			tenantID, requesterAccountID,
			models.AnnouncementPending, models.AnnouncementPendingRoom, models.AnnouncementConfirmed,
		)
		var err error
		a, err = scanAnnouncement(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAnnouncementBody replaces the message text of a pending
// announcement, used by the targeted LLM rewrite step of the confirmation
// loop.
func (s *Store) UpdateAnnouncementBody(ctx context.Context, tenantID, id, body string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE announcements SET body = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
			body, tenantID, id,
		)
		return err
	})
}

// UpdateAnnouncementTasks replaces the task include/exclude lists of a
// pending announcement, used when the requester adds or removes assignees
// during the confirmation loop.
func (s *Store) UpdateAnnouncementTasks(ctx context.Context, tenantID, id string, include, exclude []string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE announcements SET task_include = $1, task_exclude = $2, updated_at = now()
			WHERE tenant_id = $3 AND id = $4`,
			pq.Array(include), pq.Array(exclude), tenantID, id,
		)
		return err
	})
}

// SetTargetRoom resolves the room a pending announcement targets, moving
// it out of pending_room.
func (s *Store) SetTargetRoom(ctx context.Context, tenantID, id, roomID string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE announcements SET target_room_id = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
			roomID, tenantID, id,
		)
		return err
	})
}

// UpdateAnnouncementStatus transitions an announcement to a new lifecycle
// status.
func (s *Store) UpdateAnnouncementStatus(ctx context.Context, tenantID, id string, status models.AnnouncementStatus) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE announcements SET status = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
			status, tenantID, id,
		)
		return err
	})
}

// ScheduleAnnouncement sets an announcement's next fire time after
// confirmation, moving it to scheduled.
func (s *Store) ScheduleAnnouncement(ctx context.Context, tenantID, id string, nextExecutionAt time.Time, cronExpr string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE announcements
			SET status = $1, next_execution_at = $2, cron_expression = NULLIF($3, ''), updated_at = now()
			WHERE tenant_id = $4 AND id = $5`,
			models.AnnouncementScheduled, nextExecutionAt, cronExpr, tenantID, id,
		)
		return err
	})
}

// RecordExecution advances execution bookkeeping after one fire, computing
// the next fire time the caller has already derived from the cron
// expression (nil for one-shot announcements, which terminate here).
func (s *Store) RecordExecution(ctx context.Context, tenantID, id string, executedAt time.Time, nextExecutionAt *time.Time) error {
	status := models.AnnouncementCompleted
	if nextExecutionAt != nil {
		status = models.AnnouncementScheduled
	}
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE announcements
			SET last_execution_at = $1, next_execution_at = $2, execution_count = execution_count + 1,
				status = $3, updated_at = now()
			WHERE tenant_id = $4 AND id = $5`,
			executedAt, nextExecutionAt, status, tenantID, id,
		)
		return err
	})
}

// DueAnnouncements returns scheduled announcements whose next_execution_at
// has passed, for the scheduler loop to pick up.
func (s *Store) DueAnnouncements(ctx context.Context, tenantID string, asOf time.Time, limit int) ([]models.Announcement, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Announcement
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+announcementColumns+`
			FROM announcements
			WHERE tenant_id = $1 AND status = $2 AND next_execution_at <= $3
			ORDER BY next_execution_at ASC LIMIT $4`,
			tenantID, models.AnnouncementScheduled, asOf, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAnnouncement(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DueTenantIDs returns the distinct tenants with at least one scheduled
// announcement due at or before asOf. There is no normalized tenants
// table in this schema — tenant_id is a free-form column enforced by
// row-level security — so the scheduler discovers its tenant set from
// the table it actually needs to sweep, run directly against the pool
// rather than WithTenant for the same reason
// PurgeAllExpiredConversationStates does.
func (s *Store) DueTenantIDs(ctx context.Context, asOf time.Time) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT DISTINCT tenant_id FROM announcements
		WHERE status = $1 AND next_execution_at <= $2`,
		models.AnnouncementScheduled, asOf,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, err
		}
		out = append(out, tenantID)
	}
	return out, rows.Err()
}

const announcementLogColumns = `id, tenant_id, announcement_id, execution_number, room_id, sent, sent_message_id,
	task_creation_outcome, members_snapshot, status, skip_reason, delivered_at, error`

// CreateAnnouncementLog records one execution attempt; the unique
// (tenant_id, announcement_id, execution_number, room_id) index makes a
// retried fire after a crash idempotent rather than a duplicate delivery.
func (s *Store) CreateAnnouncementLog(ctx context.Context, req models.CreateAnnouncementLogRequest) (*models.AnnouncementLog, error) {
	snapshot, err := marshalJSON(req.MembersSnapshot)
	if err != nil {
		return nil, err
	}
	var l models.AnnouncementLog
	var snapshotOut []byte
	var deliveredAt sql.NullTime
	var errText sql.NullString
	err = execTx(ctx, s.db, req.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		var dat *time.Time
		if req.Sent {
			now := time.Now()
			dat = &now
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO announcement_logs (tenant_id, announcement_id, execution_number, room_id, sent, sent_message_id,
				task_creation_outcome, members_snapshot, status, skip_reason, delivered_at, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''))
			ON CONFLICT (tenant_id, announcement_id, execution_number, room_id) DO NOTHING
			RETURNING `+announcementLogColumns,
			req.TenantID, req.AnnouncementID, req.ExecutionNumber, req.RoomID, req.Sent, req.SentMessageID,
			req.TaskCreationOutcome, snapshot, req.Status, req.SkipReason, dat, req.Error,
		)
		return row.Scan(&l.ID, &l.TenantID, &l.AnnouncementID, &l.ExecutionNumber, &l.RoomID, &l.Sent,
			&l.SentMessageID, &l.TaskCreationOutcome, &snapshotOut, &l.Status, &l.SkipReason, &deliveredAt, &errText)
	})
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict on the idempotency key: a prior attempt already logged
		// this fire. Not an error — the caller should treat the fire as
		// already handled.
		return nil, ErrAlreadyProcessed
	}
	if err != nil {
		return nil, err
	}
	if deliveredAt.Valid {
		l.DeliveredAt = &deliveredAt.Time
	}
	if errText.Valid {
		l.Error = errText.String
	}
	if err := unmarshalJSON(snapshotOut, &l.MembersSnapshot); err != nil {
		return nil, err
	}
	return &l, nil
}

// ErrAlreadyProcessed signals a duplicate idempotency key was rejected by
// a unique index, distinguishing "already handled" from a real failure.
var ErrAlreadyProcessed = errors.New("store: already processed")

// CacheRoomAlias records a fuzzy room-alias resolution so repeated
// announcements to the same human-typed alias skip the levenshtein sweep.
func (s *Store) CacheRoomAlias(ctx context.Context, tenantID, alias, roomID string, similarity float64) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO announcement_patterns (tenant_id, room_alias, room_id, similarity)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, room_alias) DO UPDATE SET room_id = $3, similarity = $4`,
			tenantID, alias, roomID, similarity,
		)
		return err
	})
}

// CachedRoomAlias returns a previously cached alias resolution, if any.
func (s *Store) CachedRoomAlias(ctx context.Context, tenantID, alias string) (*models.RoomAliasCache, error) {
	var c models.RoomAliasCache
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT tenant_id, room_alias, room_id, similarity FROM announcement_patterns
			WHERE tenant_id = $1 AND room_alias = $2`,
			tenantID, alias,
		)
		return row.Scan(&c.TenantID, &c.RoomAlias, &c.RoomID, &c.Similarity)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// RecordAnnouncementOccurrence upserts the (tenant, request_hash) pattern
// row, bumping OccurrenceCount so >=3 recurrences can trigger a recurrence
// proposal insight.
func (s *Store) RecordAnnouncementOccurrence(ctx context.Context, tenantID, requestHash, normalizedText, requesterID string) (*models.AnnouncementPattern, error) {
	var p models.AnnouncementPattern
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO announcement_patterns_occurrences (tenant_id, request_hash, normalized_text, occurrence_count, requester_ids)
			VALUES ($1, $2, $3, 1, ARRAY[$4]::text[])
			ON CONFLICT (tenant_id, request_hash) DO UPDATE
				SET occurrence_count = announcement_patterns_occurrences.occurrence_count + 1,
					requester_ids = array_append(announcement_patterns_occurrences.requester_ids, $4),
					updated_at = now()
			RETURNING tenant_id, request_hash, normalized_text, occurrence_count, requester_ids, status, created_at, updated_at`,
			tenantID, requestHash, normalizedText, requesterID,
		)
		return row.Scan(&p.TenantID, &p.RequestHash, &p.NormalizedText, &p.OccurrenceCount,
			pq.Array(&p.RequesterIDs), &p.Status, &p.CreatedAt, &p.UpdatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPatternAddressed transitions a recurrence pattern once its proposal
// has been accepted and scheduled.
func (s *Store) MarkPatternAddressed(ctx context.Context, tenantID, requestHash string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE announcement_patterns_occurrences SET status = $1, updated_at = now()
			WHERE tenant_id = $2 AND request_hash = $3`,
			models.PatternAddressed, tenantID, requestHash,
		)
		return err
	})
}

// MarkPatternDismissed transitions a recurrence pattern once its proposal
// has been declined, so the same normalized request can still re-propose
// later if it keeps recurring.
func (s *Store) MarkPatternDismissed(ctx context.Context, tenantID, requestHash string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE announcement_patterns_occurrences SET status = $1, updated_at = now()
			WHERE tenant_id = $2 AND request_hash = $3`,
			models.PatternDismissed, tenantID, requestHash,
		)
		return err
	})
}

// RoomMembers returns the member user ids of a room, used both to deliver
// an announcement and to create its optional per-member tasks.
func (s *Store) RoomMembers(ctx context.Context, tenantID, roomID string) ([]Person, error) {
	var out []Person
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT p.id, p.name, p.role_title FROM persons p
			JOIN room_memberships rm ON rm.person_id = p.id
			WHERE p.tenant_id = $1 AND rm.room_id = $2`,
			tenantID, roomID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p Person
			if err := rows.Scan(&p.ID, &p.Name, &p.RoleTitle); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
