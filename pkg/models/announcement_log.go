package models

import "time"

// AnnouncementLogStatus is the outcome of one announcement execution.
type AnnouncementLogStatus string

const (
	LogPending        AnnouncementLogStatus = "pending"
	LogInProgress     AnnouncementLogStatus = "in_progress"
	LogCompleted      AnnouncementLogStatus = "completed"
	LogPartialFailure AnnouncementLogStatus = "partial_failure"
	LogFailed         AnnouncementLogStatus = "failed"
	LogSkipped        AnnouncementLogStatus = "skipped"
)

// RoomMemberSnapshot is one room member captured at execution time, so a
// later audit of who tasks were assigned to doesn't depend on room
// membership that may since have changed.
type RoomMemberSnapshot struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// AnnouncementLog records one execution of one announcement to its
// resolved room. The (tenant_id, announcement_id, execution_number,
// room_id) tuple is unique, so retrying a fire after a crash is idempotent:
// inserting the same tuple twice is rejected rather than double-delivering.
type AnnouncementLog struct {
	ID                  string
	TenantID            string
	AnnouncementID      string
	ExecutionNumber     int64
	RoomID              string
	Sent                bool
	SentMessageID       string
	TaskCreationOutcome string
	MembersSnapshot     []RoomMemberSnapshot
	Status              AnnouncementLogStatus
	SkipReason          string
	DeliveredAt         *time.Time
	Error               string
}

// CreateAnnouncementLogRequest contains the fields needed to record one
// execution attempt.
type CreateAnnouncementLogRequest struct {
	TenantID            string
	AnnouncementID      string
	ExecutionNumber     int64
	RoomID              string
	Sent                bool
	SentMessageID       string
	TaskCreationOutcome string
	MembersSnapshot     []RoomMemberSnapshot
	Status              AnnouncementLogStatus
	SkipReason          string
	Error               string
}
