package models

import "time"

// RoomAliasCache caches a fuzzy room-alias resolution so repeated
// announcements targeting the same human-typed alias (e.g. "eng standup
// room") don't re-run the levenshtein sweep against every known room on
// every fire. Backed by the announcement_patterns table.
type RoomAliasCache struct {
	TenantID   string
	RoomAlias  string
	RoomID     string
	Similarity float64
}

// AnnouncementPatternStatus is the closed set of states a recurring-request
// pattern can be in.
type AnnouncementPatternStatus string

const (
	PatternActive    AnnouncementPatternStatus = "active"
	PatternAddressed AnnouncementPatternStatus = "addressed"
	PatternDismissed AnnouncementPatternStatus = "dismissed"
)

// AnnouncementPattern tracks how many times a normalized announcement
// request has recurred for a tenant. Once OccurrenceCount reaches 3 the
// Brain raises an insight proposing a recurring schedule; accepting it
// transitions the pattern to "addressed". Backed by the
// announcement_patterns_occurrences table.
type AnnouncementPattern struct {
	TenantID        string
	RequestHash     string
	NormalizedText  string
	OccurrenceCount int64
	RequesterIDs    []string
	Status          AnnouncementPatternStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RecurrenceProposalThreshold is the occurrence count at which the Brain
// raises a recurrence proposal insight.
const RecurrenceProposalThreshold = 3
