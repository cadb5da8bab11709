// Package announcement implements the Announcement State Machine
// (spec §4.7), jointly owned by the State and Execution layers: request
// capture, fuzzy room resolution, the confirm/edit/cancel loop, scheduling
// (one-shot or cron-recurring with weekend/holiday skipping), firing, and
// the occurrence-count recurrence proposal. Grounded on pkg/state's
// continuation-dispatch shape (the reply loop is registered as a
// models.StateAnnouncement continuation) and pkg/store's announcement
// persistence. Room fuzzy-matching uses agnivade/levenshtein, per spec's
// "normalized-string similarity, threshold 0.8"; recurring next-fire
// computation uses robfig/cron/v3, the same scheduling library
// pkg/config's retention/cleanup loop timers are shaped after.
package announcement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/robfig/cron/v3"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/llm"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/state"
	"github.com/codeready-toolchain/brain/pkg/store"
)

// ChatSender is the outbound contract this engine needs to deliver a fired
// announcement; satisfied by pkg/slack.ChatAdapter.
type ChatSender interface {
	SendMessage(ctx context.Context, tenantID, roomID, text string) (messageID string, err error)
}

// Request captures the fields the announcement_request handler extracted
// from the inbound message, before room resolution.
type Request struct {
	TenantID           string
	RequesterAccountID string
	SourceRoomID       string
	RoomAlias          string
	MessageBody        string
	CreateTasks        bool
	TaskInclude        []string
	TaskExclude        []string
	ScheduleType       models.AnnouncementScheduleType
	ScheduledAt        *time.Time
	CronExpression     string
	Timezone           string
	SkipWeekends       bool
	SkipHolidays       bool
	RequestedAt        time.Time
}

// RoomCandidate is one scored room match surfaced when no candidate
// clears the auto-pick threshold.
type RoomCandidate struct {
	RoomID     string
	Name       string
	Similarity float64
}

// Engine owns capture, confirmation, scheduling, and firing of
// announcements for one process.
type Engine struct {
	store *store.Store
	chat  ChatSender
	llm   llm.Client
	cfg   *config.AnnouncementConfig
}

// New constructs an Engine.
func New(st *store.Store, chat ChatSender, llmClient llm.Client, cfg *config.AnnouncementConfig) *Engine {
	if cfg == nil {
		cfg = config.DefaultAnnouncementConfig()
	}
	return &Engine{store: st, chat: chat, llm: llmClient, cfg: cfg}
}

// Capture records a new announcement request: it auto-cancels any older
// still-pending request from the same requester (spec §4.7's "new request
// auto-cancels" rule), resolves the target room by fuzzy match against the
// tenant's room directory, and records a pattern occurrence for the
// recurrence-proposal insight. Returns the created row and whether it
// still needs room disambiguation.
func (e *Engine) Capture(ctx context.Context, req Request) (ann *models.Announcement, needsRoom bool, err error) {
	if err := e.cancelStalePending(ctx, req); err != nil {
		return nil, false, err
	}

	roomID, matched, err := e.ResolveRoom(ctx, req.TenantID, req.RoomAlias)
	if err != nil {
		return nil, false, fmt.Errorf("announcement: resolve room: %w", err)
	}

	status := models.AnnouncementPending
	if !matched {
		status = models.AnnouncementPendingRoom
	}

	tz := req.Timezone
	if tz == "" {
		tz = models.DefaultTimezone
	}

	ann, err = e.store.CreateAnnouncement(ctx, models.CreateAnnouncementRequest{
		TenantID:           req.TenantID,
		Title:              titleFromBody(req.MessageBody),
		MessageBody:        req.MessageBody,
		TargetRoomID:       roomID,
		CreateTasks:        req.CreateTasks,
		TaskInclude:        req.TaskInclude,
		TaskExclude:        req.TaskExclude,
		ScheduleType:       req.ScheduleType,
		ScheduledAt:        req.ScheduledAt,
		CronExpression:     req.CronExpression,
		Timezone:           tz,
		SkipWeekends:       req.SkipWeekends,
		SkipHolidays:       req.SkipHolidays,
		Status:             status,
		RequesterAccountID: req.RequesterAccountID,
		SourceRoomID:       req.SourceRoomID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("announcement: capture: %w", err)
	}

	// Pattern bookkeeping never blocks the confirmation flow it feeds.
	_ = e.recordOccurrence(ctx, req.TenantID, req.MessageBody, req.RequesterAccountID)

	return ann, !matched, nil
}

// cancelStalePending implements "a new announcement request from the same
// user auto-cancels any still-pending one older than the request's
// timestamp."
func (e *Engine) cancelStalePending(ctx context.Context, req Request) error {
	prior, err := e.store.PendingAnnouncementForRequester(ctx, req.TenantID, req.RequesterAccountID)
	if err == store.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("announcement: lookup pending: %w", err)
	}
	if !req.RequestedAt.IsZero() && !prior.CreatedAt.Before(req.RequestedAt) {
		return nil
	}
	return e.store.UpdateAnnouncementStatus(ctx, req.TenantID, prior.ID, models.AnnouncementCancelled)
}

// ResolveRoom fuzzy-matches alias against the tenant's room directory.
// A cached prior resolution is consulted first. The best-scoring
// candidate is auto-picked when its similarity clears the configured
// threshold (default 0.8); otherwise ResolveRoom returns matched=false and
// the caller must present RoomCandidates for disambiguation.
func (e *Engine) ResolveRoom(ctx context.Context, tenantID, alias string) (roomID string, matched bool, err error) {
	if alias == "" {
		return "", false, nil
	}
	if cached, err := e.store.CachedRoomAlias(ctx, tenantID, normalize(alias)); err == nil {
		return cached.RoomID, true, nil
	}

	candidates, err := e.RoomCandidates(ctx, tenantID, alias)
	if err != nil {
		return "", false, err
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	best := candidates[0]
	if best.Similarity < e.cfg.RoomMatchThreshold {
		return "", false, nil
	}
	_ = e.store.CacheRoomAlias(ctx, tenantID, normalize(alias), best.RoomID, best.Similarity)
	return best.RoomID, true, nil
}

// RoomCandidates scores every room in the tenant's directory against
// alias, best match first, for confirmation-prompt disambiguation.
func (e *Engine) RoomCandidates(ctx context.Context, tenantID, alias string) ([]RoomCandidate, error) {
	rooms, err := e.store.RoomsLike(ctx, tenantID, alias, 50)
	if err != nil {
		return nil, err
	}
	normAlias := normalize(alias)
	out := make([]RoomCandidate, 0, len(rooms))
	for _, r := range rooms {
		sim := similarity(normAlias, normalize(r.Name))
		out = append(out, RoomCandidate{RoomID: r.ID, Name: r.Name, Similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > 3 {
		out = out[:3]
	}
	return out, nil
}

// similarity returns a normalized [0,1] score from 1 - (edit distance /
// longer string length), per spec's "normalized-string similarity".
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longer)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(s), " "))
}

func titleFromBody(body string) string {
	t := normalize(body)
	if len(t) > 80 {
		t = t[:80]
	}
	return t
}

// SetRoom resolves a pending_room announcement's target once the user
// (or operator) has disambiguated it.
func (e *Engine) SetRoom(ctx context.Context, tenantID, id, roomID string) error {
	if err := e.store.SetTargetRoom(ctx, tenantID, id, roomID); err != nil {
		return err
	}
	return e.store.UpdateAnnouncementStatus(ctx, tenantID, id, models.AnnouncementPending)
}

// RewriteMessage asks the LLM to restate body in the organization's brand
// voice — the targeted rewrite step of the confirmation loop (spec
// §4.7(c)). Falls back to the original text on any LLM failure: a failed
// rewrite must never block the announcement itself.
func (e *Engine) RewriteMessage(ctx context.Context, body string) string {
	if e.llm == nil {
		return body
	}
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: 0.3,
		MaxTokens:   400,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Rewrite the following announcement in a clear, warm, on-brand voice. Keep it short. Return only the rewritten text."},
			{Role: llm.RoleUser, Content: body},
		},
	})
	if err != nil || resp.Content == "" {
		return body
	}
	return resp.Content
}

// EditAssignees replaces the task include/exclude lists of a pending
// announcement.
func (e *Engine) EditAssignees(ctx context.Context, tenantID, id string, include, exclude []string) error {
	return e.store.UpdateAnnouncementTasks(ctx, tenantID, id, include, exclude)
}

// Cancel transitions an announcement to cancelled from any non-terminal
// status.
func (e *Engine) Cancel(ctx context.Context, tenantID, id string) error {
	return e.store.UpdateAnnouncementStatus(ctx, tenantID, id, models.AnnouncementCancelled)
}

// Confirm moves a fully-resolved announcement from confirmed into
// scheduled (or immediate execution), computing its first fire time.
func (e *Engine) Confirm(ctx context.Context, tenantID string, ann *models.Announcement) (nextAt time.Time, err error) {
	if err := e.store.UpdateAnnouncementStatus(ctx, tenantID, ann.ID, models.AnnouncementConfirmed); err != nil {
		return time.Time{}, err
	}

	switch ann.ScheduleType {
	case models.ScheduleImmediate:
		nextAt = time.Now()
	case models.ScheduleOneTime:
		if ann.ScheduledAt == nil {
			return time.Time{}, fmt.Errorf("announcement: one_time schedule missing scheduled_at")
		}
		nextAt = *ann.ScheduledAt
	case models.ScheduleRecurring:
		nextAt, err = NextFireTime(ann.CronExpression, ann.Timezone, time.Now())
		if err != nil {
			return time.Time{}, fmt.Errorf("announcement: parse cron: %w", err)
		}
	default:
		return time.Time{}, fmt.Errorf("announcement: unknown schedule type %q", ann.ScheduleType)
	}

	if err := e.store.ScheduleAnnouncement(ctx, tenantID, ann.ID, nextAt, ann.CronExpression); err != nil {
		return time.Time{}, err
	}
	return nextAt, nil
}

// NextFireTime parses a standard 5-field cron expression in the given
// timezone and returns its next firing after asOf.
func NextFireTime(cronExpr, tz string, asOf time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(asOf.In(loc)), nil
}

// Due returns every announcement past its next_execution_at for tenantID,
// for the scheduler loop to fire.
func (e *Engine) Due(ctx context.Context, tenantID string, asOf time.Time, limit int) ([]models.Announcement, error) {
	return e.store.DueAnnouncements(ctx, tenantID, asOf, limit)
}

// Fire executes one announcement delivery: skip-weekend/holiday check,
// message send, optional per-member task creation, and an idempotent
// AnnouncementLog write keyed by execution number so an at-least-once
// redelivery of the same fire never sends twice (spec §8's "same
// (announcement_id, execution_number) twice produces exactly one sent
// message" invariant).
func (e *Engine) Fire(ctx context.Context, ann models.Announcement, executionNumber int64, isHoliday bool) (*models.AnnouncementLog, error) {
	loc, err := time.LoadLocation(ann.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)

	if skipReason := e.skipReason(ann, now, isHoliday); skipReason != "" {
		log, err := e.store.CreateAnnouncementLog(ctx, models.CreateAnnouncementLogRequest{
			TenantID: ann.TenantID, AnnouncementID: ann.ID, ExecutionNumber: executionNumber,
			RoomID: ann.TargetRoomID, Status: models.LogSkipped, SkipReason: skipReason,
		})
		if err != nil && err != store.ErrAlreadyProcessed {
			return nil, err
		}
		e.advance(ctx, ann)
		return log, nil
	}

	members, err := e.store.RoomMembers(ctx, ann.TenantID, ann.TargetRoomID)
	if err != nil {
		return nil, fmt.Errorf("announcement: fetch room members: %w", err)
	}

	messageID, sendErr := e.chat.SendMessage(ctx, ann.TenantID, ann.TargetRoomID, ann.MessageBody)

	taskOutcome := "skipped"
	if ann.CreateTasks && sendErr == nil {
		taskOutcome = e.createMemberTasks(ctx, ann, members)
	}

	snapshot := make([]models.RoomMemberSnapshot, 0, len(members))
	for _, m := range members {
		snapshot = append(snapshot, models.RoomMemberSnapshot{UserID: m.ID, DisplayName: m.Name})
	}

	status := models.LogCompleted
	errText := ""
	if sendErr != nil {
		status = models.LogFailed
		errText = "send failed"
	}

	log, err := e.store.CreateAnnouncementLog(ctx, models.CreateAnnouncementLogRequest{
		TenantID: ann.TenantID, AnnouncementID: ann.ID, ExecutionNumber: executionNumber,
		RoomID: ann.TargetRoomID, Sent: sendErr == nil, SentMessageID: messageID,
		TaskCreationOutcome: taskOutcome, MembersSnapshot: snapshot, Status: status, Error: errText,
	})
	if err != nil && err != store.ErrAlreadyProcessed {
		return nil, err
	}
	e.advance(ctx, ann)
	return log, nil
}

func (e *Engine) advance(ctx context.Context, ann models.Announcement) {
	now := time.Now()
	var next *time.Time
	if ann.ScheduleType == models.ScheduleRecurring {
		if n, err := NextFireTime(ann.CronExpression, ann.Timezone, now); err == nil {
			next = &n
		}
	}
	_ = e.store.RecordExecution(ctx, ann.TenantID, ann.ID, now, next)
}

func (e *Engine) skipReason(ann models.Announcement, now time.Time, isHoliday bool) string {
	if ann.SkipWeekends && (now.Weekday() == time.Saturday || now.Weekday() == time.Sunday) {
		return "weekend"
	}
	if ann.SkipHolidays && isHoliday {
		return "holiday"
	}
	return ""
}

func (e *Engine) createMemberTasks(ctx context.Context, ann models.Announcement, members []store.Person) string {
	exclude := toSet(ann.TaskExclude)
	assignees := make([]string, 0, len(members)+len(ann.TaskInclude))
	for _, m := range members {
		if !exclude[m.ID] {
			assignees = append(assignees, m.ID)
		}
	}
	for _, id := range ann.TaskInclude {
		if !exclude[id] {
			assignees = append(assignees, id)
		}
	}
	created, failed := 0, 0
	for _, id := range dedup(assignees) {
		if _, err := e.store.CreateTask(ctx, ann.TenantID, ann.TargetRoomID, id, ann.Title, nil); err != nil {
			failed++
			continue
		}
		created++
	}
	return fmt.Sprintf("created=%d failed=%d", created, failed)
}

func toSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		out[s] = true
	}
	return out
}

func dedup(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// recordOccurrence upserts the normalized-request pattern row and, once it
// crosses RecurrenceProposalThreshold, raises a recurrence-proposal
// insight (spec §4.7's pattern-detection paragraph).
func (e *Engine) recordOccurrence(ctx context.Context, tenantID, body, requesterID string) error {
	norm := normalize(body)
	hash := requestHash(norm)
	pattern, err := e.store.RecordAnnouncementOccurrence(ctx, tenantID, hash, norm, requesterID)
	if err != nil {
		return err
	}
	if pattern.Status == models.PatternActive && pattern.OccurrenceCount >= models.RecurrenceProposalThreshold {
		summary := fmt.Sprintf("This announcement has recurred %d times — want me to schedule it automatically?", pattern.OccurrenceCount)
		_, _ = e.store.CreateInsight(ctx, tenantID, "recurrence_proposal", summary, "high")
	}
	return nil
}

func requestHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// AcceptRecurrenceProposal transitions a recurred request pattern from a
// proposed insight into an addressed, scheduled recurring announcement.
func (e *Engine) AcceptRecurrenceProposal(ctx context.Context, req Request) (*models.Announcement, error) {
	ann, needsRoom, err := e.Capture(ctx, req)
	if err != nil {
		return nil, err
	}
	if needsRoom {
		return ann, nil
	}
	if _, err := e.Confirm(ctx, req.TenantID, ann); err != nil {
		return nil, err
	}
	return e.store.GetAnnouncement(ctx, req.TenantID, ann.ID)
}

// DismissRecurrenceProposal marks a pattern as dismissed without scheduling
// anything, used when the proposal is declined.
func (e *Engine) DismissRecurrenceProposal(ctx context.Context, tenantID, requestHash string) error {
	return e.store.MarkPatternDismissed(ctx, tenantID, requestHash)
}

// ConfirmationPrompt builds the natural-language confirmation question and
// up to 3 concrete options for a resolved (or disambiguation-pending)
// announcement, per spec §4.5's confirmation-request shape.
func ConfirmationPrompt(ann *models.Announcement, roomName string, candidates []RoomCandidate) (question string, options []string) {
	if ann.Status == models.AnnouncementPendingRoom {
		opts := make([]string, 0, len(candidates))
		for _, c := range candidates {
			opts = append(opts, c.Name)
		}
		return "I found more than one room that could match — which one did you mean?", opts
	}
	q := fmt.Sprintf("I'll send %q to %s", ann.Title, roomName)
	if ann.CreateTasks {
		q += " and create a task for everyone there"
	}
	q += ". Go ahead?"
	return q, []string{"yes", "no", "let me edit it"}
}

// Continuation returns the state-layer continuation that handles the next
// message while a (tenant, room, user) is parked in models.StateAnnouncement,
// registered with state.Manager.Register.
func (e *Engine) Continuation() state.ContinuationFunc {
	return func(ctx context.Context, st models.ConversationState, msg state.Input) (state.ContinuationResult, error) {
		annID, _ := st.Data["announcement_id"].(string)
		if annID == "" {
			return state.ContinuationResult{Reply: "I lost track of that announcement — let's start over.", NewState: ptr(models.Normal(msg.TenantID, msg.RoomID, msg.UserID))}, nil
		}
		ann, err := e.store.GetAnnouncement(ctx, msg.TenantID, annID)
		if err != nil {
			return state.ContinuationResult{}, err
		}

		text := strings.ToLower(strings.TrimSpace(msg.Text))
		switch {
		case ann.Status == models.AnnouncementPendingRoom:
			return e.handleRoomChoice(ctx, *ann, msg)
		case isAffirmative(text):
			if _, err := e.Confirm(ctx, msg.TenantID, ann); err != nil {
				return state.ContinuationResult{}, err
			}
			return state.ContinuationResult{Reply: "Scheduled.", NewState: ptr(models.Normal(msg.TenantID, msg.RoomID, msg.UserID))}, nil
		case isNegative(text):
			if err := e.Cancel(ctx, msg.TenantID, ann.ID); err != nil {
				return state.ContinuationResult{}, err
			}
			return state.ContinuationResult{Reply: "Okay, cancelled.", NewState: ptr(models.Normal(msg.TenantID, msg.RoomID, msg.UserID))}, nil
		default:
			rewritten := e.RewriteMessage(ctx, msg.Text)
			if err := e.store.UpdateAnnouncementBody(ctx, msg.TenantID, ann.ID, rewritten); err != nil {
				return state.ContinuationResult{}, err
			}
			return state.ContinuationResult{Reply: fmt.Sprintf("Updated — here's the new text: %q. Still good to send?", rewritten)}, nil
		}
	}
}

func (e *Engine) handleRoomChoice(ctx context.Context, ann models.Announcement, msg state.Input) (state.ContinuationResult, error) {
	candidates, err := e.RoomCandidates(ctx, msg.TenantID, msg.Text)
	if err != nil || len(candidates) == 0 {
		return state.ContinuationResult{Reply: "I still couldn't find that room — could you give me its exact name?"}, nil
	}
	if err := e.SetRoom(ctx, msg.TenantID, ann.ID, candidates[0].RoomID); err != nil {
		return state.ContinuationResult{}, err
	}
	return state.ContinuationResult{Reply: fmt.Sprintf("Got it — targeting %s. Go ahead and send it?", candidates[0].Name)}, nil
}

func isAffirmative(s string) bool {
	switch s {
	case "yes", "y", "ok", "okay", "go ahead", "confirm", "sure", "yep":
		return true
	}
	return false
}

func isNegative(s string) bool {
	switch s {
	case "no", "n", "nope", "stop", "cancel":
		return true
	}
	return false
}

func ptr[T any](v T) *T { return &v }
