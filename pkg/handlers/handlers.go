// Package handlers implements the concrete capability handlers named by
// pkg/config/builtin.go's HandlerKey fields. Each handler is pure per the
// Execution contract: it reads its parameters and the memory context,
// performs exactly the domain effect its capability promises (create a
// task, record a teaching, retrieve knowledge), and returns an
// execution.Output. None of them transition conversation state, evaluate
// policy, or send chat messages — those stay in State, Guardrail, and
// Post.
package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/codeready-toolchain/brain/pkg/execution"
	"github.com/codeready-toolchain/brain/pkg/memory"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/store"
)

// Deps bundles the shared dependencies every builtin handler needs.
type Deps struct {
	Store *store.Store
}

// Register builds every builtin handler and adds it to reg under the
// handler key builtin.go declares for it.
func Register(reg *execution.Registry, deps Deps) {
	reg.Register("help", Help)
	reg.Register("task_create", deps.TaskCreate)
	reg.Register("task_search", deps.TaskSearch)
	reg.Register("task_complete", deps.TaskComplete)
	reg.Register("goal_set", deps.GoalSet)
	reg.Register("knowledge_query", deps.KnowledgeQuery)
	reg.Register("announcement_request", AnnouncementRequest)
	reg.Register("teaching_record", deps.TeachingRecord)
	reg.Register("insight_list", InsightList)
}

// Help lists the capabilities available to the sender; it carries no
// dependencies since the capability list it walks is supplied by Decision
// via params["available"].
func Help(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	names, _ := params["available"].([]string)
	if len(names) == 0 {
		return execution.Output{Summary: "I can help with tasks, goals, announcements, and answering questions from what I've been taught."}, nil
	}
	return execution.Output{Summary: "Here's what I can help with: " + strings.Join(names, ", ")}, nil
}

// TaskCreate resolves the assignee against the persons already fetched
// into the memory context and records a task.
func (d Deps) TaskCreate(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	title, _ := params["title"].(string)
	assignee, _ := params["assignee"].(string)
	if title == "" || assignee == "" {
		return execution.Output{}, fmt.Errorf("task_create: title and assignee are required")
	}

	assigneeID := resolvePerson(assignee, mc)
	if assigneeID == "" {
		assigneeID = env.UserID // fall back to the sender when no match is found
	}

	var deadline *time.Time
	if t, ok := params["deadline"].(time.Time); ok {
		deadline = &t
	}

	roomID := env.RoomID
	if r, ok := params["room_id"].(string); ok && r != "" {
		roomID = r
	}

	id, err := d.Store.CreateTask(ctx, env.TenantID, roomID, assigneeID, title, deadline)
	if err != nil {
		return execution.Output{}, fmt.Errorf("task_create: %w", err)
	}

	return execution.Output{
		Summary: fmt.Sprintf("Created task %q for %s.", title, assignee),
		Detail:  map[string]any{"task_id": id},
	}, nil
}

// TaskSearch lists the sender's open tasks, already prefetched by Memory.
func (d Deps) TaskSearch(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	if mc == nil || len(mc.ActiveTasks) == 0 {
		return execution.Output{Summary: "You have no open tasks right now."}, nil
	}
	var b strings.Builder
	b.WriteString("Your open tasks:\n")
	for _, t := range mc.ActiveTasks {
		fmt.Fprintf(&b, "- %s (%s)\n", t.Title, t.Status)
	}
	return execution.Output{Summary: b.String(), Detail: map[string]any{"count": len(mc.ActiveTasks)}}, nil
}

// TaskComplete marks a task done; task_id is expected to already be
// resolved by Understanding's ambiguity resolution before Decision built
// the plan.
func (d Deps) TaskComplete(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	taskID, _ := params["task_id"].(string)
	if taskID == "" && mc != nil && len(mc.ActiveTasks) > 0 {
		taskID = mc.ActiveTasks[0].ID
	}
	if taskID == "" {
		return execution.Output{}, fmt.Errorf("task_complete: no task could be identified")
	}
	if err := d.Store.MarkTaskDone(ctx, env.TenantID, taskID); err != nil {
		return execution.Output{}, fmt.Errorf("task_complete: %w", err)
	}
	return execution.Output{Summary: "Marked that task done.", Detail: map[string]any{"task_id": taskID}}, nil
}

// GoalSet records a new goal for the sender.
func (d Deps) GoalSet(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	title, _ := params["title"].(string)
	if title == "" {
		return execution.Output{}, fmt.Errorf("goal_set: title is required")
	}
	id, err := d.Store.CreateGoal(ctx, env.TenantID, env.UserID, title)
	if err != nil {
		return execution.Output{}, fmt.Errorf("goal_set: %w", err)
	}
	return execution.Output{Summary: fmt.Sprintf("Got it — goal set: %q.", title), Detail: map[string]any{"goal_id": id}}, nil
}

// KnowledgeQuery answers from retrieved knowledge-base chunks. Brain's
// orchestrator embeds the query text and stuffs the nearest chunks into
// params["retrieved_chunks"] before Execution runs, since embedding
// generation belongs to the LLM boundary, not the handler; this handler
// only formats what it is handed, falling back to the sender's active
// teachings when nothing was retrieved.
func (d Deps) KnowledgeQuery(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	if chunks, ok := params["retrieved_chunks"].(string); ok && chunks != "" {
		return execution.Output{Summary: chunks}, nil
	}
	query, _ := params["query"].(string)
	if mc != nil {
		for _, t := range mc.Teachings {
			if containsAnyWord(t.Statement, query) {
				return execution.Output{Summary: t.Statement, Detail: map[string]any{"teaching_id": t.ID}}, nil
			}
		}
	}
	return execution.Output{Summary: "I don't have anything on that yet — you could teach me by telling me directly."}, nil
}

// AnnouncementRequest captures a parsed announcement request. It persists
// nothing and sends nothing; Post reads Detail and hands the request to
// pkg/announcement to begin the confirmation flow.
func AnnouncementRequest(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	roomAlias, _ := params["room_alias"].(string)
	body, _ := params["message_body"].(string)
	if roomAlias == "" || body == "" {
		return execution.Output{}, fmt.Errorf("announcement_request: room_alias and message_body are required")
	}
	return execution.Output{
		Summary: fmt.Sprintf("I've got a draft announcement for %q — want me to go ahead?", roomAlias),
		Detail: map[string]any{
			"room_alias":   roomAlias,
			"message_body": body,
			"create_tasks": params["create_tasks"],
			"deadline":     params["deadline"],
		},
	}, nil
}

// TeachingRecord records a CEO teaching statement.
func (d Deps) TeachingRecord(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	statement, _ := params["statement"].(string)
	if statement == "" {
		return execution.Output{}, fmt.Errorf("teaching_record: statement is required")
	}
	category := models.CategoryGeneral
	if c, ok := params["category"].(string); ok && models.CEOTeachingCategory(c).IsValid() {
		category = models.CEOTeachingCategory(c)
	}
	t, err := d.Store.CreateCEOTeaching(ctx, models.CreateCEOTeachingRequest{
		TenantID:  env.TenantID,
		CEOUserID: env.UserID,
		Statement: statement,
		Category:  category,
		Priority:  5,
	})
	if err != nil {
		return execution.Output{}, fmt.Errorf("teaching_record: %w", err)
	}
	return execution.Output{Summary: "Noted — I'll keep that in mind.", Detail: map[string]any{"teaching_id": t.ID}}, nil
}

// InsightList surfaces recent high-priority insights already prefetched
// into the memory context.
func InsightList(ctx context.Context, params map[string]any, env execution.Envelope, mc *memory.Context) (execution.Output, error) {
	if mc == nil || len(mc.RecentInsights) == 0 {
		return execution.Output{Summary: "No notable insights right now."}, nil
	}
	sorted := append([]store.Insight(nil), mc.RecentInsights...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	var b strings.Builder
	b.WriteString("Recent insights:\n")
	for _, ins := range sorted {
		fmt.Fprintf(&b, "- [%s] %s\n", ins.Kind, ins.Summary)
	}
	return execution.Output{Summary: b.String()}, nil
}

func resolvePerson(name string, mc *memory.Context) string {
	if mc == nil {
		return ""
	}
	lower := strings.ToLower(name)
	for _, p := range mc.Persons {
		if strings.Contains(strings.ToLower(p.Name), lower) || strings.Contains(lower, strings.ToLower(p.Name)) {
			return p.ID
		}
	}
	return ""
}

func containsAnyWord(statement, query string) bool {
	if query == "" {
		return false
	}
	lowerStmt := strings.ToLower(statement)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > 3 && strings.Contains(lowerStmt, w) {
			return true
		}
	}
	return false
}
