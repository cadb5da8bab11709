package store

import (
	"context"
	"database/sql"
	"time"
)

// ConversationTurn is one recorded turn of a room conversation, persisted
// by Post and read back by Memory.
type ConversationTurn struct {
	Speaker   string
	Body      string
	CreatedAt time.Time
}

// RecentTurns returns the last limit turns for (room, user), oldest first,
// bounded to 10 by default.
func (s *Store) RecentTurns(ctx context.Context, tenantID, roomID, userID string, limit int) ([]ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []ConversationTurn
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT speaker, body, created_at FROM conversation_turns
			WHERE tenant_id = $1 AND room_id = $2 AND user_id = $3
			ORDER BY created_at DESC LIMIT $4`,
			tenantID, roomID, userID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t ConversationTurn
			if err := rows.Scan(&t.Speaker, &t.Body, &t.CreatedAt); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AppendTurn records one conversation turn.
func (s *Store) AppendTurn(ctx context.Context, tenantID, roomID, userID, speaker, body string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_turns (tenant_id, room_id, user_id, speaker, body)
			VALUES ($1, $2, $3, $4, $5)`,
			tenantID, roomID, userID, speaker, body,
		)
		return err
	})
}

// ConversationSummary returns the rolling summary for (room, user), or ""
// if none has been generated yet.
func (s *Store) ConversationSummary(ctx context.Context, tenantID, roomID, userID string) (string, error) {
	var summary string
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT summary FROM conversation_summaries WHERE tenant_id = $1 AND room_id = $2 AND user_id = $3`,
			tenantID, roomID, userID,
		)
		err := row.Scan(&summary)
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	})
	return summary, err
}

// UpdateConversationSummary replaces the rolling summary for (room, user).
func (s *Store) UpdateConversationSummary(ctx context.Context, tenantID, roomID, userID, summary string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_summaries (tenant_id, room_id, user_id, summary, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (tenant_id, room_id, user_id) DO UPDATE SET
				summary = EXCLUDED.summary, updated_at = now()`,
			tenantID, roomID, userID, summary,
		)
		return err
	})
}

// Preferences returns the user's preference bag, or an empty map if none
// has been recorded.
func (s *Store) Preferences(ctx context.Context, tenantID, userID string) (map[string]any, error) {
	out := map[string]any{}
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		var raw []byte
		row := tx.QueryRowContext(ctx, `
			SELECT preferences FROM user_preferences WHERE tenant_id = $1 AND user_id = $2`,
			tenantID, userID,
		)
		err := row.Scan(&raw)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		return unmarshalJSON(raw, &out)
	})
	return out, err
}

// UpdatePreferences merges newPrefs into the user's stored preference bag.
func (s *Store) UpdatePreferences(ctx context.Context, tenantID, userID string, newPrefs map[string]any) error {
	current, err := s.Preferences(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	for k, v := range newPrefs {
		current[k] = v
	}
	data, err := marshalJSON(current)
	if err != nil {
		return err
	}
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_preferences (tenant_id, user_id, preferences, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (tenant_id, user_id) DO UPDATE SET
				preferences = EXCLUDED.preferences, updated_at = now()`,
			tenantID, userID, data,
		)
		return err
	})
}

// Person is a name-matched contact relevant to a message.
type Person struct {
	ID        string
	Name      string
	RoleTitle string
}

// PersonsMatching fuzzy/substring-matches name against persons.name,
// tenant-scoped, escaped to guard against ILIKE metacharacters in name.
func (s *Store) PersonsMatching(ctx context.Context, tenantID, name string, limit int) ([]Person, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []Person
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, name, role_title FROM persons
			WHERE tenant_id = $1 AND name ILIKE $2 ESCAPE '\' LIMIT $3`,
			tenantID, "%"+escapeLike(name)+"%", limit,
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
	return out, err
}

// Task is one active task for a user, read by Memory and the task_search
// handler.
type Task struct {
	ID       string
	RoomID   string
	Title    string
	Status   string
	Deadline *time.Time
}

// ActiveTasksForUser returns the user's open tasks across all rooms,
// bounded by limit.
func (s *Store) ActiveTasksForUser(ctx context.Context, tenantID, userID string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []Task
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, room_id, title, status, deadline FROM tasks
			WHERE tenant_id = $1 AND assignee_id = $2 AND status != 'done'
			ORDER BY deadline NULLS LAST, created_at DESC LIMIT $3`,
			tenantID, userID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t Task
			if err := rows.Scan(&t.ID, &t.RoomID, &t.Title, &t.Status, &t.Deadline); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

// CreateTask inserts a new task and returns its id.
func (s *Store) CreateTask(ctx context.Context, tenantID, roomID, assigneeID, title string, deadline *time.Time) (string, error) {
	var id string
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO tasks (tenant_id, room_id, assignee_id, title, deadline)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			tenantID, roomID, assigneeID, title, deadline,
		)
		return row.Scan(&id)
	})
	return id, err
}

// MarkTaskDone flips a task's status.
func (s *Store) MarkTaskDone(ctx context.Context, tenantID, taskID string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET status = 'done' WHERE tenant_id = $1 AND id = $2`, tenantID, taskID)
		return err
	})
}

// Goal is one active goal for a user.
type Goal struct {
	ID     string
	Title  string
	Status string
}

// ActiveGoalsForUser returns the user's active goals, bounded by limit
//.
func (s *Store) ActiveGoalsForUser(ctx context.Context, tenantID, userID string, limit int) ([]Goal, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Goal
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, title, status FROM goals
			WHERE tenant_id = $1 AND user_id = $2 AND status = 'active'
			ORDER BY created_at DESC LIMIT $3`,
			tenantID, userID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var g Goal
			if err := rows.Scan(&g.ID, &g.Title, &g.Status); err != nil {
				return err
			}
			out = append(out, g)
		}
		return rows.Err()
	})
	return out, err
}

// CreateGoal inserts a new goal.
func (s *Store) CreateGoal(ctx context.Context, tenantID, userID, title string) (string, error) {
	var id string
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO goals (tenant_id, user_id, title) VALUES ($1, $2, $3) RETURNING id`,
			tenantID, userID, title,
		)
		return row.Scan(&id)
	})
	return id, err
}

// Insight is a recent pattern/anomaly surfaced to the Brain.
type Insight struct {
	ID       string
	Kind     string
	Summary  string
	Priority string
}

// RecentHighPriorityInsights returns insights at or above "high" priority,
// bounded by limit.
func (s *Store) RecentHighPriorityInsights(ctx context.Context, tenantID string, limit int) ([]Insight, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []Insight
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, kind, summary, priority FROM insights
			WHERE tenant_id = $1 AND priority IN ('high', 'critical')
			ORDER BY created_at DESC LIMIT $2`,
			tenantID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var i Insight
			if err := rows.Scan(&i.ID, &i.Kind, &i.Summary, &i.Priority); err != nil {
				return err
			}
			out = append(out, i)
		}
		return rows.Err()
	})
	return out, err
}

// CreateInsight records a pattern or anomaly surfaced to the Brain, e.g. a
// recurrence proposal once an announcement request has repeated often
// enough.
func (s *Store) CreateInsight(ctx context.Context, tenantID, kind, summary, priority string) (string, error) {
	var id string
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO insights (tenant_id, kind, summary, priority) VALUES ($1, $2, $3, $4) RETURNING id`,
			tenantID, kind, summary, priority,
		)
		return row.Scan(&id)
	})
	return id, err
}

// RoomByAlias fuzzy-matches a human-typed room alias against rooms.name,
// returning candidates for the announcement state machine's room
// resolution. Levenshtein-normalized scoring happens in
// pkg/announcement; this just returns substring candidates to score.
func (s *Store) RoomsLike(ctx context.Context, tenantID, alias string, limit int) ([]struct{ ID, Name string }, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []struct{ ID, Name string }
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, name FROM rooms WHERE tenant_id = $1 LIMIT $2`, tenantID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r struct{ ID, Name string }
			if err := rows.Scan(&r.ID, &r.Name); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// MarkWebhookProcessed records a message id as processed, tenant-scoped.
// Returns false (and no error) if it was already processed.
func (s *Store) MarkWebhookProcessed(ctx context.Context, tenantID, messageID string) (firstTime bool, err error) {
	err = execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx, `
			INSERT INTO processed_webhooks (tenant_id, message_id) VALUES ($1, $2)
			ON CONFLICT (tenant_id, message_id) DO NOTHING`,
			tenantID, messageID,
		)
		if execErr != nil {
			return execErr
		}
		affected, execErr := res.RowsAffected()
		if execErr != nil {
			return execErr
		}
		firstTime = affected > 0
		return nil
	})
	return firstTime, err
}
