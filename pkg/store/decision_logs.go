package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/lib/pq"
)

const decisionLogColumns = `id, tenant_id, room_id, user_id, message_id, stage, outcome, reason,
	message_excerpt, inferred_intent, selected_capability, overall_confidence, intent_confidence,
	parameter_confidence, guardrail_action, policy_reason, success, error_code, tokens_in, tokens_out,
	model_id, timing_breakdown_ms, confirmation_needed, confirmation_question, confirmation_resolution,
	warnings, scrubbed_detail, created_at`

func scanDecisionLog(row interface{ Scan(...any) error }) (models.DecisionLog, error) {
	var d models.DecisionLog
	var messageID sql.NullString
	var timing, detail []byte
	var warnings pq.StringArray
	err := row.Scan(&d.ID, &d.TenantID, &d.RoomID, &d.UserID, &messageID, &d.Stage, &d.Outcome, &d.Reason,
		&d.MessageExcerpt, &d.InferredIntent, &d.SelectedCapability, &d.OverallConfidence, &d.IntentConfidence,
		&d.ParameterConfidence, &d.GuardrailAction, &d.PolicyReason, &d.Success, &d.ErrorCode, &d.TokensIn, &d.TokensOut,
		&d.ModelID, &timing, &d.ConfirmationNeeded, &d.ConfirmationQuestion, &d.ConfirmationResolution,
		&warnings, &detail, &d.CreatedAt)
	if err != nil {
		return d, err
	}
	if messageID.Valid {
		d.MessageID = &messageID.String
	}
	d.Warnings = []string(warnings)
	if err := unmarshalJSON(timing, &d.TimingBreakdown); err != nil {
		return d, err
	}
	if err := unmarshalJSON(detail, &d.ScrubbedDetail); err != nil {
		return d, err
	}
	return d, nil
}

// CreateDecisionLog appends the single append-only row Post writes for one
// Brain invocation (success, refusal, or error). Callers must not call this
// for a message rejected purely as a duplicate webhook delivery — see
// models.CreateDecisionLogRequest.
func (s *Store) CreateDecisionLog(ctx context.Context, req models.CreateDecisionLogRequest) (*models.DecisionLog, error) {
	timing, err := marshalJSON(req.TimingBreakdown)
	if err != nil {
		return nil, err
	}
	detail, err := marshalJSON(req.ScrubbedDetail)
	if err != nil {
		return nil, err
	}

	var d models.DecisionLog
	err = execTx(ctx, s.db, req.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO decision_logs (
				tenant_id, room_id, user_id, message_id, stage, outcome, reason,
				message_excerpt, inferred_intent, selected_capability, overall_confidence, intent_confidence,
				parameter_confidence, guardrail_action, policy_reason, success, error_code, tokens_in, tokens_out,
				model_id, timing_breakdown_ms, confirmation_needed, confirmation_question, confirmation_resolution,
				warnings, scrubbed_detail
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7,
				$8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17, $18, $19,
				$20, $21, $22, $23, $24,
				$25, $26
			)
			RETURNING `+decisionLogColumns,
			req.TenantID, req.RoomID, req.UserID, req.MessageID, req.Stage, req.Outcome, req.Reason,
			req.MessageExcerpt, req.InferredIntent, req.SelectedCapability, req.OverallConfidence, req.IntentConfidence,
			req.ParameterConfidence, req.GuardrailAction, req.PolicyReason, req.Success, req.ErrorCode, req.TokensIn, req.TokensOut,
			req.ModelID, timing, req.ConfirmationNeeded, req.ConfirmationQuestion, req.ConfirmationResolution,
			pq.StringArray(req.Warnings), detail,
		)
		var err error
		d, err = scanDecisionLog(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// RecentDecisionLogs returns the tenant's most recent decision log rows,
// newest first, for administrative review.
func (s *Store) RecentDecisionLogs(ctx context.Context, tenantID string, limit int) ([]models.DecisionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.DecisionLog
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+decisionLogColumns+`
			FROM decision_logs
			WHERE tenant_id = $1
			ORDER BY created_at DESC
			LIMIT $2`,
			tenantID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDecisionLog(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeOldDecisionLogs deletes decision_log rows older than olderThan
// across every tenant, enforcing models.DecisionLogRetention. Runs
// directly against the pool rather than through WithTenant for the same
// reason as Store.PurgeAllExpiredConversationStates: a retention sweep has
// no single tenant to scope itself to, and the owning role it connects as
// is never subject to row level security.
func (s *Store) PurgeOldDecisionLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := s.db.DB().ExecContext(ctx, `
		DELETE FROM decision_logs WHERE created_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(olderThan.Seconds())),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DecisionLogsForRoom returns a room's recent decision log rows, used by
// Understanding's ambiguity resolution to recall the last referenced task
// or announcement without re-deriving it from conversation text.
func (s *Store) DecisionLogsForRoom(ctx context.Context, tenantID, roomID string, limit int) ([]models.DecisionLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []models.DecisionLog
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+decisionLogColumns+`
			FROM decision_logs
			WHERE tenant_id = $1 AND room_id = $2
			ORDER BY created_at DESC
			LIMIT $3`,
			tenantID, roomID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			d, err := scanDecisionLog(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
