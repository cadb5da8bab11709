package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/brain/pkg/models"
)

// CreateExecutionPlan persists a Decision-layer plan in pending status.
func (s *Store) CreateExecutionPlan(ctx context.Context, req models.CreateExecutionPlanRequest) (*models.ExecutionPlan, error) {
	params, err := marshalJSON(req.Parameters)
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}

	var p models.ExecutionPlan
	var paramsOut []byte
	err = execTx(ctx, s.db, req.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO execution_plans (tenant_id, room_id, user_id, message_id, capability_id, parameters, confidence, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
			RETURNING id, tenant_id, room_id, user_id, message_id, capability_id, parameters, confidence, status, created_at`,
			req.TenantID, req.RoomID, req.UserID, req.MessageID, req.CapabilityID, params, req.Confidence,
		)
		return row.Scan(&p.ID, &p.TenantID, &p.RoomID, &p.UserID, &p.MessageID, &p.CapabilityID,
			&paramsOut, &p.Confidence, &p.Status, &p.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(paramsOut, &p.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return &p, nil
}

// UpdateExecutionPlanStatus transitions a plan to a new status, e.g. after
// Guardrail approval or once Execution completes.
func (s *Store) UpdateExecutionPlanStatus(ctx context.Context, tenantID, id string, status models.ExecutionPlanStatus) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE execution_plans SET status = $1 WHERE tenant_id = $2 AND id = $3`,
			status, tenantID, id,
		)
		return err
	})
}

// GetExecutionPlan looks up a single plan by id.
func (s *Store) GetExecutionPlan(ctx context.Context, tenantID, id string) (*models.ExecutionPlan, error) {
	var p models.ExecutionPlan
	var params []byte
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, tenant_id, room_id, user_id, message_id, capability_id, parameters, confidence, status, created_at
			FROM execution_plans WHERE tenant_id = $1 AND id = $2`,
			tenantID, id,
		)
		return row.Scan(&p.ID, &p.TenantID, &p.RoomID, &p.UserID, &p.MessageID, &p.CapabilityID,
			&params, &p.Confidence, &p.Status, &p.CreatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(params, &p.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return &p, nil
}
