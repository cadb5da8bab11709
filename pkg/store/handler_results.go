package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/models"
)

// CreateHandlerResult persists a capability handler's outcome. Callers must
// pass req.Detail already through masking.Service.MaskHandlerResult — this
// layer does not re-scrub.
func (s *Store) CreateHandlerResult(ctx context.Context, req models.CreateHandlerResultRequest) (*models.HandlerResult, error) {
	detail, err := marshalJSON(req.Detail)
	if err != nil {
		return nil, fmt.Errorf("marshal detail: %w", err)
	}

	var errorKind sql.NullString
	if req.ErrorKind != nil {
		errorKind = sql.NullString{String: string(*req.ErrorKind), Valid: true}
	}

	var r models.HandlerResult
	var detailOut []byte
	var errorKindOut sql.NullString
	err = execTx(ctx, s.db, req.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO handler_results (tenant_id, execution_plan_id, status, summary, detail, error_kind, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, tenant_id, execution_plan_id, status, summary, detail, error_kind, duration_ms, created_at`,
			req.TenantID, req.ExecutionPlanID, req.Status, req.Summary, detail, errorKind, req.DurationMS,
		)
		return row.Scan(&r.ID, &r.TenantID, &r.ExecutionPlanID, &r.Status, &r.Summary,
			&detailOut, &errorKindOut, &r.DurationMS, &r.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(detailOut, &r.Detail); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	if errorKindOut.Valid {
		k := config.ErrorKind(errorKindOut.String)
		r.ErrorKind = &k
	}
	return &r, nil
}

// ResultsForPlan returns every handler result recorded for an execution
// plan, in case of a retried capability.
func (s *Store) ResultsForPlan(ctx context.Context, tenantID, executionPlanID string) ([]models.HandlerResult, error) {
	var out []models.HandlerResult
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, tenant_id, execution_plan_id, status, summary, detail, error_kind, duration_ms, created_at
			FROM handler_results WHERE tenant_id = $1 AND execution_plan_id = $2 ORDER BY created_at`,
			tenantID, executionPlanID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r models.HandlerResult
			var detail []byte
			var errorKind sql.NullString
			if err := rows.Scan(&r.ID, &r.TenantID, &r.ExecutionPlanID, &r.Status, &r.Summary,
				&detail, &errorKind, &r.DurationMS, &r.CreatedAt); err != nil {
				return err
			}
			if err := unmarshalJSON(detail, &r.Detail); err != nil {
				return fmt.Errorf("unmarshal detail: %w", err)
			}
			if errorKind.Valid {
				k := config.ErrorKind(errorKind.String)
				r.ErrorKind = &k
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
