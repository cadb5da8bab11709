package store

import (
	"context"
	"database/sql"

	"github.com/codeready-toolchain/brain/pkg/models"
)

const auditLogColumns = `id, tenant_id, actor, action, target, classification, resource_type, resource_id, scrubbed_detail, created_at`

func scanAuditLog(row interface{ Scan(...any) error }) (models.AuditLog, error) {
	var a models.AuditLog
	var detail []byte
	err := row.Scan(&a.ID, &a.TenantID, &a.Actor, &a.Action, &a.Target, &a.Classification,
		&a.ResourceType, &a.ResourceID, &detail, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	err = unmarshalJSON(detail, &a.ScrubbedDetail)
	return a, err
}

// CreateAuditLog appends an entry to the compliance-facing audit trail,
// kept separate from decision_logs so administrative review never depends
// on pipeline-internal detail.
func (s *Store) CreateAuditLog(ctx context.Context, req models.CreateAuditLogRequest) (*models.AuditLog, error) {
	classification := req.Classification
	if !classification.IsValid() {
		classification = models.ClassificationInternal
	}
	detail, err := marshalJSON(req.ScrubbedDetail)
	if err != nil {
		return nil, err
	}

	var a models.AuditLog
	err = execTx(ctx, s.db, req.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO audit_logs (tenant_id, actor, action, target, classification, resource_type, resource_id, scrubbed_detail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+auditLogColumns,
			req.TenantID, req.Actor, req.Action, req.Target, classification, req.ResourceType, req.ResourceID, detail,
		)
		var err error
		a, err = scanAuditLog(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecentAuditLogs returns the tenant's most recent audit entries, newest
// first, for administrative review.
func (s *Store) RecentAuditLogs(ctx context.Context, tenantID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.AuditLog
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+auditLogColumns+`
			FROM audit_logs
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
			a, err := scanAuditLog(rows)
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
