package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/lib/pq"
)

// SyncCapabilityDescriptors replaces every persisted descriptor for the
// tenant with the given set, keeping the audit-visible table in lockstep
// with the in-memory CapabilityRegistry built from brain.yaml at startup.
func (s *Store) SyncCapabilityDescriptors(ctx context.Context, tenantID string, descriptors []models.CapabilityDescriptor) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM capability_descriptors WHERE tenant_id = $1`, tenantID); err != nil {
			return err
		}
		for _, d := range descriptors {
			schema, err := marshalJSON(d.ParameterSchema)
			if err != nil {
				return fmt.Errorf("marshal parameter schema for %s: %w", d.ID, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO capability_descriptors
					(id, tenant_id, display_name, description, keywords, parameter_schema, requires_confirmation, enabled)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				d.ID, tenantID, d.DisplayName, d.Description, pq.Array(d.Keywords), schema, d.RequiresConfirmation, d.Enabled,
			)
			if err != nil {
				return fmt.Errorf("insert descriptor %s: %w", d.ID, err)
			}
		}
		return nil
	})
}

// ListCapabilityDescriptors returns every persisted descriptor for the
// tenant, used by the admin API.
func (s *Store) ListCapabilityDescriptors(ctx context.Context, tenantID string) ([]models.CapabilityDescriptor, error) {
	var out []models.CapabilityDescriptor
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, tenant_id, display_name, description, keywords, parameter_schema, requires_confirmation, enabled
			FROM capability_descriptors WHERE tenant_id = $1 ORDER BY id`,
			tenantID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var d models.CapabilityDescriptor
			var schema []byte
			if err := rows.Scan(&d.ID, &d.TenantID, &d.DisplayName, &d.Description,
				pq.Array(&d.Keywords), &schema, &d.RequiresConfirmation, &d.Enabled); err != nil {
				return err
			}
			if err := unmarshalJSON(schema, &d.ParameterSchema); err != nil {
				return fmt.Errorf("unmarshal parameter schema for %s: %w", d.ID, err)
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
