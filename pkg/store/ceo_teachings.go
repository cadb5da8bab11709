package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/codeready-toolchain/brain/pkg/models"
)

func scanCEOTeaching(row interface{ Scan(...any) error }) (models.CEOTeaching, error) {
	var t models.CEOTeaching
	var supersedes sql.NullString
	err := row.Scan(&t.ID, &t.TenantID, &t.CEOUserID, &t.Statement, &t.Reasoning, &t.Context,
		&t.Category, &t.Priority, &t.IsActive, &t.UsageCount, &t.ValidationStatus, &supersedes, &t.CreatedAt)
	if supersedes.Valid {
		t.Supersedes = supersedes.String
	}
	return t, err
}

const ceoTeachingColumns = `id, tenant_id, ceo_user_id, statement, reasoning, context,
	category, priority, is_active, usage_count, validation_status, supersedes, created_at`

// CreateCEOTeaching records a new standing value statement.
func (s *Store) CreateCEOTeaching(ctx context.Context, req models.CreateCEOTeachingRequest) (*models.CEOTeaching, error) {
	var t models.CEOTeaching
	err := execTx(ctx, s.db, req.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO ceo_teachings (tenant_id, ceo_user_id, statement, reasoning, context, category, priority, supersedes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
			RETURNING `+ceoTeachingColumns,
			req.TenantID, req.CEOUserID, req.Statement, req.Reasoning, req.Context, req.Category, req.Priority, req.Supersedes,
		)
		var err error
		t, err = scanCEOTeaching(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TopTeachingsForPrompt returns the active, verified teachings the Memory
// layer folds into MemoryContext: priority desc, limit 5, optionally
// filtered to those whose statement mentions one of the given keywords.
func (s *Store) TopTeachingsForPrompt(ctx context.Context, tenantID string, keywords []string, limit int) ([]models.CEOTeaching, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []models.CEOTeaching
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		query := `
			SELECT ` + ceoTeachingColumns + `
			FROM ceo_teachings
			WHERE tenant_id = $1 AND is_active AND validation_status IN ('verified', 'pending')`
		args := []any{tenantID}
		if len(keywords) > 0 {
			var clauses []string
			for _, kw := range keywords {
				args = append(args, "%"+escapeLike(kw)+"%")
				clauses = append(clauses, "statement ILIKE $"+itoa(len(args))+" ESCAPE '\\'")
			}
			query += " AND (" + strings.Join(clauses, " OR ") + ")"
		}
		query += " ORDER BY priority DESC, created_at DESC LIMIT $" + itoa(len(args)+1)
		args = append(args, limit)

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanCEOTeaching(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveTeachingsByCategory returns every active, verified teaching for a
// category, consulted by the guardrail when value-aligning a candidate plan.
func (s *Store) ActiveTeachingsByCategory(ctx context.Context, tenantID string, category models.CEOTeachingCategory) ([]models.CEOTeaching, error) {
	var out []models.CEOTeaching
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+ceoTeachingColumns+`
			FROM ceo_teachings
			WHERE tenant_id = $1 AND category = $2 AND is_active
			ORDER BY priority DESC, created_at DESC`,
			tenantID, category,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanCEOTeaching(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementTeachingUsage bumps usage_count after a teaching influences a
// Decision/guardrail outcome.
func (s *Store) IncrementTeachingUsage(ctx context.Context, tenantID, id string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE ceo_teachings SET usage_count = usage_count + 1 WHERE tenant_id = $1 AND id = $2`,
			tenantID, id,
		)
		return err
	})
}

// DeactivateCEOTeaching retires a teaching without deleting its audit trail.
func (s *Store) DeactivateCEOTeaching(ctx context.Context, tenantID, id string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE ceo_teachings SET is_active = false WHERE tenant_id = $1 AND id = $2`,
			tenantID, id,
		)
		return err
	})
}
