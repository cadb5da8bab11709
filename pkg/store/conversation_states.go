package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/brain/pkg/models"
)

// GetConversationState returns the state row for (room, user). If no row
// exists, or the row's expires_at has passed, it returns models.Normal and
// — for the expired case — deletes the stale row in the same transaction,
// so a subsequent read sees no trace of the expired state.
func (s *Store) GetConversationState(ctx context.Context, tenantID, roomID, userID string) (models.ConversationState, error) {
	var st models.ConversationState
	var data []byte
	var expiresAt sql.NullTime

	found := false
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT tenant_id, room_id, user_id, state_type, step, data, reference_type,
			       reference_id, expires_at, created_at, updated_at
			FROM conversation_states WHERE tenant_id = $1 AND room_id = $2 AND user_id = $3`,
			tenantID, roomID, userID,
		)
		scanErr := row.Scan(&st.TenantID, &st.RoomID, &st.UserID, &st.StateType, &st.Step, &data,
			&st.ReferenceType, &st.ReferenceID, &expiresAt, &st.CreatedAt, &st.UpdatedAt)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		found = true
		if expiresAt.Valid {
			st.ExpiresAt = expiresAt.Time
		}
		if st.Expired(time.Now()) {
			_, delErr := tx.ExecContext(ctx, `
				DELETE FROM conversation_states WHERE tenant_id = $1 AND room_id = $2 AND user_id = $3`,
				tenantID, roomID, userID)
			if delErr != nil {
				return delErr
			}
			found = false
		}
		return nil
	})
	if err != nil {
		return models.ConversationState{}, err
	}
	if !found {
		return models.Normal(tenantID, roomID, userID), nil
	}
	if err := unmarshalJSON(data, &st.Data); err != nil {
		return models.ConversationState{}, fmt.Errorf("unmarshal data: %w", err)
	}
	return st, nil
}

// UpsertConversationState writes the (room, user) state row, replacing
// whatever was there. Writing
// models.StateNormal deletes the row instead, since normal is represented
// by absence.
func (s *Store) UpsertConversationState(ctx context.Context, st models.ConversationState) error {
	if st.IsNormal() {
		return s.DeleteConversationState(ctx, st.TenantID, st.RoomID, st.UserID)
	}
	data, err := marshalJSON(st.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	expiresAt := st.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(models.DefaultStateTimeout)
	}
	return execTx(ctx, s.db, st.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_states
				(tenant_id, room_id, user_id, state_type, step, data, reference_type, reference_id, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (tenant_id, room_id, user_id) DO UPDATE SET
				state_type     = EXCLUDED.state_type,
				step           = EXCLUDED.step,
				data           = EXCLUDED.data,
				reference_type = EXCLUDED.reference_type,
				reference_id   = EXCLUDED.reference_id,
				expires_at     = EXCLUDED.expires_at,
				updated_at     = now()`,
			st.TenantID, st.RoomID, st.UserID, st.StateType, st.Step, data, st.ReferenceType, st.ReferenceID, expiresAt,
		)
		return err
	})
}

// DeleteConversationState clears the state row for (room, user), used once
// a flow resolves or is cancelled.
func (s *Store) DeleteConversationState(ctx context.Context, tenantID, roomID, userID string) error {
	return execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM conversation_states WHERE tenant_id = $1 AND room_id = $2 AND user_id = $3`,
			tenantID, roomID, userID,
		)
		return err
	})
}

// PurgeExpiredConversationStates deletes every state row past its expiry,
// invoked periodically by the cleanup loop as defense-in-depth alongside
// the read-time lazy-expiry behavior in GetConversationState.
func (s *Store) PurgeExpiredConversationStates(ctx context.Context, tenantID string) (int64, error) {
	var affected int64
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM conversation_states
			WHERE tenant_id = $1 AND expires_at IS NOT NULL AND expires_at < now()`,
			tenantID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// PurgeAllExpiredConversationStates deletes every expired state row across
// every tenant in one sweep. Unlike every other store method, this runs
// directly against the pool rather than through WithTenant: row level
// security in Postgres applies per role, not per connection, and never
// restricts the table-owning role this application connects as (none of
// the migrations use FORCE ROW LEVEL SECURITY), so this query already sees
// every tenant's rows without pinning app.tenant_id. pkg/cleanup is the
// only caller — a retention sweep has no single tenant to scope itself to.
func (s *Store) PurgeAllExpiredConversationStates(ctx context.Context) (int64, error) {
	res, err := s.db.DB().ExecContext(ctx, `
		DELETE FROM conversation_states WHERE expires_at IS NOT NULL AND expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
