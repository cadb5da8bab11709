package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/brain/pkg/models"
)

// CreateMessage persists an ingested message. A duplicate WebhookID within
// the tenant is rejected by the unique index; callers should treat a
// "duplicate key" error as "already ingested" rather than retrying.
func (s *Store) CreateMessage(ctx context.Context, req models.CreateMessageRequest) (*models.Message, error) {
	meta, err := marshalJSON(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	var msg models.Message
	var metaOut []byte
	err = execTx(ctx, s.db, req.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO messages (tenant_id, room_id, user_id, channel, body, webhook_id, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, tenant_id, room_id, user_id, channel, body, received_at, webhook_id, metadata`,
			req.TenantID, req.RoomID, req.UserID, req.Channel, req.Body, req.WebhookID, meta,
		)
		return row.Scan(&msg.ID, &msg.TenantID, &msg.RoomID, &msg.UserID, &msg.Channel,
			&msg.Body, &msg.ReceivedAt, &msg.WebhookID, &metaOut)
	})
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(metaOut, &msg.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &msg, nil
}

// GetMessageByWebhookID looks up a message by its delivery idempotency key,
// used by the ingress layer to detect and skip already-processed webhooks.
func (s *Store) GetMessageByWebhookID(ctx context.Context, tenantID, webhookID string) (*models.Message, error) {
	var msg models.Message
	var meta []byte
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, tenant_id, room_id, user_id, channel, body, received_at, webhook_id, metadata
			FROM messages WHERE tenant_id = $1 AND webhook_id = $2`,
			tenantID, webhookID,
		)
		return row.Scan(&msg.ID, &msg.TenantID, &msg.RoomID, &msg.UserID, &msg.Channel,
			&msg.Body, &msg.ReceivedAt, &msg.WebhookID, &meta)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(meta, &msg.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &msg, nil
}

// RecentRoomMessages returns the most recent messages in a room, newest
// first, bounded by limit. Used by the Memory layer to build short-term
// conversational context.
func (s *Store) RecentRoomMessages(ctx context.Context, tenantID, roomID string, limit int) ([]models.Message, error) {
	var out []models.Message
	err := execTx(ctx, s.db, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, tenant_id, room_id, user_id, channel, body, received_at, webhook_id, metadata
			FROM messages
			WHERE tenant_id = $1 AND room_id = $2
			ORDER BY received_at DESC
			LIMIT $3`,
			tenantID, roomID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var m models.Message
			var meta []byte
			if err := rows.Scan(&m.ID, &m.TenantID, &m.RoomID, &m.UserID, &m.Channel,
				&m.Body, &m.ReceivedAt, &m.WebhookID, &meta); err != nil {
				return err
			}
			if err := unmarshalJSON(meta, &m.Metadata); err != nil {
				return fmt.Errorf("unmarshal metadata: %w", err)
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
