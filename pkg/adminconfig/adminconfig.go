// Package adminconfig is the Brain's per-tenant operator/room settings
// store: operator account id, primary admin room, admin DM
// room. Cached with a 1-hour TTL, tenant-keyed, grounded in the pack's
// goa-ai/kubernaut use of github.com/redis/go-redis/v9 for exactly this
// shape of small, read-mostly, tenant-scoped cache.
package adminconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/brain/pkg/database"
)

// Config is one tenant's admin settings.
type Config struct {
	TenantID           string `json:"tenant_id"`
	OperatorAccountID  string `json:"operator_account_id"`
	PrimaryAdminRoomID string `json:"primary_admin_room_id"`
	AdminDMRoomID      string `json:"admin_dm_room_id"`
}

const cacheTTL = time.Hour

// Store serves admin config reads from Redis, falling back to Postgres on
// a cache miss and repopulating the cache.
type Store struct {
	db    *database.Client
	redis *redis.Client
}

// New constructs a Store.
func New(db *database.Client, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb}
}

func cacheKey(tenantID string) string {
	return "brain:adminconfig:" + tenantID
}

// Get returns the admin config for tenantID, cache-first.
func (s *Store) Get(ctx context.Context, tenantID string) (*Config, error) {
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, cacheKey(tenantID)).Bytes(); err == nil {
			var cfg Config
			if jsonErr := json.Unmarshal(raw, &cfg); jsonErr == nil {
				return &cfg, nil
			}
		}
	}

	var cfg Config
	err := s.db.WithTenant(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT tenant_id, operator_account_id, primary_admin_room_id, admin_dm_room_id
			FROM admin_configs WHERE tenant_id = $1`,
			tenantID,
		)
		return row.Scan(&cfg.TenantID, &cfg.OperatorAccountID, &cfg.PrimaryAdminRoomID, &cfg.AdminDMRoomID)
	})
	if err == sql.ErrNoRows {
		cfg = Config{TenantID: tenantID}
	} else if err != nil {
		return nil, fmt.Errorf("load admin config: %w", err)
	}

	if s.redis != nil {
		if raw, marshalErr := json.Marshal(cfg); marshalErr == nil {
			_ = s.redis.Set(ctx, cacheKey(tenantID), raw, cacheTTL).Err()
		}
	}
	return &cfg, nil
}

// Put writes tenantID's admin config and invalidates the cache entry.
func (s *Store) Put(ctx context.Context, cfg Config) error {
	err := s.db.WithTenant(ctx, cfg.TenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO admin_configs (tenant_id, operator_account_id, primary_admin_room_id, admin_dm_room_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id) DO UPDATE SET
				operator_account_id = EXCLUDED.operator_account_id,
				primary_admin_room_id = EXCLUDED.primary_admin_room_id,
				admin_dm_room_id = EXCLUDED.admin_dm_room_id`,
			cfg.TenantID, cfg.OperatorAccountID, cfg.PrimaryAdminRoomID, cfg.AdminDMRoomID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save admin config: %w", err)
	}
	if s.redis != nil {
		_ = s.redis.Del(ctx, cacheKey(cfg.TenantID)).Err()
	}
	return nil
}
