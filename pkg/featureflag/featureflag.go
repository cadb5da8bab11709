// Package featureflag implements boolean flags, keyed by name,
// with per-tenant override support, read once at request start. Backed by
// Postgres for durability with a Redis read cache, same shape as
// pkg/adminconfig.
package featureflag

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/brain/pkg/database"
)

const cacheTTL = 5 * time.Minute

// Store reads feature flags, tenant-scoped, cache-first.
type Store struct {
	db      *database.Client
	redis   *redis.Client
	globals map[string]bool // process-wide defaults, e.g. loaded from brain.yaml
}

// New constructs a Store. globals supplies the default value for any flag
// with no tenant-specific override row.
func New(db *database.Client, rdb *redis.Client, globals map[string]bool) *Store {
	if globals == nil {
		globals = map[string]bool{}
	}
	return &Store{db: db, redis: rdb, globals: globals}
}

func cacheKey(tenantID, name string) string {
	return "brain:flag:" + tenantID + ":" + name
}

// IsEnabled reports whether flag name is enabled for tenantID: a
// tenant-specific row wins over the process-wide default.
func (s *Store) IsEnabled(ctx context.Context, tenantID, name string) (bool, error) {
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, cacheKey(tenantID, name)).Result(); err == nil {
			return raw == "1", nil
		}
	}

	var enabled bool
	found := false
	err := s.db.WithTenant(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT enabled FROM feature_flags WHERE tenant_id = $1 AND name = $2`,
			tenantID, name,
		)
		scanErr := row.Scan(&enabled)
		if scanErr == sql.ErrNoRows {
			return nil
		}
		found = scanErr == nil
		return scanErr
	})
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("load feature flag: %w", err)
	}
	if !found {
		enabled = s.globals[name]
	}

	if s.redis != nil {
		val := "0"
		if enabled {
			val = "1"
		}
		_ = s.redis.Set(ctx, cacheKey(tenantID, name), val, cacheTTL).Err()
	}
	return enabled, nil
}

// SetOverride writes a tenant-specific override and invalidates the cache.
func (s *Store) SetOverride(ctx context.Context, tenantID, name string, enabled bool) error {
	err := s.db.WithTenant(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO feature_flags (tenant_id, name, enabled) VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id, name) DO UPDATE SET enabled = EXCLUDED.enabled`,
			tenantID, name, enabled,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("set feature flag override: %w", err)
	}
	if s.redis != nil {
		_ = s.redis.Del(ctx, cacheKey(tenantID, name)).Err()
	}
	return nil
}
