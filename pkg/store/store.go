// Package store provides hand-written pgx/database-sql persistence for the
// Brain's domain models. The ent schema package documents table shape; this
// package is what actually reads and writes rows, with every query running
// inside Client.WithTenant so row-level security enforces tenant isolation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/codeready-toolchain/brain/pkg/database"
)

// Store is the entry point for all persistence operations. It holds no
// state of its own beyond the underlying database client; every method
// opens (or reuses, via WithTenant) a transaction scoped to one tenant.
type Store struct {
	db *database.Client
}

// New constructs a Store backed by db.
func New(db *database.Client) *Store {
	return &Store{db: db}
}

// DB returns the underlying database client, for tests that need to set up
// or inspect fixture rows directly.
func (s *Store) DB() *database.Client {
	return s.db
}

// ErrNotFound is returned when a lookup by id finds no matching row.
var ErrNotFound = fmt.Errorf("store: record not found")

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// execTx runs fn inside a tenant-scoped transaction and maps sql.ErrNoRows
// to ErrNotFound for callers that expect exactly one row.
func execTx(ctx context.Context, db *database.Client, tenantID string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	err := db.WithTenant(ctx, tenantID, fn)
	if err != nil {
		return err
	}
	return nil
}

// escapeLike escapes the special characters ILIKE/LIKE patterns recognize
// so substring search on user-supplied text (names, request bodies) never
// lets a caller inject a wildcard.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
