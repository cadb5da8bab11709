// Package identity is the Brain's read-only view onto the identity/role
// store: chat-account-id to internal user, role level, and department.
// Owned by an external system in principle; backed directly by Postgres
// here.
package identity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codeready-toolchain/brain/pkg/database"
)

// User is the resolved identity of a chat sender.
type User struct {
	ID            string
	TenantID      string
	ChatAccountID string
	DisplayName   string
	DepartmentID  string
	RoleLevel     int
}

// Department is one node in the department tree; Brain reads these as
// rooted lists bounded by depth rather than following in-memory cycles.
type Department struct {
	ID       string
	Name     string
	ParentID string
}

// ErrUnknownUser is returned when a chat account has no identity row,
// which Ingress treats as fail-closed.
var ErrUnknownUser = fmt.Errorf("identity: unknown chat account")

// Store resolves chat-account identities against Postgres.
type Store struct {
	db *database.Client
}

// New constructs an identity Store.
func New(db *database.Client) *Store {
	return &Store{db: db}
}

// ResolveUser looks up the internal user and role level for a chat
// account, tenant-scoped. Role level is read from the joined role row so
// Decision can gate capabilities by required_role_level without a second
// round trip.
func (s *Store) ResolveUser(ctx context.Context, tenantID, chatAccountID string) (*User, error) {
	var u User
	err := s.db.WithTenant(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT u.id, u.tenant_id, u.chat_account_id, u.display_name,
			       COALESCE(u.department_id::text, ''), COALESCE(r.role_level, 1)
			FROM identity_users u
			LEFT JOIN identity_roles r ON r.id = u.role_id
			WHERE u.tenant_id = $1 AND u.chat_account_id = $2`,
			tenantID, chatAccountID,
		)
		return row.Scan(&u.ID, &u.TenantID, &u.ChatAccountID, &u.DisplayName, &u.DepartmentID, &u.RoleLevel)
	})
	if err == sql.ErrNoRows {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return &u, nil
}

// Department returns one department row by id, tenant-scoped.
func (s *Store) Department(ctx context.Context, tenantID, id string) (*Department, error) {
	var d Department
	var parentID sql.NullString
	err := s.db.WithTenant(ctx, tenantID, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, name, COALESCE(parent_id::text, '') FROM identity_departments
			WHERE tenant_id = $1 AND id = $2`,
			tenantID, id,
		)
		return row.Scan(&d.ID, &d.Name, &parentID)
	})
	if err != nil {
		return nil, fmt.Errorf("lookup department: %w", err)
	}
	if parentID.Valid {
		d.ParentID = parentID.String
	}
	return &d, nil
}

// DepartmentChain walks up the parent chain to a bounded depth, returning
// the department and its ancestors, closest first. Bounding depth avoids
// ever needing to detect a cycle in what is guaranteed to be a rooted
// id graph.
func (s *Store) DepartmentChain(ctx context.Context, tenantID, id string, maxDepth int) ([]Department, error) {
	var chain []Department
	current := id
	for i := 0; i < maxDepth && current != ""; i++ {
		d, err := s.Department(ctx, tenantID, current)
		if err != nil {
			break
		}
		chain = append(chain, *d)
		current = d.ParentID
	}
	return chain, nil
}
