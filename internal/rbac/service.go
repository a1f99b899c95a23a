package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/psi-backoffice/psi/internal/platform/db"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// PermissionSource resolves the permissions granted to a user.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Service orchestrates RBAC operations.
type Service struct {
	db db.DBTX
}

// NewService constructs a Service backed by a pool or transaction.
func NewService(conn db.DBTX) *Service {
	return &Service{db: conn}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, description FROM role ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// RoleByName fetches a role by its unique name.
func (s *Service) RoleByName(ctx context.Context, name string) (Role, error) {
	var r Role
	err := s.db.QueryRow(ctx, `SELECT id, name, description FROM role WHERE name = $1`, strings.TrimSpace(name)).
		Scan(&r.ID, &r.Name, &r.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return r, nil
}

// EnsureRole upserts a role and attaches the named permissions to it,
// creating missing permissions on the way.
func (s *Service) EnsureRole(ctx context.Context, name, description string, perms []string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	var role Role
	err := s.db.QueryRow(ctx, `
		INSERT INTO role (name, description) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, name, description`, name, strings.TrimSpace(description)).
		Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: ensure role %s: %w", name, err)
	}
	for _, p := range normalizePermissions(perms) {
		perm, err := s.EnsurePermission(ctx, p, "")
		if err != nil {
			return Role{}, err
		}
		if _, err := s.db.Exec(ctx, `
			INSERT INTO role_permission (role_id, permission_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, role.ID, perm.ID); err != nil {
			return Role{}, fmt.Errorf("rbac: attach %s: %w", p, err)
		}
	}
	return role, nil
}

// EnsurePermission upserts a permission ensuring description is stored.
func (s *Service) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	var p Permission
	err := s.db.QueryRow(ctx, `
		INSERT INTO permission (name, description) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET description = CASE WHEN EXCLUDED.description = '' THEN permission.description ELSE EXCLUDED.description END
		RETURNING id, name, description`, strings.TrimSpace(name), strings.TrimSpace(description)).
		Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		return Permission{}, fmt.Errorf("rbac: ensure permission %s: %w", name, err)
	}
	return p, nil
}

// AssignRole assigns a role to the given user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO user_role (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

// EffectivePermissions returns deduplicated permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT p.name
		FROM user_role ur
		JOIN role_permission rp ON rp.role_id = ur.role_id
		JOIN permission p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		perms = append(perms, name)
	}
	return perms, rows.Err()
}
