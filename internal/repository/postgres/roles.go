package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/core/port"
	"github.com/gtaroom/GTA-GAME-sub003/internal/repository"
)

const customRolesTable = "rbac.custom_roles"

var roleColumns = []string{
	"id",
	"name",
	"description",
	"permissions",
	"is_active",
	"created_by",
	"updated_by",
	"created_at",
	"updated_at",
}

// RoleRepository persists custom roles with their permission sets as JSONB.
type RoleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a PostgreSQL-backed role repository.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	return &RoleRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository configured to execute within the provided transaction.
func (r *RoleRepository) WithTx(tx pgx.Tx) *RoleRepository {
	if tx == nil {
		return r
	}
	return &RoleRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new custom role. A duplicate name yields repository.ErrConflict.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) error {
	permissions, err := encodePermissions(role.Permissions)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert(customRolesTable).
		Columns(roleColumns...).
		Values(
			role.ID,
			role.Name,
			role.Description,
			permissions,
			role.IsActive,
			role.CreatedBy,
			role.UpdatedBy,
			role.CreatedAt,
			role.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert role: %w", err)
	}

	return nil
}

// GetByID retrieves a role by id regardless of its active flag.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, "by id")
}

// GetByName retrieves a role by exact name regardless of its active flag.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"name": name}, "by name")
}

// GetActiveByName retrieves an active role by exact name.
func (r *RoleRepository) GetActiveByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getOne(ctx, squirrel.Eq{"name": name, "is_active": true}, "active by name")
}

// ListActive returns active roles, newest first.
func (r *RoleRepository) ListActive(ctx context.Context) ([]domain.Role, error) {
	stmt, args, err := r.builder.Select(roleColumns...).
		From(customRolesTable).
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, nil
}

// Update overwrites the mutable columns of a role.
func (r *RoleRepository) Update(ctx context.Context, role domain.Role) error {
	permissions, err := encodePermissions(role.Permissions)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Update(customRolesTable).
		Set("name", role.Name).
		Set("description", role.Description).
		Set("permissions", permissions).
		Set("is_active", role.IsActive).
		Set("updated_by", role.UpdatedBy).
		Set("updated_at", role.UpdatedAt).
		Where(squirrel.Eq{"id": role.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("update role: %w", err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a role by id.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete(customRolesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete role sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}

	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *RoleRepository) getOne(ctx context.Context, where squirrel.Eq, label string) (*domain.Role, error) {
	stmt, args, err := r.builder.Select(roleColumns...).
		From(customRolesTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role %s sql: %w", label, err)
	}

	role, err := scanRole(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select role %s: %w", label, err)
	}

	return role, nil
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var (
		role        domain.Role
		permissions []byte
	)

	if err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&permissions,
		&role.IsActive,
		&role.CreatedBy,
		&role.UpdatedBy,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan role: %w", err)
	}

	set, err := decodePermissions(permissions)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", role.Name, err)
	}
	role.Permissions = set

	return &role, nil
}

func encodePermissions(set domain.PermissionSet) ([]byte, error) {
	if set == nil {
		set = domain.PermissionSet{}
	}
	payload, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encode permissions: %w", err)
	}
	return payload, nil
}

// decodePermissions rejects rows holding non-boolean values.
func decodePermissions(payload []byte) (domain.PermissionSet, error) {
	if len(payload) == 0 {
		return domain.PermissionSet{}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}

	return domain.ParsePermissionSet(raw)
}

var _ port.RoleRepository = (*RoleRepository)(nil)
