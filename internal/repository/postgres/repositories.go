package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// pgConn is a pool-like handle: *pgxpool.Pool in production, pgxmock in tests.
type pgConn interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users  *UserRepository
	Roles  *RoleRepository
	Locker *RoleLocker
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(conn pgConn) *Repositories {
	users := NewUserRepository(conn)
	roles := NewRoleRepository(conn)
	return &Repositories{
		Users:  users,
		Roles:  roles,
		Locker: NewRoleLocker(conn, roles, users),
	}
}
