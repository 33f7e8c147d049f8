package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/port"
)

// roleLockClass namespaces role-name advisory locks away from the migrator's.
const roleLockClass int32 = 7_410_301

const lockRoleSQL = `SELECT pg_advisory_xact_lock($1, hashtext($2))`

type txStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RoleLocker runs role-scoped work in one transaction that holds a
// transaction-level advisory lock on the role name. Deleting a role and
// assigning it take the same lock, so a user cannot be handed a role between
// the in-use count and the delete.
type RoleLocker struct {
	db    txStarter
	roles *RoleRepository
	users *UserRepository
}

// NewRoleLocker builds a locker whose scoped repositories are bound to the
// transaction via WithTx.
func NewRoleLocker(db txStarter, roles *RoleRepository, users *UserRepository) *RoleLocker {
	return &RoleLocker{db: db, roles: roles, users: users}
}

// WithRoleLock begins a transaction, locks roleName and runs fn. The
// transaction commits when fn succeeds and rolls back otherwise; fn's error is
// returned unchanged.
func (l *RoleLocker) WithRoleLock(ctx context.Context, roleName string, fn func(ctx context.Context, scope port.RoleScope) error) (err error) {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin role transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, lockRoleSQL, roleLockClass, roleName); err != nil {
		return fmt.Errorf("lock role %q: %w", roleName, err)
	}

	if err = fn(ctx, port.RoleScope{
		Roles: l.roles.WithTx(tx),
		Users: l.users.WithTx(tx),
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit role transaction: %w", err)
	}

	return nil
}

var _ port.RoleLocker = (*RoleLocker)(nil)
