// Package platform holds the repositories for the course platform's own
// tables: users, courses, roles, grading/completion state and recompletion
// configuration. The sync core only ever talks to these through the small
// interfaces declared by its consumers.
package platform

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository looks up platform users.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Exists reports whether a non-deleted user with the id exists.
func (r *UserRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND NOT deleted)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}
