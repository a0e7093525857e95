package platform

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepository grants and revokes course-context role assignments.
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a role repository.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

// Assign grants the role to the user in the course context. Re-assigning an
// already held role is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, roleID, userID, courseID int64) error {
	const q = `INSERT INTO role_assignments (role_id, user_id, course_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id, user_id, course_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, q, roleID, userID, courseID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// Unassign revokes the role from the user in the course context.
func (r *RoleRepository) Unassign(ctx context.Context, roleID, userID, courseID int64) error {
	const q = `DELETE FROM role_assignments WHERE role_id = $1 AND user_id = $2 AND course_id = $3`
	if _, err := r.pool.Exec(ctx, q, roleID, userID, courseID); err != nil {
		return fmt.Errorf("unassign role: %w", err)
	}
	return nil
}
