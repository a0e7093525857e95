package platform

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CourseRepository looks up platform courses.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository creates a course repository.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// Exists reports whether a course with the id exists.
func (r *CourseRepository) Exists(ctx context.Context, courseID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, courseID).Scan(&exists); err != nil {
		return false, fmt.Errorf("course exists: %w", err)
	}
	return exists, nil
}
