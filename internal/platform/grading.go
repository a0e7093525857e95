package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursebridge/backend/internal/models"
)

// GradingRepository reads completion and grade state from the platform's
// grading tables and recalculates final grades on request.
type GradingRepository struct {
	pool *pgxpool.Pool
}

// NewGradingRepository creates a grading repository.
func NewGradingRepository(pool *pgxpool.Pool) *GradingRepository {
	return &GradingRepository{pool: pool}
}

// CompletionEnabled reports whether completion tracking is enabled for the
// course. An unknown course counts as not completable.
func (r *GradingRepository) CompletionEnabled(ctx context.Context, courseID int64) (bool, error) {
	const q = `SELECT enable_completion FROM courses WHERE id = $1`
	var enabled bool
	err := r.pool.QueryRow(ctx, q, courseID).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("completion enabled: %w", err)
	}
	return enabled, nil
}

// TimeCompleted returns the completion timestamp for user+course and whether
// a completion record exists. A record with a null timestamp reports 0.
func (r *GradingRepository) TimeCompleted(ctx context.Context, courseID, userID int64) (int64, bool, error) {
	const q = `SELECT COALESCE(time_completed, 0) FROM course_completions
		WHERE course_id = $1 AND user_id = $2`
	var tc int64
	err := r.pool.QueryRow(ctx, q, courseID, userID).Scan(&tc)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("time completed: %w", err)
	}
	return tc, true, nil
}

// CourseGradeItem returns the course-level grade item, or nil if the course
// has none.
func (r *GradingRepository) CourseGradeItem(ctx context.Context, courseID int64) (*models.GradeItem, error) {
	const q = `SELECT id, course_id, grade_min, grade_max, grade_pass
		FROM grade_items WHERE course_id = $1 AND item_type = 'course'`
	var item models.GradeItem
	err := r.pool.QueryRow(ctx, q, courseID).Scan(&item.ID, &item.CourseID, &item.GradeMin, &item.GradeMax, &item.GradePass)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("course grade item: %w", err)
	}
	return &item, nil
}

// UserGrade returns the user's final grade for an item, or nil if the user
// has no final grade yet.
func (r *GradingRepository) UserGrade(ctx context.Context, itemID, userID int64) (*models.Grade, error) {
	const q = `SELECT item_id, user_id, final_grade FROM grade_grades
		WHERE item_id = $1 AND user_id = $2 AND final_grade IS NOT NULL`
	var g models.Grade
	err := r.pool.QueryRow(ctx, q, itemID, userID).Scan(&g.ItemID, &g.UserID, &g.FinalGrade)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user grade: %w", err)
	}
	return &g, nil
}

// Regrade recalculates final grades for a course from the raw grades,
// clamped into the grade item's bounds. Run by the worker when a regrade job
// arrives.
func (r *GradingRepository) Regrade(ctx context.Context, courseID int64) error {
	const q = `UPDATE grade_grades gg
		SET final_grade = LEAST(GREATEST(gg.raw_grade, gi.grade_min), gi.grade_max),
			time_modified = NOW()
		FROM grade_items gi
		WHERE gi.id = gg.item_id AND gi.course_id = $1 AND gg.raw_grade IS NOT NULL`
	if _, err := r.pool.Exec(ctx, q, courseID); err != nil {
		return fmt.Errorf("regrade course %d: %w", courseID, err)
	}
	return nil
}
