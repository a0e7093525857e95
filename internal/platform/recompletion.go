package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursebridge/backend/internal/models"
)

// RecompletionRepository is the recompletion collaborator: an optionally
// installed companion whose per-course configuration gates completion resets.
type RecompletionRepository struct {
	pool *pgxpool.Pool
}

// NewRecompletionRepository creates a recompletion repository.
func NewRecompletionRepository(pool *pgxpool.Pool) *RecompletionRepository {
	return &RecompletionRepository{pool: pool}
}

// Installed reports whether recompletion support is present, detected by the
// existence of its configuration table.
func (r *RecompletionRepository) Installed(ctx context.Context) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = 'recompletion_config')`
	var installed bool
	if err := r.pool.QueryRow(ctx, q).Scan(&installed); err != nil {
		return false, fmt.Errorf("recompletion installed: %w", err)
	}
	return installed, nil
}

// CourseConfig returns a course's recompletion configuration. A course with
// no row is reported as not enabled.
func (r *RecompletionRepository) CourseConfig(ctx context.Context, courseID int64) (*models.RecompletionConfig, error) {
	const q = `SELECT mode FROM recompletion_config WHERE course_id = $1`
	var mode string
	err := r.pool.QueryRow(ctx, q, courseID).Scan(&mode)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.RecompletionConfig{CourseID: courseID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recompletion config: %w", err)
	}
	return &models.RecompletionConfig{CourseID: courseID, Enabled: mode != "", Mode: mode}, nil
}

// ResetUser clears the user's completion record and grades in the course.
// Each item is attempted independently; failures come back as warnings so the
// caller can forward them without failing the whole reset.
func (r *RecompletionRepository) ResetUser(ctx context.Context, userID, courseID int64) ([]string, error) {
	var warnings []string

	const delCompletion = `DELETE FROM course_completions WHERE course_id = $1 AND user_id = $2`
	if _, err := r.pool.Exec(ctx, delCompletion, courseID, userID); err != nil {
		warnings = append(warnings, fmt.Sprintf("could not reset course completion: %v", err))
	}

	const delGrades = `UPDATE grade_grades gg
		SET final_grade = NULL, raw_grade = NULL, time_modified = NOW()
		FROM grade_items gi
		WHERE gi.id = gg.item_id AND gi.course_id = $1 AND gg.user_id = $2`
	if _, err := r.pool.Exec(ctx, delGrades, courseID, userID); err != nil {
		warnings = append(warnings, fmt.Sprintf("could not reset grades: %v", err))
	}

	return warnings, nil
}
