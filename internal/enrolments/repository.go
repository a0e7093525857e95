package enrolments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursebridge/backend/internal/models"
)

const uniqueViolation = "23505"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the PostgreSQL-backed booking store.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewRepository creates an enrolments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// InTx runs fn against a Store bound to a single transaction. An error from
// fn rolls back every write made through that Store.
func (r *Repository) InTx(ctx context.Context, fn func(Store) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repository{pool: r.pool, q: tx})
	})
}

// ContainerExists reports whether a container with the booking ID exists,
// ignoring excludeContainerID when non-zero.
func (r *Repository) ContainerExists(ctx context.Context, bookingID string, excludeContainerID int64) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM enrolment_containers WHERE booking_id = $1 AND ($2 = 0 OR id <> $2))`
	var exists bool
	if err := r.q.QueryRow(ctx, q, bookingID, excludeContainerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("container exists: %w", err)
	}
	return exists, nil
}

// CreateContainer inserts a fresh enabled container for one booking.
func (r *Repository) CreateContainer(ctx context.Context, courseID int64, bookingID string) (int64, error) {
	const q = `INSERT INTO enrolment_containers (course_id, booking_id, enabled, time_created, time_modified)
		VALUES ($1, $2, TRUE, EXTRACT(EPOCH FROM NOW())::BIGINT, EXTRACT(EPOCH FROM NOW())::BIGINT)
		RETURNING id`
	var id int64
	if err := r.q.QueryRow(ctx, q, courseID, bookingID).Scan(&id); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// A concurrent writer committed the same booking ID first.
			return 0, NewError(KindBookingIDDuplicate, bookingID)
		}
		return 0, fmt.Errorf("create container: %w", err)
	}
	return id, nil
}

// CreateUserEnrolment inserts the user enrolment belonging to a container.
func (r *Repository) CreateUserEnrolment(ctx context.Context, containerID, userID, roleID, timeStart, timeEnd int64, status models.EnrolmentStatus) (int64, error) {
	const q = `INSERT INTO user_enrolments (container_id, user_id, role_id, time_start, time_end, status, time_created, time_modified)
		VALUES ($1, $2, $3, $4, $5, $6, EXTRACT(EPOCH FROM NOW())::BIGINT, EXTRACT(EPOCH FROM NOW())::BIGINT)
		RETURNING id`
	var id int64
	if err := r.q.QueryRow(ctx, q, containerID, userID, roleID, timeStart, timeEnd, int(status)).Scan(&id); err != nil {
		return 0, fmt.Errorf("create user enrolment: %w", err)
	}
	return id, nil
}

// GetUserEnrolment returns a user enrolment by id, or nil if absent.
func (r *Repository) GetUserEnrolment(ctx context.Context, id int64) (*models.UserEnrolment, error) {
	const q = `SELECT id, container_id, user_id, time_start, time_end, status, time_created, time_modified
		FROM user_enrolments WHERE id = $1`
	var ue models.UserEnrolment
	var status int
	err := r.q.QueryRow(ctx, q, id).Scan(&ue.ID, &ue.ContainerID, &ue.UserID, &ue.TimeStart, &ue.TimeEnd, &status, &ue.TimeCreated, &ue.TimeModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user enrolment: %w", err)
	}
	ue.Status = models.EnrolmentStatus(status)
	return &ue, nil
}

// GetContainer returns a container by id, or nil if absent.
func (r *Repository) GetContainer(ctx context.Context, id int64) (*models.EnrolmentContainer, error) {
	const q = `SELECT id, course_id, booking_id, enabled, time_created, time_modified
		FROM enrolment_containers WHERE id = $1`
	var c models.EnrolmentContainer
	err := r.q.QueryRow(ctx, q, id).Scan(&c.ID, &c.CourseID, &c.BookingID, &c.Enabled, &c.TimeCreated, &c.TimeModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get container: %w", err)
	}
	return &c, nil
}

// UpdateUserEnrolment rewrites the window and status of a user enrolment.
func (r *Repository) UpdateUserEnrolment(ctx context.Context, id, timeStart, timeEnd int64, status models.EnrolmentStatus) error {
	const q = `UPDATE user_enrolments
		SET time_start = $2, time_end = $3, status = $4, time_modified = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, q, id, timeStart, timeEnd, int(status)); err != nil {
		return fmt.Errorf("update user enrolment: %w", err)
	}
	return nil
}

// UpdateContainerBookingID rewrites the booking ID a container is backed by.
func (r *Repository) UpdateContainerBookingID(ctx context.Context, containerID int64, bookingID string) error {
	const q = `UPDATE enrolment_containers
		SET booking_id = $2, time_modified = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, q, containerID, bookingID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return NewError(KindBookingIDDuplicateMustChange, bookingID)
		}
		return fmt.Errorf("update container booking id: %w", err)
	}
	return nil
}

// DeleteContainerAndEnrolments removes a container and its user enrolment(s).
// Enrolment rows go first so a partial failure never leaves rows pointing at a
// missing container.
func (r *Repository) DeleteContainerAndEnrolments(ctx context.Context, containerID int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM user_enrolments WHERE container_id = $1`, containerID); err != nil {
		return fmt.Errorf("delete user enrolments: %w", err)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM enrolment_containers WHERE id = $1`, containerID); err != nil {
		return fmt.Errorf("delete container: %w", err)
	}
	return nil
}

// ListByCourse returns the booking-backed enrolments of a course ordered by
// user enrolment id.
func (r *Repository) ListByCourse(ctx context.Context, courseID int64) ([]models.CourseEnrolment, error) {
	const q = `SELECT ue.id, ue.user_id, c.booking_id, ue.time_start, ue.time_end, ue.status, c.id
		FROM user_enrolments ue
		JOIN enrolment_containers c ON ue.container_id = c.id
		WHERE c.course_id = $1
		ORDER BY ue.id`
	rows, err := r.q.Query(ctx, q, courseID)
	if err != nil {
		return nil, fmt.Errorf("list by course: %w", err)
	}
	defer rows.Close()
	var list []models.CourseEnrolment
	for rows.Next() {
		var e models.CourseEnrolment
		var status int
		if err := rows.Scan(&e.UserEnrolmentID, &e.UserID, &e.BookingID, &e.TimeStart, &e.TimeEnd, &status, &e.ContainerID); err != nil {
			return nil, fmt.Errorf("scan course enrolment: %w", err)
		}
		e.Suspend = models.EnrolmentStatus(status) == models.EnrolmentSuspended
		list = append(list, e)
	}
	return list, rows.Err()
}

// ListUserWindows returns the enrolment windows of one user in one course.
func (r *Repository) ListUserWindows(ctx context.Context, courseID, userID int64) ([]Window, error) {
	const q = `SELECT c.id, ue.time_start, ue.time_end
		FROM user_enrolments ue
		JOIN enrolment_containers c ON ue.container_id = c.id
		WHERE c.course_id = $1 AND ue.user_id = $2`
	rows, err := r.q.Query(ctx, q, courseID, userID)
	if err != nil {
		return nil, fmt.Errorf("list user windows: %w", err)
	}
	defer rows.Close()
	var windows []Window
	for rows.Next() {
		var w Window
		if err := rows.Scan(&w.ContainerID, &w.TimeStart, &w.TimeEnd); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// ListOrphanedContainers returns containers with zero user enrolments.
func (r *Repository) ListOrphanedContainers(ctx context.Context) ([]models.EnrolmentContainer, error) {
	const q = `SELECT c.id, c.course_id, c.booking_id, c.enabled, c.time_created, c.time_modified
		FROM enrolment_containers c
		WHERE NOT EXISTS (SELECT 1 FROM user_enrolments ue WHERE ue.container_id = c.id)`
	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list orphaned containers: %w", err)
	}
	defer rows.Close()
	var list []models.EnrolmentContainer
	for rows.Next() {
		var c models.EnrolmentContainer
		if err := rows.Scan(&c.ID, &c.CourseID, &c.BookingID, &c.Enabled, &c.TimeCreated, &c.TimeModified); err != nil {
			return nil, fmt.Errorf("scan container: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
