package enrolments

import (
	"context"

	"github.com/coursebridge/backend/internal/models"
)

// Store is the persistence contract for enrolment containers and user
// enrolments. Lookups return (nil, nil) when the record does not exist; the
// caller decides which domain error that maps to. All operations are safe to
// run inside a transaction obtained from InTx.
type Store interface {
	// ContainerExists reports whether any container uses the booking ID.
	// excludeContainerID, when non-zero, ignores that container (used when a
	// booking is edited against itself).
	ContainerExists(ctx context.Context, bookingID string, excludeContainerID int64) (bool, error)

	// CreateContainer inserts a fresh container for one booking and returns
	// its id. A concurrent writer racing on the same booking ID loses with a
	// KindBookingIDDuplicate error, backed by the unique index.
	CreateContainer(ctx context.Context, courseID int64, bookingID string) (int64, error)

	CreateUserEnrolment(ctx context.Context, containerID, userID, roleID, timeStart, timeEnd int64, status models.EnrolmentStatus) (int64, error)

	GetUserEnrolment(ctx context.Context, id int64) (*models.UserEnrolment, error)
	GetContainer(ctx context.Context, id int64) (*models.EnrolmentContainer, error)

	UpdateUserEnrolment(ctx context.Context, id, timeStart, timeEnd int64, status models.EnrolmentStatus) error
	UpdateContainerBookingID(ctx context.Context, containerID int64, bookingID string) error

	// DeleteContainerAndEnrolments removes a container together with its user
	// enrolment(s). Deleting an already-removed container is a no-op.
	DeleteContainerAndEnrolments(ctx context.Context, containerID int64) error

	// ListByCourse returns all booking-backed enrolments of a course, ordered
	// by user enrolment id ascending.
	ListByCourse(ctx context.Context, courseID int64) ([]models.CourseEnrolment, error)

	// ListUserWindows returns the enrolment windows of one user in one course,
	// the read path of the overlap check.
	ListUserWindows(ctx context.Context, courseID, userID int64) ([]Window, error)

	// ListOrphanedContainers returns containers without any user enrolment.
	ListOrphanedContainers(ctx context.Context) ([]models.EnrolmentContainer, error)
}

// TxStore is a Store that can run a function against a transaction-bound
// Store. The function's error aborts and rolls back the transaction.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}
