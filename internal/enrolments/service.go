package enrolments

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/coursebridge/backend/internal/models"
)

// UserDirectory looks up platform users.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// CourseDirectory looks up platform courses.
type CourseDirectory interface {
	Exists(ctx context.Context, courseID int64) (bool, error)
}

// RoleAssigner grants and revokes the enrolment role in a course context.
type RoleAssigner interface {
	Assign(ctx context.Context, roleID, userID, courseID int64) error
	Unassign(ctx context.Context, roleID, userID, courseID int64) error
}

// RecompletionChecker answers whether recompletion support is installed and
// how a course is configured. May be backed by a collaborator that is simply
// absent, in which case Installed returns false.
type RecompletionChecker interface {
	Installed(ctx context.Context) (bool, error)
	CourseConfig(ctx context.Context, courseID int64) (*models.RecompletionConfig, error)
}

// Service orchestrates the booking enrolment lifecycle. Every mutating
// operation runs inside one store transaction; any validation failure rolls
// the whole call back.
type Service struct {
	store        TxStore
	users        UserDirectory
	courses      CourseDirectory
	roles        RoleAssigner
	recompletion RecompletionChecker
	roleID       int64
	logger       *zap.Logger
}

// NewService creates the enrolment lifecycle service. roleID is the platform
// role assigned to every booking-enrolled user.
func NewService(store TxStore, users UserDirectory, courses CourseDirectory, roles RoleAssigner, recompletion RecompletionChecker, roleID int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		users:        users,
		courses:      courses,
		roles:        roles,
		recompletion: recompletion,
		roleID:       roleID,
		logger:       logger,
	}
}

// CreateParams are the inputs of Create. TimeStart/TimeEnd of 0 leave the
// bound open.
type CreateParams struct {
	UserID              int64
	CourseID            int64
	BookingID           string
	TimeStart           int64
	TimeEnd             int64
	Suspend             bool
	RequireRecompletion bool
}

// CreateResult identifies the enrolment produced by Create.
type CreateResult struct {
	UserEnrolmentID int64  `json:"enrolment_id"`
	UserID          int64  `json:"user_id"`
	CourseID        int64  `json:"course_id"`
	BookingID       string `json:"booking_id"`
}

// EditParams are the inputs of Edit. Nil pointers leave the field unchanged;
// unsupplied fields keep their stored values for both validation and
// persistence.
type EditParams struct {
	UserEnrolmentID int64
	BookingID       *string
	TimeStart       *int64
	TimeEnd         *int64
	Suspend         *bool
}

// Create enrols a user into a course for one external booking. A fresh
// container is created per booking; the first failed validation aborts and
// rolls back the transaction.
func (s *Service) Create(ctx context.Context, p CreateParams) (*CreateResult, error) {
	var res *CreateResult
	err := s.store.InTx(ctx, func(st Store) error {
		ok, err := s.users.Exists(ctx, p.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return NewError(KindUserNotFound, strconv.FormatInt(p.UserID, 10))
		}

		if p.BookingID == "" {
			return NewError(KindBookingIDEmpty, "")
		}

		exists, err := st.ContainerExists(ctx, p.BookingID, 0)
		if err != nil {
			return err
		}
		if exists {
			return NewError(KindBookingIDDuplicate, p.BookingID)
		}

		if p.TimeStart < 0 {
			return NewError(KindTimeStartInvalid, "")
		}
		if p.TimeEnd < 0 {
			return NewError(KindTimeEndInvalid, "")
		}
		if p.TimeStart > 0 && p.TimeEnd > 0 && p.TimeStart > p.TimeEnd {
			return NewError(KindTimeStartEndOrder, "")
		}

		windows, err := st.ListUserWindows(ctx, p.CourseID, p.UserID)
		if err != nil {
			return err
		}
		if overlapExists(p.TimeStart, p.TimeEnd, windows, 0) {
			return NewError(KindBookingOverlap, "")
		}

		if p.RequireRecompletion {
			if err := s.checkRecompletion(ctx, p.CourseID, KindRecompletionNotExpectable); err != nil {
				return err
			}
		}

		containerID, err := st.CreateContainer(ctx, p.CourseID, p.BookingID)
		if err != nil {
			return err
		}

		status := models.EnrolmentActive
		if p.Suspend {
			status = models.EnrolmentSuspended
		}
		ueID, err := st.CreateUserEnrolment(ctx, containerID, p.UserID, s.roleID, p.TimeStart, p.TimeEnd, status)
		if err != nil {
			return err
		}

		if err := s.roles.Assign(ctx, s.roleID, p.UserID, p.CourseID); err != nil {
			return err
		}

		res = &CreateResult{
			UserEnrolmentID: ueID,
			UserID:          p.UserID,
			CourseID:        p.CourseID,
			BookingID:       p.BookingID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user enrolled",
		zap.Int64("enrolment_id", res.UserEnrolmentID),
		zap.Int64("user_id", res.UserID),
		zap.Int64("course_id", res.CourseID),
		zap.String("booking_id", res.BookingID),
	)
	return res, nil
}

// Edit changes the supplied fields of an existing booking enrolment. The
// overlap check substitutes stored values for unsupplied bounds and ignores
// the booking's own container.
func (s *Service) Edit(ctx context.Context, p EditParams) error {
	return s.store.InTx(ctx, func(st Store) error {
		ue, container, err := s.resolve(ctx, st, p.UserEnrolmentID)
		if err != nil {
			return err
		}

		if p.BookingID != nil {
			if *p.BookingID == "" {
				return NewError(KindBookingIDEmpty, "")
			}
			exists, err := st.ContainerExists(ctx, *p.BookingID, container.ID)
			if err != nil {
				return err
			}
			if exists {
				return NewError(KindBookingIDDuplicateMustChange, *p.BookingID)
			}
		}

		if p.TimeStart != nil && *p.TimeStart < 0 {
			return NewError(KindTimeStartInvalid, "")
		}
		if p.TimeEnd != nil && *p.TimeEnd < 0 {
			return NewError(KindTimeEndInvalid, "")
		}
		if p.TimeStart != nil && p.TimeEnd != nil &&
			*p.TimeStart > 0 && *p.TimeEnd > 0 && *p.TimeStart > *p.TimeEnd {
			return NewError(KindTimeStartEndOrder, "")
		}

		timeStart := ue.TimeStart
		if p.TimeStart != nil {
			timeStart = *p.TimeStart
		}
		timeEnd := ue.TimeEnd
		if p.TimeEnd != nil {
			timeEnd = *p.TimeEnd
		}

		if p.TimeStart != nil || p.TimeEnd != nil {
			windows, err := st.ListUserWindows(ctx, container.CourseID, ue.UserID)
			if err != nil {
				return err
			}
			if overlapExists(timeStart, timeEnd, windows, container.ID) {
				return NewError(KindBookingOverlap, "")
			}
		}

		if p.TimeStart != nil || p.TimeEnd != nil || p.Suspend != nil {
			status := ue.Status
			if p.Suspend != nil {
				status = models.EnrolmentActive
				if *p.Suspend {
					status = models.EnrolmentSuspended
				}
			}
			if err := st.UpdateUserEnrolment(ctx, ue.ID, timeStart, timeEnd, status); err != nil {
				return err
			}
		}

		if p.BookingID != nil {
			if err := st.UpdateContainerBookingID(ctx, container.ID, *p.BookingID); err != nil {
				return err
			}
		}

		s.logger.Info("enrolment edited", zap.Int64("enrolment_id", ue.ID))
		return nil
	})
}

// Unenrol removes a booking enrolment. The container is deleted eagerly: one
// booking maps to one container, so removing the sole enrolment would leave
// the container orphaned.
func (s *Service) Unenrol(ctx context.Context, userEnrolmentID int64) error {
	return s.store.InTx(ctx, func(st Store) error {
		ue, container, err := s.resolve(ctx, st, userEnrolmentID)
		if err != nil {
			return err
		}

		if err := s.roles.Unassign(ctx, s.roleID, ue.UserID, container.CourseID); err != nil {
			return err
		}
		if err := st.DeleteContainerAndEnrolments(ctx, container.ID); err != nil {
			return err
		}

		s.logger.Info("user unenrolled",
			zap.Int64("enrolment_id", ue.ID),
			zap.Int64("user_id", ue.UserID),
			zap.Int64("course_id", container.CourseID),
		)
		return nil
	})
}

// List returns the booking-backed enrolments of a course ordered by enrolment
// id. An existing course without enrolments yields an empty list.
func (s *Service) List(ctx context.Context, courseID int64) ([]models.CourseEnrolment, error) {
	ok, err := s.courses.Exists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewError(KindCourseNotExist, strconv.FormatInt(courseID, 10))
	}
	list, err := s.store.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.CourseEnrolment{}
	}
	return list, nil
}

// resolve performs the two-step enrolment lookup: user enrolment first, then
// its container. A missing container signals an inconsistent store.
func (s *Service) resolve(ctx context.Context, st Store, userEnrolmentID int64) (*models.UserEnrolment, *models.EnrolmentContainer, error) {
	ue, err := st.GetUserEnrolment(ctx, userEnrolmentID)
	if err != nil {
		return nil, nil, err
	}
	if ue == nil {
		return nil, nil, NewError(KindEnrolNoUserInstance, strconv.FormatInt(userEnrolmentID, 10))
	}
	container, err := st.GetContainer(ctx, ue.ContainerID)
	if err != nil {
		return nil, nil, err
	}
	if container == nil {
		return nil, nil, NewError(KindEnrolNoInstance, strconv.FormatInt(userEnrolmentID, 10))
	}
	return ue, container, nil
}

// checkRecompletion verifies that recompletion support is installed and that
// the course is configured in on-demand mode. notInstalledKind picks the
// error used when support is missing.
func (s *Service) checkRecompletion(ctx context.Context, courseID int64, notInstalledKind ErrorKind) error {
	installed := false
	if s.recompletion != nil {
		var err error
		installed, err = s.recompletion.Installed(ctx)
		if err != nil {
			return err
		}
	}
	if !installed {
		return NewError(notInstalledKind, "")
	}
	cfg, err := s.recompletion.CourseConfig(ctx, courseID)
	if err != nil {
		return err
	}
	ref := strconv.FormatInt(courseID, 10)
	if cfg == nil || !cfg.Enabled {
		return NewError(KindRecompletionNotEnabled, ref)
	}
	if cfg.Mode != models.RecompletionOnDemand {
		return NewError(KindRecompletionNotOnDemand, ref)
	}
	return nil
}
