// Package completions answers completion and grade queries for booking-backed
// enrolments, and resets completion state through the recompletion
// collaborator.
package completions

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/coursebridge/backend/internal/enrolments"
	"github.com/coursebridge/backend/internal/models"
)

// DefaultMaxBatch caps the number of enrolment ids per completion query.
const DefaultMaxBatch = 100

// Store is the enrolment read path the completion query needs.
type Store interface {
	GetUserEnrolment(ctx context.Context, id int64) (*models.UserEnrolment, error)
	GetContainer(ctx context.Context, id int64) (*models.EnrolmentContainer, error)
}

// GradeReader reads completion and grade state from the grading subsystem.
type GradeReader interface {
	// CompletionEnabled reports whether completion tracking is on for a course.
	CompletionEnabled(ctx context.Context, courseID int64) (bool, error)
	// TimeCompleted returns the completion timestamp for user+course and
	// whether any completion record exists at all.
	TimeCompleted(ctx context.Context, courseID, userID int64) (int64, bool, error)
	// CourseGradeItem returns the course-level grade item, or nil if none.
	CourseGradeItem(ctx context.Context, courseID int64) (*models.GradeItem, error)
	// UserGrade returns a user's final grade for an item, or nil if ungraded.
	UserGrade(ctx context.Context, itemID, userID int64) (*models.Grade, error)
}

// RegradeTrigger requests a recalculation of a course's final grades.
type RegradeTrigger interface {
	TriggerRegrade(ctx context.Context, courseID int64) error
}

// Recompletion is the external collaborator that resets completion state.
type Recompletion interface {
	Installed(ctx context.Context) (bool, error)
	CourseConfig(ctx context.Context, courseID int64) (*models.RecompletionConfig, error)
	// ResetUser resets the user's completion+grade state in a course and
	// returns non-fatal per-item warnings.
	ResetUser(ctx context.Context, userID, courseID int64) ([]string, error)
}

// Service serves batched completion queries and completion resets.
type Service struct {
	store        Store
	grades       GradeReader
	regrade      RegradeTrigger
	recompletion Recompletion
	maxBatch     int
	logger       *zap.Logger
}

// NewService creates a completions service. maxBatch <= 0 falls back to
// DefaultMaxBatch.
func NewService(store Store, grades GradeReader, regrade RegradeTrigger, recompletion Recompletion, maxBatch int, logger *zap.Logger) *Service {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		grades:       grades,
		regrade:      regrade,
		recompletion: recompletion,
		maxBatch:     maxBatch,
		logger:       logger,
	}
}

// GetCompletions returns one completion record per enrolment id, preserving
// input order. A bad id aborts the whole batch. The per-course
// completion-enabled lookup is memoized for this call only, and the first
// touch of a course triggers one regrade recalculation.
func (s *Service) GetCompletions(ctx context.Context, userEnrolmentIDs []int64) ([]models.CompletionRecord, error) {
	if len(userEnrolmentIDs) > s.maxBatch {
		return nil, enrolments.NewError(enrolments.KindRequestTooLarge, strconv.Itoa(s.maxBatch))
	}

	canBeCompleted := make(map[int64]bool)

	records := make([]models.CompletionRecord, 0, len(userEnrolmentIDs))
	for _, id := range userEnrolmentIDs {
		ue, err := s.store.GetUserEnrolment(ctx, id)
		if err != nil {
			return nil, err
		}
		if ue == nil {
			return nil, enrolments.NewError(enrolments.KindEnrolNoUserInstance, strconv.FormatInt(id, 10))
		}
		container, err := s.store.GetContainer(ctx, ue.ContainerID)
		if err != nil {
			return nil, err
		}
		if container == nil {
			return nil, enrolments.NewError(enrolments.KindEnrolNoInstance, strconv.FormatInt(id, 10))
		}

		enabled, seen := canBeCompleted[container.CourseID]
		if !seen {
			enabled, err = s.grades.CompletionEnabled(ctx, container.CourseID)
			if err != nil {
				return nil, err
			}
			canBeCompleted[container.CourseID] = enabled

			// The course grades are read below, so ask for fresh final
			// grades once per course. A queueing hiccup must not fail the
			// read-only batch.
			if err := s.regrade.TriggerRegrade(ctx, container.CourseID); err != nil {
				s.logger.Warn("regrade trigger failed", zap.Int64("course_id", container.CourseID), zap.Error(err))
			}
		}

		record, err := s.buildRecord(ctx, ue, container, enabled)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *Service) buildRecord(ctx context.Context, ue *models.UserEnrolment, container *models.EnrolmentContainer, canBeCompleted bool) (models.CompletionRecord, error) {
	record := models.CompletionRecord{
		UserEnrolmentID: ue.ID,
		UserID:          ue.UserID,
		BookingID:       container.BookingID,
		CanBeCompleted:  canBeCompleted,
	}
	if !canBeCompleted {
		return record, nil
	}

	timeCompleted, found, err := s.grades.TimeCompleted(ctx, container.CourseID, ue.UserID)
	if err != nil {
		return record, err
	}
	// No record yet (the async completion job has not run for a fresh
	// enrolment) or a record without a completion time: not completed.
	if !found || timeCompleted <= 0 {
		return record, nil
	}

	record.Completed = true
	record.TimeCompleted = &timeCompleted

	item, err := s.grades.CourseGradeItem(ctx, container.CourseID)
	if err != nil {
		return record, err
	}
	if item == nil {
		return record, nil
	}
	grade, err := s.grades.UserGrade(ctx, item.ID, ue.UserID)
	if err != nil {
		return record, err
	}
	if grade == nil {
		return record, nil
	}

	formatted := fmt.Sprintf("%.2f", grade.FinalGrade)
	record.FinalGrade = &formatted
	record.FinalGradeRaw = &grade.FinalGrade
	record.GradeMin = &item.GradeMin
	record.GradeMax = &item.GradeMax
	record.GradePass = &item.GradePass
	// A pass grade of zero means the course defines no pass threshold, so
	// passed stays null.
	if item.GradePass > 0 {
		passed := grade.FinalGrade >= item.GradePass
		record.Passed = &passed
	}
	return record, nil
}

// ResetCompletion resets the completion+grade state behind one enrolment via
// the recompletion collaborator. Collaborator warnings are forwarded; the
// result is false whenever any warning was reported.
func (s *Service) ResetCompletion(ctx context.Context, userEnrolmentID int64) (bool, []models.Warning, error) {
	installed := false
	if s.recompletion != nil {
		var err error
		installed, err = s.recompletion.Installed(ctx)
		if err != nil {
			return false, nil, err
		}
	}
	if !installed {
		return false, nil, enrolments.NewError(enrolments.KindRecompletionNotInstalled, "")
	}

	ue, err := s.store.GetUserEnrolment(ctx, userEnrolmentID)
	if err != nil {
		return false, nil, err
	}
	if ue == nil {
		return false, nil, enrolments.NewError(enrolments.KindEnrolNoUserInstance, strconv.FormatInt(userEnrolmentID, 10))
	}
	container, err := s.store.GetContainer(ctx, ue.ContainerID)
	if err != nil {
		return false, nil, err
	}
	if container == nil {
		return false, nil, enrolments.NewError(enrolments.KindEnrolNoInstance, strconv.FormatInt(userEnrolmentID, 10))
	}

	courseRef := strconv.FormatInt(container.CourseID, 10)
	cfg, err := s.recompletion.CourseConfig(ctx, container.CourseID)
	if err != nil {
		return false, nil, err
	}
	if cfg == nil || !cfg.Enabled {
		return false, nil, enrolments.NewError(enrolments.KindRecompletionNotEnabled, courseRef)
	}
	if cfg.Mode != models.RecompletionOnDemand {
		return false, nil, enrolments.NewError(enrolments.KindRecompletionNotOnDemand, courseRef)
	}

	resetWarnings, err := s.recompletion.ResetUser(ctx, ue.UserID, container.CourseID)
	if err != nil {
		return false, nil, err
	}

	warnings := make([]models.Warning, 0, len(resetWarnings))
	for _, w := range resetWarnings {
		if w == "" {
			continue
		}
		warnings = append(warnings, models.Warning{
			Item:    "course",
			ItemID:  container.CourseID,
			Code:    "recompletion_error",
			Message: w,
		})
	}
	if len(warnings) > 0 {
		s.logger.Warn("completion reset reported warnings",
			zap.Int64("enrolment_id", userEnrolmentID),
			zap.Int64("course_id", container.CourseID),
			zap.Int("warnings", len(warnings)),
		)
		return false, warnings, nil
	}
	return true, warnings, nil
}
