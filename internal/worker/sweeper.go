package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coursebridge/backend/internal/models"
)

// ContainerStore is the slice of the enrolment store the sweeper needs.
type ContainerStore interface {
	ListOrphanedContainers(ctx context.Context) ([]models.EnrolmentContainer, error)
	DeleteContainerAndEnrolments(ctx context.Context, containerID int64) error
}

// Sweeper periodically removes enrolment containers that no longer hold any
// user enrolment.
type Sweeper struct {
	store    ContainerStore
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(store ContainerStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Sweep removes all orphaned containers once and returns how many were
// deleted. A failed deletion is logged and the sweep continues; a second run
// over an already clean table deletes nothing.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	orphans, err := s.store.ListOrphanedContainers(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, container := range orphans {
		if err := s.store.DeleteContainerAndEnrolments(ctx, container.ID); err != nil {
			s.logger.Error("orphan cleanup failed",
				zap.Int64("container_id", container.ID),
				zap.String("booking_id", container.BookingID),
				zap.Error(err))
			continue
		}
		s.logger.Info("removed orphaned container",
			zap.Int64("container_id", container.ID),
			zap.String("booking_id", container.BookingID))
		deleted++
	}
	return deleted, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
