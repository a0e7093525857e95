package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/coursebridge/backend/pkg/queue"
)

// Regrader recomputes final grades for a course.
type Regrader interface {
	Regrade(ctx context.Context, courseID int64) error
}

// Processor consumes regrade jobs from the queue.
type Processor struct {
	queue    *queue.Queue
	regrader Regrader
	logger   *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(q *queue.Queue, regrader Regrader, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{queue: q, regrader: regrader, logger: logger}
}

// Run consumes jobs until the context is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("regrade processor started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("regrade processor stopped")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueRegrades, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.process(ctx, job); err != nil {
			p.logger.Error("job failed",
				zap.String("job_id", job.ID),
				zap.String("type", job.Type),
				zap.Int("attempts", job.Attempts),
				zap.Error(err))
			if err := p.queue.Retry(ctx, queue.QueueRegrades, job); err != nil {
				p.logger.Error("retry failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}
}

func (p *Processor) process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeRegrade:
		var payload queue.RegradePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		if err := p.regrader.Regrade(ctx, payload.CourseID); err != nil {
			return err
		}
		p.logger.Info("course regraded", zap.Int64("course_id", payload.CourseID))
		return nil
	default:
		p.logger.Warn("unknown job type", zap.String("type", job.Type))
		return nil
	}
}
