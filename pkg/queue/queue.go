package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	QueueRegrades = "worker:regrades"
	QueueDLQ      = "worker:dlq"

	MaxRetries   = 3
	RetryBackoff = 10 * time.Second
)

const (
	JobTypeRegrade = "regrade"
)

// Job is the envelope pushed onto a Redis list queue.
type Job struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Created  time.Time       `json:"created"`
}

// RegradePayload asks the worker to recompute final grades for a course.
type RegradePayload struct {
	CourseID int64 `json:"course_id"`
}

// Queue is a Redis list backed job queue.
type Queue struct {
	client *redis.Client
}

// New creates a queue on the given Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue pushes a job onto the named queue.
func (q *Queue) Enqueue(ctx context.Context, queueName, jobType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:      uuid.New().String(),
		Type:    jobType,
		Payload: raw,
		Created: time.Now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// TriggerRegrade enqueues a regrade job for the course.
func (q *Queue) TriggerRegrade(ctx context.Context, courseID int64) error {
	return q.Enqueue(ctx, QueueRegrades, JobTypeRegrade, RegradePayload{CourseID: courseID})
}

// Dequeue blocks until a job is available on the named queue or the timeout
// elapses. Returns nil on timeout.
func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Retry requeues a failed job after a backoff, moving it to the dead letter
// queue once retries are exhausted.
func (q *Queue) Retry(ctx context.Context, queueName string, job *Job) error {
	job.Attempts++
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if job.Attempts >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, data).Err(); err != nil {
			return fmt.Errorf("push to dlq: %w", err)
		}
		return nil
	}
	time.Sleep(RetryBackoff)
	if err := q.client.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}
