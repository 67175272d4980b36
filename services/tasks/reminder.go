package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"agendo/models"
)

const TypeSendReminder = "reminder:send"

// NewReminderTask builds the queued reminder task scheduled at fireAt.
func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{asynq.ProcessAt(fireAt)}

	return task, opts, nil
}

// Scheduler enqueues reminder tasks on the Redis-backed queue. It
// satisfies the booking committer's ReminderScheduler.
type Scheduler struct {
	Client *asynq.Client
}

func NewScheduler(client *asynq.Client) *Scheduler {
	return &Scheduler{Client: client}
}

func (s *Scheduler) ScheduleReminder(ctx context.Context, payload models.ReminderPayload, at time.Time) error {
	task, opts, err := NewReminderTask(payload, at)
	if err != nil {
		return fmt.Errorf("failed to build reminder task: %w", err)
	}
	if _, err := s.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue reminder: %w", err)
	}
	return nil
}
