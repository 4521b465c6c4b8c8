package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidTask is returned when a task fails basic shape validation
	ErrInvalidTask = errors.New("invalid task")
)

// TaskQueue is the delayed, prioritized queue contract each stage drains
// through. Tasks become claimable at-or-after their scheduled time, never
// before. Claim semantics are at-most-once per task per claim call: a task
// returned by Claim is owned by the caller until it is requeued or dropped.
type TaskQueue interface {
	// Enqueue schedules a task for execution at task.ScheduledAt
	Enqueue(ctx context.Context, task *Task) error

	// Claim atomically removes up to limit due tasks of the given type,
	// ordered by priority then scheduled time
	Claim(ctx context.Context, typ TaskType, now time.Time, limit int) ([]*Task, error)

	// Requeue puts a claimed task back with a new due time, preserving its
	// attempt count
	Requeue(ctx context.Context, task *Task, at time.Time) error

	// CancelBySender removes all not-yet-claimed tasks of the given type
	// belonging to the sender, returning how many were removed. Tasks
	// already claimed and mid-execution are not touched.
	CancelBySender(ctx context.Context, typ TaskType, senderAccountID uint) (int, error)

	// Pending returns the number of not-yet-claimed tasks of the given type
	Pending(ctx context.Context, typ TaskType) (int64, error)
}

// CancelAllBySender removes the sender's pending tasks across every stage
func CancelAllBySender(ctx context.Context, q TaskQueue, senderAccountID uint) (int, error) {
	total := 0
	for _, typ := range AllTaskTypes() {
		n, err := q.CancelBySender(ctx, typ, senderAccountID)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func validateTask(task *Task) error {
	if task == nil || !task.Type.Valid() || task.ID == "" || task.SenderAccountID == 0 {
		return ErrInvalidTask
	}
	return nil
}
