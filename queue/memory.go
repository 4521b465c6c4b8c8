package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is an in-process TaskQueue for development and tests. It keeps
// the same claim semantics as the redis implementation: a task handed out by
// Claim is gone from the queue until requeued.
type MemoryQueue struct {
	mu    sync.Mutex
	tasks map[TaskType][]*Task
}

// NewMemoryQueue creates an empty in-memory task queue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		tasks: make(map[TaskType][]*Task),
	}
}

// Enqueue schedules a task at its scheduled time
func (q *MemoryQueue) Enqueue(_ context.Context, task *Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	cp := *task
	q.tasks[task.Type] = append(q.tasks[task.Type], &cp)
	return nil
}

// Claim removes up to limit due tasks ordered by priority then due time
func (q *MemoryQueue) Claim(_ context.Context, typ TaskType, now time.Time, limit int) ([]*Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.tasks[typ]
	due := make([]*Task, 0, len(pending))
	rest := make([]*Task, 0, len(pending))
	for _, t := range pending {
		if t.Due(now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority < due[j].Priority
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})

	if len(due) > limit {
		rest = append(rest, due[limit:]...)
		due = due[:limit]
	}

	q.tasks[typ] = rest
	return due, nil
}

// Requeue puts a claimed task back with a new due time
func (q *MemoryQueue) Requeue(ctx context.Context, task *Task, at time.Time) error {
	task.ScheduledAt = at.UTC()
	return q.Enqueue(ctx, task)
}

// CancelBySender removes the sender's waiting tasks for the stage
func (q *MemoryQueue) CancelBySender(_ context.Context, typ TaskType, senderAccountID uint) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.tasks[typ]
	kept := pending[:0]
	cancelled := 0
	for _, t := range pending {
		if t.SenderAccountID == senderAccountID {
			cancelled++
			continue
		}
		kept = append(kept, t)
	}
	q.tasks[typ] = kept

	return cancelled, nil
}

// Pending returns the number of waiting tasks for the stage
func (q *MemoryQueue) Pending(_ context.Context, typ TaskType) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.tasks[typ])), nil
}
