package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue stores each stage's tasks in a sorted set keyed by due time.
// Members are JSON-encoded tasks; the score is the UTC unix second the task
// becomes claimable. Claiming relies on ZREM reporting how many members it
// removed: exactly one remover wins, so concurrent claimers never execute
// the same task twice.
type RedisQueue struct {
	rc     *redis.Client
	prefix string
}

// NewRedisQueue creates a redis-backed task queue under the given key prefix
func NewRedisQueue(rc *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{
		rc:     rc,
		prefix: prefix,
	}
}

func (q *RedisQueue) key(typ TaskType) string {
	return fmt.Sprintf("%s%s", q.prefix, typ)
}

// Enqueue schedules a task at its scheduled time
func (q *RedisQueue) Enqueue(ctx context.Context, task *Task) error {
	if err := validateTask(task); err != nil {
		return err
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	return q.rc.ZAdd(ctx, q.key(task.Type), redis.Z{
		Score:  float64(task.ScheduledAt.UTC().Unix()),
		Member: payload,
	}).Err()
}

// Claim removes up to limit due tasks, preferring lower priority numbers.
// The due set is read first, sorted, then each candidate is claimed with
// ZREM. A candidate another worker already removed is simply skipped.
func (q *RedisQueue) Claim(ctx context.Context, typ TaskType, now time.Time, limit int) ([]*Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	members, err := q.rc.ZRangeByScore(ctx, q.key(typ), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UTC().Unix()),
		Count: int64(limit * 2),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due tasks: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	type candidate struct {
		raw  string
		task *Task
	}
	candidates := make([]candidate, 0, len(members))
	for _, m := range members {
		var t Task
		if err := json.Unmarshal([]byte(m), &t); err != nil {
			// Unreadable member; drop it so it cannot wedge the queue
			q.rc.ZRem(ctx, q.key(typ), m)
			continue
		}
		candidates = append(candidates, candidate{raw: m, task: &t})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].task.Priority != candidates[j].task.Priority {
			return candidates[i].task.Priority < candidates[j].task.Priority
		}
		return candidates[i].task.ScheduledAt.Before(candidates[j].task.ScheduledAt)
	})

	claimed := make([]*Task, 0, limit)
	for _, c := range candidates {
		if len(claimed) >= limit {
			break
		}
		removed, err := q.rc.ZRem(ctx, q.key(typ), c.raw).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim task: %w", err)
		}
		if removed == 1 {
			claimed = append(claimed, c.task)
		}
	}

	return claimed, nil
}

// Requeue puts a claimed task back with a new due time
func (q *RedisQueue) Requeue(ctx context.Context, task *Task, at time.Time) error {
	task.ScheduledAt = at.UTC()
	return q.Enqueue(ctx, task)
}

// CancelBySender scans the stage's waiting set and removes the sender's tasks
func (q *RedisQueue) CancelBySender(ctx context.Context, typ TaskType, senderAccountID uint) (int, error) {
	members, err := q.rc.ZRange(ctx, q.key(typ), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan queue: %w", err)
	}

	cancelled := 0
	for _, m := range members {
		var t Task
		if err := json.Unmarshal([]byte(m), &t); err != nil {
			continue
		}
		if t.SenderAccountID != senderAccountID {
			continue
		}
		removed, err := q.rc.ZRem(ctx, q.key(typ), m).Result()
		if err != nil {
			return cancelled, err
		}
		if removed == 1 {
			cancelled++
		}
	}

	return cancelled, nil
}

// Pending returns the number of waiting tasks for the stage
func (q *RedisQueue) Pending(ctx context.Context, typ TaskType) (int64, error) {
	return q.rc.ZCard(ctx, q.key(typ)).Result()
}
