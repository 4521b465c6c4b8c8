package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inboxglow/inboxglow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingExecutor fails the first failures calls, then succeeds
type countingExecutor struct {
	mu       sync.Mutex
	calls    int
	failures int
	done     chan struct{}
}

func (e *countingExecutor) Execute(_ context.Context, _ *Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if e.calls <= e.failures {
		return errors.New("transient failure")
	}
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
	return nil
}

func (e *countingExecutor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		PollInterval:    10 * time.Millisecond,
		ClaimBatch:      10,
		RetryBackoff:    10 * time.Millisecond,
		SendConcurrency: 2,
		SendMaxAttempts: 3,
	}
}

func waitFor(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestProcessorExecutesTasks(t *testing.T) {
	q := NewMemoryQueue()
	ex := &countingExecutor{done: make(chan struct{})}

	p := NewProcessor(q, testQueueConfig(), nil)
	p.Register(TaskSend, ex)

	require.NoError(t, q.Enqueue(context.Background(), NewTask(TaskSend, 1, 2, 3, time.Now().UTC(), PriorityIdeal)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	waitFor(t, ex.done, "task execution")
	p.Stop()

	assert.Equal(t, 1, ex.callCount())
	pending, err := q.Pending(context.Background(), TaskSend)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestProcessorRetriesFailedTasks(t *testing.T) {
	q := NewMemoryQueue()
	ex := &countingExecutor{failures: 2, done: make(chan struct{})}

	p := NewProcessor(q, testQueueConfig(), nil)
	p.Register(TaskSend, ex)

	require.NoError(t, q.Enqueue(context.Background(), NewTask(TaskSend, 1, 2, 3, time.Now().UTC(), PriorityIdeal)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	waitFor(t, ex.done, "task retries")
	p.Stop()

	assert.Equal(t, 3, ex.callCount())
}

func TestProcessorDropsTaskAfterMaxAttempts(t *testing.T) {
	q := NewMemoryQueue()
	// Never succeeds; the attempt budget caps executions
	ex := &countingExecutor{failures: 100}

	cfg := testQueueConfig()
	cfg.SendMaxAttempts = 2

	p := NewProcessor(q, cfg, nil)
	p.Register(TaskSend, ex)

	require.NoError(t, q.Enqueue(context.Background(), NewTask(TaskSend, 1, 2, 3, time.Now().UTC(), PriorityIdeal)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	assert.Eventually(t, func() bool {
		if ex.callCount() < 2 {
			return false
		}
		pending, err := q.Pending(context.Background(), TaskSend)
		return err == nil && pending == 0
	}, 5*time.Second, 20*time.Millisecond)

	p.Stop()
	assert.Equal(t, 2, ex.callCount())
}

func TestProcessorStopDrainsWorkers(t *testing.T) {
	q := NewMemoryQueue()
	ex := &countingExecutor{done: make(chan struct{})}

	p := NewProcessor(q, testQueueConfig(), nil)
	p.Register(TaskSend, ex)

	require.NoError(t, q.Enqueue(context.Background(), NewTask(TaskSend, 1, 2, 3, time.Now().UTC(), PriorityIdeal)))

	p.Start(context.Background())
	waitFor(t, ex.done, "task execution")

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	waitFor(t, stopped, "processor shutdown")
}
