package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/inboxglow/inboxglow/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tasks finished, partitioned by stage and terminal status
	tasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warmup_tasks_processed_total",
			Help: "Total number of warmup tasks processed",
		},
		[]string{"type", "status"},
	)

	// Task execution latency by stage
	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warmup_task_duration_seconds",
			Help:    "Warmup task execution latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// Tasks currently executing across all stages
	tasksInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warmup_tasks_inflight",
			Help: "Number of warmup tasks currently executing",
		},
		[]string{"type"},
	)
)

// Executor runs one claimed task. A returned error counts against the
// stage's attempt budget.
type Executor interface {
	Execute(ctx context.Context, task *Task) error
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, task *Task) error

// Execute calls f(ctx, task)
func (f ExecutorFunc) Execute(ctx context.Context, task *Task) error {
	return f(ctx, task)
}

// Processor drains every stage queue through per-stage worker pools. Stage
// concurrency and attempt budgets come from configuration: send/receive run
// wide, engage narrow, rescue strictly serialized.
type Processor struct {
	queue     TaskQueue
	executors map[TaskType]Executor
	cfg       config.QueueConfig
	logger    *log.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewProcessor creates a processor over the given queue. Executors are
// registered per stage before Start.
func NewProcessor(q TaskQueue, cfg config.QueueConfig, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.Default()
	}
	return &Processor{
		queue:     q,
		executors: make(map[TaskType]Executor),
		cfg:       cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Register binds an executor to a stage
func (p *Processor) Register(typ TaskType, ex Executor) {
	p.executors[typ] = ex
}

// Start launches one dispatcher plus a worker pool per registered stage
func (p *Processor) Start(ctx context.Context) {
	for typ, ex := range p.executors {
		workers := p.concurrency(typ)
		tasks := make(chan *Task)

		p.wg.Add(1)
		go p.dispatch(ctx, typ, tasks, workers)

		for i := 0; i < workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx, typ, ex, tasks)
		}

		p.logger.Printf("queue: started %d %s workers", workers, typ)
	}
}

// Stop waits for dispatchers and workers to drain
func (p *Processor) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Printf("queue: processor stopped")
}

func (p *Processor) concurrency(typ TaskType) int {
	var n int
	switch typ {
	case TaskSend:
		n = p.cfg.SendConcurrency
	case TaskReceive:
		n = p.cfg.ReceiveConcurrency
	case TaskEngage:
		n = p.cfg.EngageConcurrency
	case TaskRescue:
		n = p.cfg.RescueConcurrency
	case TaskReputationCheck:
		n = p.cfg.ReputationConcurrency
	}
	if n <= 0 {
		n = 1
	}
	return n
}

func (p *Processor) maxAttempts(typ TaskType) int {
	var n int
	switch typ {
	case TaskSend:
		n = p.cfg.SendMaxAttempts
	case TaskReceive:
		n = p.cfg.ReceiveMaxAttempts
	case TaskEngage:
		n = p.cfg.EngageMaxAttempts
	case TaskRescue:
		n = p.cfg.RescueMaxAttempts
	case TaskReputationCheck:
		n = p.cfg.ReputationMaxAttempts
	}
	if n <= 0 {
		n = 1
	}
	return n
}

// dispatch polls the queue for due tasks and feeds the stage's workers
func (p *Processor) dispatch(ctx context.Context, typ TaskType, tasks chan<- *Task, batch int) {
	defer p.wg.Done()
	defer close(tasks)

	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if p.cfg.ClaimBatch > batch {
		batch = p.cfg.ClaimBatch
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			claimed, err := p.queue.Claim(ctx, typ, time.Now().UTC(), batch)
			if err != nil {
				p.logger.Printf("queue: claim %s failed: %v", typ, err)
				continue
			}
			for _, t := range claimed {
				select {
				case tasks <- t:
				case <-ctx.Done():
					return
				case <-p.stopCh:
					return
				}
			}
		}
	}
}

func (p *Processor) worker(ctx context.Context, typ TaskType, ex Executor, tasks <-chan *Task) {
	defer p.wg.Done()

	for task := range tasks {
		p.runTask(ctx, typ, ex, task)
	}
}

func (p *Processor) runTask(ctx context.Context, typ TaskType, ex Executor, task *Task) {
	tasksInFlight.WithLabelValues(typ.String()).Inc()
	defer tasksInFlight.WithLabelValues(typ.String()).Dec()

	start := time.Now()
	err := ex.Execute(ctx, task)
	taskDuration.WithLabelValues(typ.String()).Observe(time.Since(start).Seconds())

	if err == nil {
		tasksProcessedTotal.WithLabelValues(typ.String(), "ok").Inc()
		return
	}

	task.Attempts++
	if task.Attempts >= p.maxAttempts(typ) {
		tasksProcessedTotal.WithLabelValues(typ.String(), "failed").Inc()
		p.logger.Printf("queue: %s task %s failed permanently after %d attempts: %v",
			typ, task.ID, task.Attempts, err)
		return
	}

	backoff := p.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Minute
	}
	// Linear backoff keeps retries inside the same sending day
	retryAt := time.Now().UTC().Add(backoff * time.Duration(task.Attempts))
	if reqErr := p.queue.Requeue(ctx, task, retryAt); reqErr != nil {
		tasksProcessedTotal.WithLabelValues(typ.String(), "failed").Inc()
		p.logger.Printf("queue: requeue of %s task %s failed: %v", typ, task.ID, reqErr)
		return
	}
	tasksProcessedTotal.WithLabelValues(typ.String(), "retried").Inc()
	p.logger.Printf("queue: %s task %s attempt %d failed, retrying at %s: %v",
		typ, task.ID, task.Attempts, retryAt.Format(time.RFC3339), err)
}
