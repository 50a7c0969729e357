// Package notify throttles outbound notifications: a strictly sequential FIFO
// queue paced by a fixed delay, and a retry-with-backoff wrapper around a Sender.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Guizzs26/watch-crm/pkg/infra"
	"github.com/Guizzs26/watch-crm/pkg/metrics"
	"github.com/google/uuid"
)

const (
	DefaultDelay              = time.Second
	DefaultDeadLetterCapacity = 100
)

// Job is one deferred outbound send. Run must carry its own context; the queue
// never cancels a running job
type Job struct {
	ID   string
	Name string
	Run  func() error
}

// JobResult is reported for every executed job. Err is nil on success
type JobResult struct {
	JobID     string
	Name      string
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Queue executes jobs one at a time in enqueue order and waits a fixed delay
// after each job, so the provider behind it sees at most one call per delay.
// Failures are logged, kept in a bounded dead-letter list and never re-enqueued
type Queue struct {
	mu       sync.Mutex
	pending  []Job
	draining bool
	idle     chan struct{}
	dead     []JobResult

	delay    time.Duration
	deadCap  int
	onResult func(JobResult)
	logger   *slog.Logger
	sleep    func(time.Duration)
}

type QueueOption func(*Queue)

// WithDelay sets the pause after every job. Negative values are treated as zero
func WithDelay(d time.Duration) QueueOption {
	return func(q *Queue) { q.delay = max(d, 0) }
}

// WithDeadLetterCapacity bounds the failed-job history. Oldest entries are dropped first
func WithDeadLetterCapacity(n int) QueueOption {
	return func(q *Queue) { q.deadCap = max(n, 0) }
}

// WithResultHook registers a callback invoked from the drain loop after each job
func WithResultHook(fn func(JobResult)) QueueOption {
	return func(q *Queue) { q.onResult = fn }
}

func NewQueue(logger *slog.Logger, opts ...QueueOption) *Queue {
	if logger == nil {
		logger = infra.NopLogger()
	}

	idle := make(chan struct{})
	close(idle)

	q := &Queue{
		idle:    idle,
		delay:   DefaultDelay,
		deadCap: DefaultDeadLetterCapacity,
		logger:  logger,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends job and starts the drain loop if it is not running.
// It never blocks on job execution and never fails. The returned ID identifies the job in results
func (q *Queue) Enqueue(job Job) string {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	q.mu.Lock()
	q.pending = append(q.pending, job)
	metrics.QueueDepth.Inc()
	start := !q.draining
	if start {
		q.draining = true
		q.idle = make(chan struct{})
	}
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.JobsEnqueued.Inc()
	q.logger.Debug("Job enqueued", "job_id", job.ID, "job", job.Name, "depth", depth)

	if start {
		go q.drain()
	}
	return job.ID
}

// EnqueueFunc is a shorthand for Enqueue(Job{Name: name, Run: fn})
func (q *Queue) EnqueueFunc(name string, fn func() error) string {
	return q.Enqueue(Job{Name: name, Run: fn})
}

// Len returns the number of jobs waiting, excluding the one running
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drained returns a channel closed once no drain loop is running
func (q *Queue) Drained() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle
}

// DeadLetters returns a copy of the retained failed jobs, oldest first
func (q *Queue) DeadLetters() []JobResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]JobResult, len(q.dead))
	copy(out, q.dead)
	return out
}

// drain is the only code path that runs jobs
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending[0] = Job{}
		q.pending = q.pending[1:]
		metrics.QueueDepth.Dec()
		q.mu.Unlock()

		res := q.execute(job)
		q.report(res)

		q.sleep(q.delay)
	}
}

func (q *Queue) execute(job Job) (res JobResult) {
	res = JobResult{JobID: job.ID, Name: job.Name, StartedAt: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("job panicked: %v", r)
		}
		res.Duration = time.Since(res.StartedAt)
	}()

	if job.Run == nil {
		res.Err = fmt.Errorf("job %s has no body", job.ID)
		return res
	}
	res.Err = job.Run()
	return res
}

func (q *Queue) report(res JobResult) {
	l := q.logger.With("job_id", res.JobID, "job", res.Name)
	metrics.JobDuration.Observe(res.Duration.Seconds())

	if res.Err != nil {
		metrics.JobsProcessed.WithLabelValues("failed").Inc()
		l.Error("Notification job failed, discarding", "duration_ms", res.Duration.Milliseconds(), "error", res.Err)
		q.bury(res)
	} else {
		metrics.JobsProcessed.WithLabelValues("success").Inc()
		l.Debug("Notification job done", "duration_ms", res.Duration.Milliseconds())
	}

	if q.onResult == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.Error("Result hook panicked", "panic", r)
		}
	}()
	q.onResult(res)
}

func (q *Queue) bury(res JobResult) {
	if q.deadCap == 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.dead) >= q.deadCap {
		q.dead = q.dead[1:]
		metrics.DeadLetters.Dec()
	}
	q.dead = append(q.dead, res)
	metrics.DeadLetters.Inc()
}
