// Package queue provides a named, in-process job queue with
// at-least-once delivery semantics. It is the only hand-off mechanism
// between the submission path and the analysis workers: payloads are
// JSON-encoded, self-sufficient units of work, and a failing handler
// causes redelivery with backoff up to a configured attempt budget.
//
// Delivery contract:
//   - FIFO-ish: jobs are dispatched in enqueue order, but concurrent
//     workers and redelivery reorder jobs across events. No cross-job
//     ordering is guaranteed and consumers must not rely on any.
//   - At-least-once: a job whose handler returns an error is delivered
//     again (attempt+1) after a backoff that doubles per attempt, until
//     MaxAttempts is exhausted. Handlers must therefore be idempotent.
//   - Jobs are never re-dispatched after a handler returns nil.
//
// The queue is process-local. The handler registry, the buffered
// channel substrate, and the worker pool all live in one process, which
// keeps the delivery guarantee scoped to the lifetime of that process:
// jobs in flight when the process dies are lost, and their events
// remain pending.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Queue-level errors returned by Enqueue.
var (
	// ErrQueueFull is returned when the buffered substrate has no
	// capacity left. Submitters surface this as a transient
	// infrastructure failure.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when enqueueing after Shutdown.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrNoHandler is recorded when a job's kind has no registered
	// handler. Such jobs are dropped, not retried.
	ErrNoHandler = errors.New("no handler registered for job kind")
)

var (
	jobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_enqueued_total",
			Help: "Total number of jobs accepted by the queue.",
		},
		[]string{"queue", "kind"},
	)

	jobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_processed_total",
			Help: "Job deliveries by final per-delivery outcome.",
		},
		[]string{"queue", "kind", "outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_job_duration_seconds",
			Help:    "Handler execution time per delivery.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue", "kind"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of jobs waiting in the queue buffer.",
		},
		[]string{"queue"},
	)
)

func init() {
	prometheus.MustRegister(jobsEnqueued, jobsProcessed, jobDuration, queueDepth)
}

// Job is one delivery of a unit of work. Attempt starts at 1 and
// increments per redelivery of the same job ID.
type Job struct {
	ID      string
	Kind    string
	Payload []byte
	Attempt int
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

// HandlerFunc processes one job delivery. Returning a non-nil error
// requests redelivery (subject to the attempt budget); returning nil
// acknowledges the job. The ctx is the queue-lifetime context: it stays
// live across deliveries and is cancelled when shutdown gives up on the
// drain, so blocking work inside a handler must honor it.
type HandlerFunc func(ctx context.Context, job *Job) error

// Options tunes a Queue. Zero values fall back to defaults.
type Options struct {
	// Capacity is the size of the buffered substrate (default 256).
	Capacity int
	// Workers is the number of concurrent dispatch goroutines (default 4).
	Workers int
	// MaxAttempts caps deliveries per job, first attempt included (default 3).
	MaxAttempts int
	// Backoff is the delay before the second delivery; it doubles per
	// further attempt (default 500ms).
	Backoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	return o
}

// Queue is a named at-least-once delivery channel. Construct with New,
// register handlers with Handle, then call Start. Safe for concurrent
// Enqueue from any goroutine.
type Queue struct {
	name string
	opts Options

	jobs chan *Job

	// baseCtx is the queue-lifetime context handlers run under. It is
	// cancelled once Shutdown finishes draining, or immediately when a
	// Shutdown deadline expires, so stuck handlers can abort.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	closed   bool

	workers sync.WaitGroup
	retries sync.WaitGroup
}

// New constructs a queue with the given name. The name only namespaces
// logs and metrics; each queue instance is independent.
func New(name string, opts Options) *Queue {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		name:     name,
		opts:     opts,
		jobs:     make(chan *Job, opts.Capacity),
		baseCtx:  ctx,
		cancel:   cancel,
		handlers: make(map[string]HandlerFunc),
	}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Handle registers fn for the given job kind. Registration must happen
// before Start; a later registration for the same kind replaces the
// earlier one.
func (q *Queue) Handle(kind string, fn HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = fn
}

// Enqueue marshals payload and places a new job on the queue. It never
// blocks: when the buffer is full it returns ErrQueueFull immediately,
// and after Shutdown it returns ErrQueueClosed. On success it returns
// the generated job ID.
func (q *Queue) Enqueue(ctx context.Context, kind string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	job := &Job{
		ID:      uuid.NewString(),
		Kind:    kind,
		Payload: body,
		Attempt: 1,
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		jobsEnqueued.WithLabelValues(q.name, kind).Inc()
		queueDepth.WithLabelValues(q.name).Set(float64(len(q.jobs)))
		log.Debug().
			Str("queue", q.name).
			Str("kind", kind).
			Str("job_id", job.ID).
			Msg("job enqueued")
		return job.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	default:
		return "", ErrQueueFull
	}
}

// Start launches the worker pool. Each worker pulls jobs until the
// queue is shut down. Calling Start more than once adds workers and is
// almost certainly a bug.
func (q *Queue) Start() {
	for i := 0; i < q.opts.Workers; i++ {
		q.workers.Add(1)
		go q.worker()
	}
	log.Info().
		Str("queue", q.name).
		Int("workers", q.opts.Workers).
		Int("capacity", q.opts.Capacity).
		Msg("queue started")
}

func (q *Queue) worker() {
	defer q.workers.Done()
	for job := range q.jobs {
		queueDepth.WithLabelValues(q.name).Set(float64(len(q.jobs)))
		q.dispatch(job)
	}
}

// dispatch runs one delivery and decides its outcome. Handler panics
// are contained and treated like errors so one bad payload cannot take
// down the worker pool.
func (q *Queue) dispatch(job *Job) {
	q.mu.RLock()
	fn, ok := q.handlers[job.Kind]
	q.mu.RUnlock()

	if !ok {
		jobsProcessed.WithLabelValues(q.name, job.Kind, "dropped").Inc()
		log.Error().
			Str("queue", q.name).
			Str("kind", job.Kind).
			Str("job_id", job.ID).
			Err(ErrNoHandler).
			Msg("dropping job")
		return
	}

	start := time.Now()
	err := q.safeInvoke(fn, job)
	jobDuration.WithLabelValues(q.name, job.Kind).Observe(time.Since(start).Seconds())

	if err == nil {
		jobsProcessed.WithLabelValues(q.name, job.Kind, "success").Inc()
		return
	}

	if job.Attempt >= q.opts.MaxAttempts {
		jobsProcessed.WithLabelValues(q.name, job.Kind, "failed").Inc()
		log.Error().
			Str("queue", q.name).
			Str("kind", job.Kind).
			Str("job_id", job.ID).
			Int("attempt", job.Attempt).
			Err(err).
			Msg("job exhausted attempts")
		return
	}

	jobsProcessed.WithLabelValues(q.name, job.Kind, "retry").Inc()
	delay := q.opts.Backoff << (job.Attempt - 1)
	log.Warn().
		Str("queue", q.name).
		Str("kind", job.Kind).
		Str("job_id", job.ID).
		Int("attempt", job.Attempt).
		Dur("backoff", delay).
		Err(err).
		Msg("job failed, scheduling redelivery")

	next := &Job{ID: job.ID, Kind: job.Kind, Payload: job.Payload, Attempt: job.Attempt + 1}
	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		time.Sleep(delay)
		q.redeliver(next)
	}()
}

func (q *Queue) safeInvoke(fn HandlerFunc, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(q.baseCtx, job)
}

// redeliver puts a retried job back on the substrate. If the queue shut
// down in the meantime the job is dropped; losing an in-flight retry on
// shutdown is within the at-least-once contract of a process-local queue.
func (q *Queue) redeliver(job *Job) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		jobsProcessed.WithLabelValues(q.name, job.Kind, "dropped").Inc()
		return
	}
	select {
	case q.jobs <- job:
	default:
		jobsProcessed.WithLabelValues(q.name, job.Kind, "dropped").Inc()
		log.Error().
			Str("queue", q.name).
			Str("kind", job.Kind).
			Str("job_id", job.ID).
			Msg("queue full, dropping redelivery")
	}
}

// Shutdown stops intake, waits for pending retries and in-flight jobs
// to drain, and releases the worker pool. It returns ctx.Err() if the
// context expires first; the handler context is cancelled at that point
// so in-flight deliveries can abort instead of draining indefinitely.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.retries.Wait()
		close(q.jobs)
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		log.Info().Str("queue", q.name).Msg("queue drained")
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}
