// Package store persists model entities as JSON files, one file per entity.
//
// All writes for a given entity id flow through a sharded FIFO queue so two
// saves of the same entity can never interleave on disk. Jobs with different
// ids may run in parallel on different shards.
package store

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/metrics"
)

// ErrQueueClosed is returned by Submit and Do after Stop.
var ErrQueueClosed = errors.New("write queue closed")

// ErrQueueFull is returned when a shard stays full past the enqueue timeout.
var ErrQueueFull = errors.New("write queue shard full")

// Job is one unit of disk work.
type Job func(ctx context.Context) error

// QueueConfig tunes the write queue. Zero values get defaults.
type QueueConfig struct {
	Shards         int
	QueueSize      int
	EnqueueTimeout time.Duration

	// Retry policy for best-effort jobs submitted via Submit.
	MaxAttempts int
	BaseBackoff time.Duration
	MaxInterval time.Duration
}

type queuedJob struct {
	ctx        context.Context
	job        Job
	bestEffort bool
	result     chan<- error // nil for best-effort jobs
}

// WriteQueue executes Jobs on worker goroutines partitioned by a stable hash
// of the entity id. FIFO ordering is preserved within a shard.
type WriteQueue struct {
	cfg    QueueConfig
	log    zerolog.Logger
	queues []chan queuedJob

	done   chan struct{}
	closed uint32

	wg sync.WaitGroup
}

// NewWriteQueue constructs the queue and starts its shard workers.
func NewWriteQueue(cfg QueueConfig, log zerolog.Logger) *WriteQueue {
	if cfg.Shards <= 0 {
		cfg.Shards = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 50 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	q := &WriteQueue{
		cfg:    cfg,
		log:    log,
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		q.queues[i] = ch
		q.wg.Add(1)
		go q.runWorker(i, ch)
	}
	return q
}

// Do enqueues job on the shard for key and waits for it to finish. The job
// runs exactly once; its error is returned to the caller. Used for agent and
// server saves, whose failures must propagate.
func (q *WriteQueue) Do(ctx context.Context, key string, job Job) error {
	result := make(chan error, 1)
	if err := q.enqueue(ctx, key, queuedJob{ctx: ctx, job: job, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues job on the shard for key and returns without waiting.
// Failures are retried with capped exponential backoff and finally logged,
// never surfaced. Used for layout-preference saves, which are best-effort.
func (q *WriteQueue) Submit(ctx context.Context, key string, job Job) error {
	return q.enqueue(ctx, key, queuedJob{ctx: ctx, job: job, bestEffort: true})
}

// Barrier waits until every job previously enqueued for key has completed.
func (q *WriteQueue) Barrier(ctx context.Context, key string) error {
	return q.Do(ctx, key, func(context.Context) error { return nil })
}

// Stop drains every shard and waits for workers to exit. Idempotent.
func (q *WriteQueue) Stop() {
	if !atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		return
	}
	close(q.done)
	q.wg.Wait()
	q.log.Debug().Msg("write queue stopped")
}

func (q *WriteQueue) enqueue(ctx context.Context, key string, qj queuedJob) error {
	if atomic.LoadUint32(&q.closed) == 1 {
		return ErrQueueClosed
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	shard := q.shardFor(key)
	ch := q.queues[shard]

	timer := time.NewTimer(q.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- qj:
		metrics.WriteQueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(len(ch)))
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrQueueFull
	}
}

func (q *WriteQueue) runWorker(idx int, ch <-chan queuedJob) {
	defer q.wg.Done()

	label := strconv.Itoa(idx)

	for {
		select {
		case qj := <-ch:
			q.runJob(qj)
			metrics.WriteQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-q.done:
			// Drain remaining jobs in FIFO order, then exit.
			for {
				select {
				case qj := <-ch:
					q.runJob(qj)
				default:
					metrics.WriteQueueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

func (q *WriteQueue) runJob(qj queuedJob) {
	if qj.job == nil {
		return
	}

	// A cancelled job must not stall the shard.
	select {
	case <-qj.ctx.Done():
		if qj.result != nil {
			qj.result <- qj.ctx.Err()
		}
		return
	default:
	}

	if !qj.bestEffort {
		qj.result <- qj.job(qj.ctx)
		return
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = q.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = q.cfg.MaxInterval
	exp.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		err = qj.job(qj.ctx)
		if err == nil {
			return
		}
		if attempt >= q.cfg.MaxAttempts {
			break
		}
		metrics.WriteQueueRetries.Inc()
		select {
		case <-time.After(exp.NextBackOff()):
		case <-q.done:
			metrics.WriteQueueDropped.Inc()
			q.log.Warn().Err(err).Msg("best-effort write abandoned during shutdown")
			return
		case <-qj.ctx.Done():
			metrics.WriteQueueDropped.Inc()
			q.log.Warn().Err(qj.ctx.Err()).Msg("best-effort write cancelled")
			return
		}
	}
	metrics.WriteQueueDropped.Inc()
	q.log.Error().Err(err).Int("attempts", q.cfg.MaxAttempts).Msg("best-effort write failed")
}

func (q *WriteQueue) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % q.cfg.Shards
}
