package services

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
	"van-dispatch-service/internal/platform/metrics"
)

type ReplanFunc func(ctx context.Context, vanID string) error

// ReplanQueue runs plan rebuilds off the request path.
//
// Runs for the same van never overlap. A trigger that arrives while the van
// is being replanned marks it dirty, and however many such triggers arrive,
// exactly one follow-up run starts when the current one finishes. Different
// vans replan in parallel.
type ReplanQueue struct {
	run     ReplanFunc
	metrics *metrics.Collector
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	dirty  map[string]bool // present while a van's loop is running
	closed bool
	wg     sync.WaitGroup
}

// NewReplanQueue returns a queue calling run for each replan. A positive
// timeout bounds every single run.
func NewReplanQueue(run ReplanFunc, m *metrics.Collector, timeout time.Duration) *ReplanQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReplanQueue{
		run:     run,
		metrics: m,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		dirty:   make(map[string]bool),
	}
}

// Trigger schedules a replan for the van and returns immediately.
func (q *ReplanQueue) Trigger(vanID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		log.Printf("replan dropped: van_id=%s reason=queue closed", vanID)
		return
	}

	if _, running := q.dirty[vanID]; running {
		q.dirty[vanID] = true
		q.metrics.ReplanQueued(true)
		return
	}

	q.dirty[vanID] = false
	q.metrics.ReplanQueued(false)
	q.metrics.SetReplansRunning(len(q.dirty))

	q.wg.Add(1)
	go q.loop(vanID)
}

func (q *ReplanQueue) loop(vanID string) {
	defer q.wg.Done()

	for {
		q.runOnce(vanID)

		q.mu.Lock()
		if !q.dirty[vanID] || q.closed {
			delete(q.dirty, vanID)
			q.metrics.SetReplansRunning(len(q.dirty))
			q.mu.Unlock()
			return
		}
		q.dirty[vanID] = false
		q.mu.Unlock()
	}
}

// runOnce is the error boundary of a single replan.
func (q *ReplanQueue) runOnce(vanID string) {
	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("replan panic: van_id=%s panic=%v\n%s", vanID, r, debug.Stack())
		}
	}()

	if err := q.run(ctx, vanID); err != nil {
		log.Printf("replan failed: van_id=%s err=%v", vanID, err)
	}
}

// Wait blocks until no replan is running or pending.
func (q *ReplanQueue) Wait() {
	q.wg.Wait()
}

// Close stops accepting triggers and waits for in-flight runs. Runs still
// going when ctx ends are cancelled.
func (q *ReplanQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return fmt.Errorf("replan queue: close: %w", ctx.Err())
	}
}
