package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultPoolSize is used when a non-positive size is requested.
const DefaultPoolSize = 4

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("pool is closed")

// Pool hands out a fixed set of model sessions, one request at a time per
// session.
type Pool[T any] struct {
	sessions chan T
	size     int
	destroy  func(T)

	mu     sync.Mutex
	closed bool

	metricsMu       sync.Mutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	PoolSize        int   `json:"pool_size"`
	SessionsInUse   int   `json:"sessions_in_use"`
	TotalAcquired   int64 `json:"total_acquired"`
	TotalReleased   int64 `json:"total_released"`
	AcquireFailures int64 `json:"acquire_failures"`
	WaitTimeMillis  int64 `json:"wait_time_ms"`
}

// NewPool creates size sessions with create. destroy releases a session on Close.
func NewPool[T any](size int, create func() (T, error), destroy func(T)) (*Pool[T], error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &Pool[T]{
		sessions: make(chan T, size),
		size:     size,
		destroy:  destroy,
	}

	for i := 0; i < size; i++ {
		session, err := create()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Acquire takes a session, waiting until one is free or ctx is done.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return zero, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metricsMu.Lock()
		p.waitTime += time.Since(start)
		p.metricsMu.Unlock()
	}()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return zero, ErrPoolClosed
		}
		p.metricsMu.Lock()
		p.inUse++
		p.totalAcquired++
		p.metricsMu.Unlock()
		return session, nil
	case <-ctx.Done():
		p.metricsMu.Lock()
		p.acquireFailures++
		p.metricsMu.Unlock()
		return zero, ctx.Err()
	}
}

// Release returns a session taken with Acquire.
func (p *Pool[T]) Release(session T) {
	p.metricsMu.Lock()
	p.inUse--
	p.totalReleased++
	p.metricsMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.destroy(session)
		return
	}
	p.sessions <- session
}

// Close destroys idle sessions; sessions still in use are destroyed on Release.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.sessions)

	for session := range p.sessions {
		p.destroy(session)
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() PoolStats {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	return PoolStats{
		PoolSize:        p.size,
		SessionsInUse:   p.inUse,
		TotalAcquired:   p.totalAcquired,
		TotalReleased:   p.totalReleased,
		AcquireFailures: p.acquireFailures,
		WaitTimeMillis:  p.waitTime.Milliseconds(),
	}
}
