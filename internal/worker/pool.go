// Package worker provides the bounded pool shared by analysis, catalog
// rebuilds and enrichment, capping concurrent outbound calls. One slot is
// reserved for TryGo so queued background work never starves analysis.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	DefaultSize = 3
	MinSize     = 2
	MaxSize     = 4
)

var ErrClosed = errors.New("worker pool closed")

type Pool struct {
	sem      *semaphore.Weighted // size-1 slots shared by Go and TryGo
	reserved *semaphore.Weighted // one slot only TryGo takes
	size     int
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New returns a pool of the given size, clamped to [MinSize, MaxSize].
// Zero selects DefaultSize.
func New(size int) *Pool {
	switch {
	case size == 0:
		size = DefaultSize
	case size < MinSize:
		size = MinSize
	case size > MaxSize:
		size = MaxSize
	}
	return &Pool{
		sem:      semaphore.NewWeighted(int64(size - 1)),
		reserved: semaphore.NewWeighted(1),
		size:     size,
	}
}

func (p *Pool) Size() int { return p.size }

// Go blocks until a shared slot is free (or ctx is done) and runs fn on it.
// It never takes the reserved slot.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	if !p.enter() {
		return ErrClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return err
	}
	go p.run(p.sem, fn)
	return nil
}

// TryGo runs fn only if a slot is immediately available, trying the reserved
// slot first. Waiters queued by Go only affect the shared slots.
func (p *Pool) TryGo(fn func()) bool {
	if !p.enter() {
		return false
	}
	switch {
	case p.reserved.TryAcquire(1):
		go p.run(p.reserved, fn)
	case p.sem.TryAcquire(1):
		go p.run(p.sem, fn)
	default:
		p.wg.Done()
		return false
	}
	return true
}

func (p *Pool) enter() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

func (p *Pool) run(slot *semaphore.Weighted, fn func()) {
	defer p.wg.Done()
	defer slot.Release(1)
	fn()
}

// Wait blocks until every submitted task has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// WaitTimeout is Wait bounded by d; it reports whether the pool drained.
func (p *Pool) WaitTimeout(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// Close rejects new work and waits for running tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
