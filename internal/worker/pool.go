// Package worker provides a bounded pool for concurrent tasks.
package worker

import (
	"sync"
)

// Pool limits how many submitted tasks run at once.
type Pool struct {
	wg      sync.WaitGroup
	workers chan struct{}
}

// NewPool creates a pool running at most size tasks concurrently.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		workers: make(chan struct{}, size),
	}
}

// Submit schedules a task, blocking while the pool is saturated.
func (p *Pool) Submit(task func()) {
	p.workers <- struct{}{}
	p.wg.Add(1)

	go func() {
		defer func() {
			<-p.workers
			p.wg.Done()
		}()

		task()
	}()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
