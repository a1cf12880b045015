// Package rworker runs jobs with a bounded number of them in flight.
package rworker

import "sync"

// Pool limits concurrent jobs and keeps every error they return.
type Pool struct {
	wg   sync.WaitGroup
	rate chan struct{}

	mtx  sync.Mutex
	errs []error
}

// New returns a pool running at most limit jobs at once. A limit below one is treated as one.
func New(limit int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{rate: make(chan struct{}, limit)}
}

// Go schedules fn. It does not block on the limit; the job goroutine waits for a slot.
func (p *Pool) Go(fn func() error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.rate <- struct{}{}
		defer func() { <-p.rate }()
		if err := fn(); err != nil {
			p.mtx.Lock()
			p.errs = append(p.errs, err)
			p.mtx.Unlock()
		}
	}()
}

// Wait blocks until every scheduled job finished and returns their errors.
func (p *Pool) Wait() []error {
	p.wg.Wait()
	p.mtx.Lock()
	defer p.mtx.Unlock()
	errs := p.errs
	p.errs = nil
	return errs
}
