package rworker

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_LimitsConcurrency(t *testing.T) {
	p := New(2)
	var running, peak int32
	for i := 0; i < 20; i++ {
		p.Go(func() error {
			n := atomic.AddInt32(&running, 1)
			for {
				cur := atomic.LoadInt32(&peak)
				if n <= cur || atomic.CompareAndSwapInt32(&peak, cur, n) {
					break
				}
			}
			atomic.AddInt32(&running, -1)
			return nil
		})
	}
	assert.Empty(t, p.Wait())
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPool_CollectsErrors(t *testing.T) {
	p := New(0)
	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		i := i
		p.Go(func() error {
			if i%2 == 0 {
				return boom
			}
			return nil
		})
	}
	errs := p.Wait()
	assert.Len(t, errs, 3)
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.Empty(t, p.Wait())
}
