package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced clock. Tickers created from it fire only on Advance.
type Fake struct {
	mtx     sync.Mutex
	now     time.Time
	tickers map[*fakeTicker]struct{}
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now, tickers: map[*fakeTicker]struct{}{}}
}

func (f *Fake) Now() time.Time {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	t := &fakeTicker{
		clock:  f,
		period: d,
		next:   f.now.Add(d),
		ch:     make(chan time.Time, 1),
	}
	f.tickers[t] = struct{}{}
	return t
}

// Advance moves the clock forward and fires every ticker whose period elapsed.
// Like time.Ticker, a tick is dropped when the previous one was not consumed.
func (f *Fake) Advance(d time.Duration) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.now = f.now.Add(d)
	for t := range f.tickers {
		if t.period <= 0 {
			continue
		}
		for !t.next.After(f.now) {
			select {
			case t.ch <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}
}

// Tickers returns the number of live tickers.
func (f *Fake) Tickers() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.tickers)
}

type fakeTicker struct {
	clock  *Fake
	period time.Duration
	next   time.Time
	ch     chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.clock.mtx.Lock()
	delete(t.clock.tickers, t)
	t.clock.mtx.Unlock()
}
