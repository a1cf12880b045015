// Package iqueue is an unbounded FIFO channel: Send never waits for the receiver.
package iqueue

import (
	"container/list"
	"sync"
)

func New[T any]() *Queue[T] {
	return &Queue[T]{
		queue: list.New(),
		send:  make(chan T, 1),
		recv:  make(chan T, 1),
	}
}

type Queue[T any] struct {
	mtx    sync.RWMutex
	closed bool

	queue *list.List
	send  chan T
	recv  chan T
}

// Send enqueues v. It reports false once the queue is closed.
func (iq *Queue[T]) Send(v T) bool {
	iq.mtx.RLock()
	defer iq.mtx.RUnlock()
	if iq.closed {
		return false
	}
	iq.send <- v
	return true
}

// Receive yields queued values in order. It is closed after Close once every value was received.
func (iq *Queue[T]) Receive() <-chan T {
	return iq.recv
}

// Close stops accepting values. Values already sent are still delivered.
func (iq *Queue[T]) Close() {
	iq.mtx.Lock()
	defer iq.mtx.Unlock()
	if iq.closed {
		return
	}
	iq.closed = true
	close(iq.send)
}

// Loop moves values from Send to Receive and must run in its own goroutine.
func (iq *Queue[T]) Loop() {
	send := iq.send
	for {
		front := iq.queue.Front()
		if front != nil {
			select {
			case iq.recv <- front.Value.(T):
				iq.queue.Remove(front)
			case value, ok := <-send:
				if ok {
					iq.queue.PushBack(value)
				} else {
					send = nil
				}
			}
			continue
		}

		if send == nil {
			close(iq.recv)
			return
		}
		value, ok := <-send
		if !ok {
			close(iq.recv)
			return
		}
		iq.queue.PushBack(value)
	}
}
