package usecase

import (
	"context"
	"sync"
)

// playQueue plays reply audio one payload at a time in the order it was
// pushed. A surface owns one queue for its lifetime.
type playQueue struct {
	player Player
	ctx    context.Context

	mu     sync.Mutex
	items  []string
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newPlayQueue(ctx context.Context, player Player) *playQueue {
	q := &playQueue{
		player: player,
		ctx:    ctx,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Push enqueues a payload. It reports false once the queue is closed.
func (q *playQueue) Push(payload string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, payload)
	q.mu.Unlock()

	q.signal()
	return true
}

// Close stops accepting payloads and waits for the queued ones to be
// handed to the player
func (q *playQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
	<-q.done
}

func (q *playQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *playQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		payload := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		q.player.Play(q.ctx, payload)
	}
}
