package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrOutboxClosed is returned by Push and Pop once the outbox is closed.
var ErrOutboxClosed = errors.New("outbox closed")

// outbox is an unbounded FIFO of outbound frames with one producer and one
// consumer. Push never blocks.
type outbox struct {
	mu     sync.Mutex
	queue  []string
	closed bool
	ready  chan struct{}
}

func newOutbox() *outbox {
	return &outbox{ready: make(chan struct{}, 1)}
}

// Push appends text unless the outbox has been closed.
func (o *outbox) Push(text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutboxClosed
	}
	o.queue = append(o.queue, text)
	o.signalLocked()
	return nil
}

// Pop blocks until an item is available, the outbox is closed or ctx ends.
// Items still queued at close time are dropped.
func (o *outbox) Pop(ctx context.Context) (string, error) {
	for {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return "", ErrOutboxClosed
		}
		if len(o.queue) > 0 {
			text := o.queue[0]
			o.queue[0] = ""
			o.queue = o.queue[1:]
			o.mu.Unlock()
			return text, nil
		}
		o.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-o.ready:
		}
	}
}

// Close is idempotent.
func (o *outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.queue = nil
	o.signalLocked()
}

// Len reports the number of queued items.
func (o *outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func (o *outbox) signalLocked() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}
