package memory

import (
	"context"
	"sync"

	"quiz-assessment-engine/internal/domain"
)

// EventBus is an in-process grade-posted fan-out. It implements
// app.GradePublisher and feeds the websocket grade feed; for cross-instance
// delivery pair it with the Redis publisher.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[chan domain.GradePosted]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[chan domain.GradePosted]struct{})}
}

func (b *EventBus) PublishGradePosted(_ context.Context, event domain.GradePosted) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a slow consumer cannot
			// block the publisher.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
	return nil
}

// Subscribe returns a channel of grade events. The caller must invoke the
// returned cancel function to avoid leaks.
func (b *EventBus) Subscribe() (<-chan domain.GradePosted, func()) {
	ch := make(chan domain.GradePosted, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
