package pipeline

import (
	"sync"
)

// ResultHandler receives completed analysis results
type ResultHandler interface {
	OnAnalysisResult(result *AnalysisResult)
}

// ResultHandlerFunc adapts a function to ResultHandler
type ResultHandlerFunc func(result *AnalysisResult)

// OnAnalysisResult calls f(result)
func (f ResultHandlerFunc) OnAnalysisResult(result *AnalysisResult) {
	f(result)
}

// EventBus provides pub/sub for stored analysis results
type EventBus struct {
	subscribers map[*eventSubscription]bool
	mu          sync.RWMutex
}

type eventSubscription struct {
	ownerFilter string // Empty string means receive all owners
	channel     chan *AnalysisResult
	handler     ResultHandler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[*eventSubscription]bool),
	}
}

// SubscribeOwner registers a handler for results of a single owner.
// An empty ownerID receives everything. Returns an unsubscribe function.
func (b *EventBus) SubscribeOwner(ownerID string, handler ResultHandler) func() {
	sub := &eventSubscription{ownerFilter: ownerID, handler: handler}

	b.mu.Lock()
	b.subscribers[sub] = true
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
	}
}

// SubscribeOwnerChannel returns a buffered channel receiving one owner's results.
// An empty ownerID receives everything. Results are dropped while the channel is full.
func (b *EventBus) SubscribeOwnerChannel(ownerID string, bufferSize int) (<-chan *AnalysisResult, func()) {
	if bufferSize <= 0 {
		bufferSize = 10
	}

	ch := make(chan *AnalysisResult, bufferSize)
	sub := &eventSubscription{
		ownerFilter: ownerID,
		channel:     ch,
	}

	b.mu.Lock()
	b.subscribers[sub] = true
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[sub]; ok {
			delete(b.subscribers, sub)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, unsubscribe
}

// Publish sends a result to all matching subscribers.
// Handlers run synchronously in the publisher's goroutine, after the bus
// lock is released, so they may subscribe or unsubscribe.
func (b *EventBus) Publish(result *AnalysisResult) {
	if result == nil {
		return
	}

	var handlers []ResultHandler
	b.mu.RLock()
	for sub := range b.subscribers {
		if sub.ownerFilter != "" && sub.ownerFilter != result.OwnerID {
			continue
		}

		if sub.handler != nil {
			handlers = append(handlers, sub.handler)
		} else if sub.channel != nil {
			select {
			case sub.channel <- result:
			default:
				// Channel full, skip this result
			}
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h.OnAnalysisResult(result)
	}
}

// SubscriberCount returns the number of active subscribers
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes all subscribers and closes channels
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub.channel != nil {
			close(sub.channel)
		}
		delete(b.subscribers, sub)
	}
}
