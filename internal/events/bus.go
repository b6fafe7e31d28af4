// Package events is the in-process broadcaster of spec.md §4.7: the
// scheduler emits a FlowEvent whenever it persists a flow transition;
// subscribers receive deltas best-effort. Grounded on the teacher's
// SSEHub (subscriptions map + bounded per-subscriber channel with a
// non-blocking send-or-drop), generalized from SSE clients to flow
// subscribers and no longer forwarded across instances — spec.md §4.7/§9
// mandate an in-process-only bus (no Redis leg, unlike the teacher).
package events

import (
	"sync"

	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

// FlowEvent is the delta a subscriber receives: the flow id, the new
// status, the current stage, and the task-set counts (spec.md §4.7).
type FlowEvent struct {
	FlowID        uint64 `json:"flow_id"`
	Status        string `json:"status"`
	CurrentStage  int    `json:"current_stage"`
	FinishedCount int    `json:"finished_count"`
	FailedCount   int    `json:"failed_count"`
	RunningCount  int    `json:"running_count"`
}

const subscriberBuffer = 32

type Subscriber struct {
	ch   chan FlowEvent
	done chan struct{}
	once sync.Once
}

func (s *Subscriber) Events() <-chan FlowEvent { return s.ch }

// Close drops the subscription. A subscriber disconnect silently drops
// (spec.md §5 "Cancellation and timeouts").
func (s *Subscriber) Close() {
	s.once.Do(func() { close(s.done) })
}

type Bus struct {
	log  *logger.Logger
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		log:  log.With("component", "EventBus"),
		subs: make(map[*Subscriber]struct{}),
	}
}

func (b *Bus) Subscribe() *Subscriber {
	sub := &Subscriber{
		ch:   make(chan FlowEvent, subscriberBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	go func() {
		<-sub.done
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}()
	return sub
}

// Publish delivers ev to every live subscriber, non-blocking: a subscriber
// whose buffer is full has the event dropped for it, logged at warn. The
// bus does not buffer beyond this small bounded window per subscriber.
func (b *Bus) Publish(ev FlowEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.log.Warn("dropping flow event; subscriber buffer full", "flow_id", ev.FlowID, "status", ev.Status)
		}
	}
}
