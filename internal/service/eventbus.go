package service

import (
	"sync"

	"github.com/bnema/vodpipe/internal/domain"
)

const (
	EventStatus   = "status"
	EventProgress = "progress"
	EventDeleted  = "deleted"
)

type Event struct {
	Type     string           `json:"type"`
	JobID    int64            `json:"job_id"`
	Status   domain.JobStatus `json:"status,omitempty"`
	Progress int              `json:"progress"`
	Message  string           `json:"message,omitempty"`
}

type EventPublisher interface {
	Publish(jobID int64, event Event)
}

type EventBus struct {
	subscribers map[int64][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[int64][]chan Event),
	}
}

func (eb *EventBus) Subscribe(jobID int64) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[jobID] = append(eb.subscribers[jobID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(jobID int64, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[jobID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[jobID]) == 0 {
		delete(eb.subscribers, jobID)
	}
}

// Publish never blocks. Slow subscribers miss events.
func (eb *EventBus) Publish(jobID int64, event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	event.JobID = jobID
	for _, ch := range eb.subscribers[jobID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (eb *EventBus) SubscriberCount(jobID int64) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[jobID])
}
