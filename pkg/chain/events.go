package chain

import (
	"sync"

	"github.com/agenc-io/agenc-registry/pkg/types"
)

// EventType names a state transition the chain has committed.
type EventType string

const (
	EventModelPublished       EventType = "model_published"
	EventVersionAdded         EventType = "version_added"
	EventMetadataUpdated      EventType = "metadata_updated"
	EventModelDeprecated      EventType = "model_deprecated"
	EventOwnershipTransferred EventType = "ownership_transferred"

	EventAgentRegistered      EventType = "agent_registered"
	EventTaskCreated          EventType = "task_created"
	EventTaskClaimed          EventType = "task_claimed"
	EventCompletionSubmitted  EventType = "completion_submitted"
	EventTaskCompleted        EventType = "task_completed"
	EventTaskDisputed         EventType = "task_disputed"
	EventDisputeResolved      EventType = "dispute_resolved"
	EventTaskCancelled        EventType = "task_cancelled"
)

// Event is emitted after an instruction commits. Failed instructions emit
// nothing.
type Event struct {
	Type      EventType              `json:"type"`
	Account   types.Address          `json:"account"`
	Actor     types.Address          `json:"actor"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

const eventBuffer = 64

// Feed fans committed events out to in-process subscribers. Slow
// subscribers drop events rather than stall the chain.
type Feed struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewFeed() *Feed {
	return &Feed{
		subs: make(map[int]chan Event),
	}
}

// Subscribe returns a channel of committed events and an unsubscribe
// function.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan Event, eventBuffer)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (f *Feed) publish(events []Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ev := range events {
		for _, sub := range f.subs {
			select {
			case sub <- ev:
			default:
			}
		}
	}
}
