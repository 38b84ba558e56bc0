// Package events carries the engine's observable records: every mutating
// operation publishes one, so outside auditors can replay seed derivation and
// the winner draw.
package events

import (
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
)

// Topics published by the engine.
const (
	TopicLotteryCreated    = "lottery.created"
	TopicTicketPurchased   = "lottery.ticket.purchased"
	TopicSecretRevealed    = "lottery.revealed"
	TopicLotteryFinalized  = "lottery.finalized"
	TopicProceedsWithdrawn = "lottery.proceeds.withdrawn"
	TopicRefundWithdrawn   = "lottery.refund.withdrawn"
	TopicPaymentTokenSet   = "lottery.payment_token.set"
)

// Event is a single observable record.
type Event struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	LotteryID int64          `json:"lottery_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	At        time.Time      `json:"at"`
}

// Publisher emits engine events.
type Publisher interface {
	Publish(topic string, lotteryID int64, fields map[string]any)
}

// Bus publishes events over an in-process event bus. Subscribers attach with
// Subscribe and receive the full Event.
type Bus struct {
	bus evbus.Bus
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an event bus publisher.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

func (b *Bus) Publish(topic string, lotteryID int64, fields map[string]any) {
	b.bus.Publish(topic, Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		LotteryID: lotteryID,
		Fields:    fields,
		At:        time.Now().UTC(),
	})
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, fn func(Event)) error {
	return b.bus.Subscribe(topic, fn)
}

// Recorder collects published events in memory for tests and audit dumps.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Publisher = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(topic string, lotteryID int64, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		LotteryID: lotteryID,
		Fields:    fields,
		At:        time.Now().UTC(),
	})
}

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByTopic returns recorded events matching the topic.
func (r *Recorder) ByTopic(topic string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}
