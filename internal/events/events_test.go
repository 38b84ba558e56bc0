package events

import (
	"testing"
)

func TestBusDeliversToSubscriber(t *testing.T) {
	bus := NewBus()

	got := make(chan Event, 1)
	if err := bus.Subscribe(TopicLotteryFinalized, func(e Event) { got <- e }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	bus.Publish(TopicLotteryFinalized, 7, map[string]any{"winners": []int64{1, 2, 3}})

	e := <-got
	if e.Topic != TopicLotteryFinalized {
		t.Fatalf("topic = %q", e.Topic)
	}
	if e.LotteryID != 7 {
		t.Fatalf("lottery id = %d, want 7", e.LotteryID)
	}
	if e.ID == "" || e.At.IsZero() {
		t.Fatal("event id and timestamp should be set")
	}
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	rec.Publish(TopicLotteryCreated, 1, nil)
	rec.Publish(TopicTicketPurchased, 1, map[string]any{"quantity": 5})
	rec.Publish(TopicTicketPurchased, 2, nil)

	if len(rec.Events()) != 3 {
		t.Fatalf("recorded %d events, want 3", len(rec.Events()))
	}
	purchases := rec.ByTopic(TopicTicketPurchased)
	if len(purchases) != 2 {
		t.Fatalf("got %d purchase events, want 2", len(purchases))
	}
	if purchases[0].LotteryID != 1 || purchases[1].LotteryID != 2 {
		t.Fatal("events should keep publish order")
	}
}
