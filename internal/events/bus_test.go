package events

import "testing"

func TestSubscribeReceivesOnlyRegisteredTypes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventProfileBlocked, EventProfileUnblocked)
	defer bus.Unsubscribe(sub)

	bus.Publish(EventProfileCreated, Payload{"profile_id": "a"})
	bus.Publish(EventProfileBlocked, Payload{"profile_id": "b"})

	select {
	case event := <-sub:
		if event.Type != EventProfileBlocked {
			t.Fatalf("event type = %s", event.Type)
		}
		if id := event.Payload["profile_id"]; id != "b" {
			t.Fatalf("payload profile_id = %v", id)
		}
	default:
		t.Fatal("expected a delivered event")
	}

	select {
	case event := <-sub:
		t.Fatalf("unexpected extra event %s", event.Type)
	default:
	}
}

func TestPublishSkipsSlowSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventScheduleUpdated)
	defer bus.Unsubscribe(sub)

	// Fill the buffer and then some; publishes past capacity must not block.
	for i := 0; i < cap(sub)+10; i++ {
		bus.Publish(EventScheduleUpdated, Payload{"i": i})
	}

	if got := len(sub); got != cap(sub) {
		t.Fatalf("buffered = %d, want full buffer %d", got, cap(sub))
	}
}
