package events

import (
	"testing"
	"time"
)

func TestSubscribePublish(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventPriceTick, 4)
	defer unsub()

	bus.Publish(EventPriceTick, 42.0)

	select {
	case v := <-ch:
		if v.(float64) != 42.0 {
			t.Errorf("payload = %v, want 42.0", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventTradeRecorded, 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		bus.Publish(EventTradeRecorded, 1)
		bus.Publish(EventTradeRecorded, 2) // buffer full, must drop
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
	if v := <-ch; v.(int) != 1 {
		t.Errorf("first payload = %v, want 1", v)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventRiskHalt, 1)
	unsub()

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish(EventRiskHalt, nil)
}
