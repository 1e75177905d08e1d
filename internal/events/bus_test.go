package events

import "testing"

func TestPublishFansOut(t *testing.T) {
	bus := NewBus()
	ch1, unsub1 := bus.Subscribe(EventStreamStarted, 4)
	ch2, unsub2 := bus.Subscribe(EventStreamStarted, 4)
	defer unsub1()
	defer unsub2()

	bus.Publish(EventStreamStarted, StreamEvent{Symbol: "EURUSD", Reason: "subscribed"})

	for i, ch := range []<-chan any{ch1, ch2} {
		select {
		case payload := <-ch:
			ev, ok := payload.(StreamEvent)
			if !ok || ev.Symbol != "EURUSD" {
				t.Errorf("subscriber %d: unexpected payload %#v", i, payload)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventStreamStopped, 1)
	defer unsub()

	bus.Publish(EventStreamStopped, StreamEvent{Symbol: "EURUSD"})
	bus.Publish(EventStreamStopped, StreamEvent{Symbol: "GBPUSD"}) // dropped

	if got := len(ch); got != 1 {
		t.Fatalf("buffered %d events, want 1 with the overflow dropped", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(EventSessionConnected, 1)
	unsub()

	if _, open := <-ch; open {
		t.Fatal("channel must be closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	bus.Publish(EventSessionConnected, SessionEvent{Account: 1})
}

func TestPublishToUnknownEventIsNoop(t *testing.T) {
	bus := NewBus()
	bus.Publish(EventOrderPlaced, struct{}{})
}
