package ws

import (
	"testing"

	"walkie/internal/models"
)

func TestHub_AttachDetach(t *testing.T) {
	h := NewHub(nil)

	ch := h.Attach("c1")
	if ch == nil {
		t.Fatal("Attach returned nil channel")
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 connection, got %d", h.Len())
	}

	h.Send("c1", models.ServerEvent{Event: models.EventRingBell})
	select {
	case ev := <-ch:
		if ev.Event != models.EventRingBell {
			t.Errorf("unexpected event: %s", ev.Event)
		}
	default:
		t.Error("event not queued")
	}

	h.Detach("c1")
	if h.Len() != 0 {
		t.Errorf("expected 0 connections, got %d", h.Len())
	}
	if _, ok := <-ch; ok {
		t.Error("channel not closed on Detach")
	}

	// Detaching twice and sending to a gone connection are no-ops
	h.Detach("c1")
	h.Send("c1", models.ServerEvent{Event: models.EventRingBell})
}

func TestHub_SendAll(t *testing.T) {
	h := NewHub(nil)

	ch1 := h.Attach("c1")
	ch2 := h.Attach("c2")

	h.SendAll(models.ServerEvent{Event: models.EventUpdateOnlineUsers})

	for name, ch := range map[string]chan models.ServerEvent{"c1": ch1, "c2": ch2} {
		select {
		case ev := <-ch:
			if ev.Event != models.EventUpdateOnlineUsers {
				t.Errorf("%s: unexpected event %s", name, ev.Event)
			}
		default:
			t.Errorf("%s: event not queued", name)
		}
	}
}

func TestHub_SlowConnectionDropsEvents(t *testing.T) {
	h := NewHub(nil)

	ch := h.Attach("c1")
	for i := 0; i < sendBuffer+10; i++ {
		h.Send("c1", models.ServerEvent{Event: models.EventRingBell})
	}

	// The queue holds exactly its capacity; the overflow was dropped, and
	// nothing blocked.
	if len(ch) != sendBuffer {
		t.Errorf("expected %d queued events, got %d", sendBuffer, len(ch))
	}
}
