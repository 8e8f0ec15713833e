package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"walkie/internal/models"
)

type mockWS struct {
	readCh      chan models.ClientEvent
	writeCh     chan any
	closeCh     chan struct{}
	closed      bool
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan models.ClientEvent, 10),
		writeCh: make(chan any, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

func (m *mockWS) WriteJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.writeCh <- v
	return nil
}

func (m *mockWS) ReadJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	select {
	case ev, ok := <-m.readCh:
		if !ok {
			return errors.New("closed")
		}
		if ptr, ok := v.(*models.ClientEvent); ok {
			*ptr = ev
		}
		return nil
	case <-m.closeCh:
		return errors.New("connection closed")
	}
}

type mockDispatcher struct {
	connectCh    chan string
	disconnectCh chan string
	dispatchCh   chan models.ClientEvent
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{
		connectCh:    make(chan string, 10),
		disconnectCh: make(chan string, 10),
		dispatchCh:   make(chan models.ClientEvent, 10),
	}
}

func (m *mockDispatcher) Connect(connID string)    { m.connectCh <- connID }
func (m *mockDispatcher) Disconnect(connID string) { m.disconnectCh <- connID }
func (m *mockDispatcher) Dispatch(connID string, ev models.ClientEvent) {
	m.dispatchCh <- ev
}

func TestConnection_Lifecycle(t *testing.T) {
	hub := NewHub(nil)
	dispatcher := newMockDispatcher()
	ws := newMockWS()
	connID := "conn1"

	conn := NewConnection(hub, dispatcher, ws, connID)
	if conn == nil {
		t.Fatal("NewConnection returned nil")
	}

	select {
	case id := <-dispatcher.connectCh:
		if id != connID {
			t.Errorf("Expected Connect with %s, got %s", connID, id)
		}
	default:
		t.Error("Connect not called on NewConnection")
	}
	if hub.Len() != 1 {
		t.Error("connection not attached to hub")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	// 1. Client -> dispatcher
	clientEv := models.ClientEvent{
		Event: models.EventBell,
		Data:  json.RawMessage(`{}`),
	}
	ws.readCh <- clientEv

	select {
	case received := <-dispatcher.dispatchCh:
		if received.Event != models.EventBell {
			t.Errorf("dispatcher received wrong event: %v", received)
		}
	case <-time.After(1 * time.Second):
		t.Error("dispatcher did not receive event")
	}

	// 2. Hub -> client
	hub.Send(connID, models.ServerEvent{Event: models.EventRingBell})

	select {
	case received := <-ws.writeCh:
		sEv, ok := received.(models.ServerEvent)
		if !ok {
			t.Fatalf("WS received wrong type: %T", received)
		}
		if sEv.Event != models.EventRingBell {
			t.Errorf("WS received wrong event: %v", sEv)
		}
	case <-time.After(1 * time.Second):
		t.Error("WS did not receive server event")
	}

	// 3. Stop
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Handle returned error: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return after cancel")
	}

	select {
	case id := <-dispatcher.disconnectCh:
		if id != connID {
			t.Errorf("Expected Disconnect with %s, got %s", connID, id)
		}
	default:
		t.Error("Disconnect not called")
	}
	if hub.Len() != 0 {
		t.Error("connection not detached from hub")
	}
	if !ws.closed {
		t.Error("WS Close not called")
	}
}

func TestConnection_WSError(t *testing.T) {
	hub := NewHub(nil)
	dispatcher := newMockDispatcher()
	ws := newMockWS()

	conn := NewConnection(hub, dispatcher, ws, "conn2")

	ws.errToReturn = errors.New("read error")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected error from Handle, got nil")
		}
	case <-time.After(1 * time.Second):
		t.Error("Handle did not return on error")
	}

	if !ws.closed {
		t.Error("WS Close not called")
	}
}
