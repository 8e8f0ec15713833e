package ws

import (
	"context"
	"errors"
	"sync"

	"walkie/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type connectionHub interface {
	Attach(connID string) chan models.ServerEvent
	Detach(connID string)
}

// eventDispatcher is the relay engine as the connection sees it.
type eventDispatcher interface {
	Connect(connID string)
	Disconnect(connID string)
	Dispatch(connID string, ev models.ClientEvent)
}

type Connection struct {
	ws         wsConnection
	hub        connectionHub
	dispatcher eventDispatcher
	connID     string
	fromClient chan models.ClientEvent
	fromServer chan models.ServerEvent
	errorCh    chan error
}

func NewConnection(
	hub connectionHub,
	dispatcher eventDispatcher,
	ws wsConnection,
	connID string,
) *Connection {
	dispatcher.Connect(connID)
	return &Connection{
		ws:         ws,
		hub:        hub,
		dispatcher: dispatcher,
		connID:     connID,
		fromClient: make(chan models.ClientEvent),
		fromServer: hub.Attach(connID),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Detach(c.connID)
		c.dispatcher.Disconnect(c.connID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpEvents(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
		// A pump may already have reported its error before cancelling.
		select {
		case err = <-c.errorCh:
		default:
		}
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpEvents(ctx context.Context) error {
	for {
		var ev models.ClientEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			return err
		}
		select {
		case c.fromClient <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case ev := <-c.fromClient:
			c.dispatcher.Dispatch(c.connID, ev)
		case ev, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
