package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // auth is JWT-based
}

const watchWriteTimeout = 10 * time.Second

// watch streams reservation change events over a websocket until the client
// disconnects. Events missed while the client is slow are dropped, never queued
// indefinitely.
func (api *reservationAPI) watch(ctx echo.Context) error {
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	defer conn.Close()

	events, unsubscribe := api.svc.Subscribe()
	defer unsubscribe()

	// drain client messages to catch the close frame
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Request().Context().Done():
			return nil
		case evt := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := conn.WriteJSON(evt); err != nil {
				return nil
			}
		}
	}
}
