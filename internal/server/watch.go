package server

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"transcript-hub/internal/apperr"
	"transcript-hub/internal/events"
)

// watchPollInterval is how often the watch feed checks the bus for new
// events.
const watchPollInterval = 500 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is same-origin agnostic; access control happens upstream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWatch upgrades to a websocket and streams task change events.
// The client may resume from a known sequence via ?since=N; events are
// sent as JSON, one per message.
func (s *Server) handleWatch(c echo.Context) error {
	var since int64
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperr.New(apperr.CodeValidation, "since must be an integer sequence")
		}
		since = parsed
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, event := range s.bus.Since(since) {
				if err := s.writeEvent(conn, event); err != nil {
					return nil
				}
				since = event.Seq
			}
		}
	}
}

// writeEvent sends one event with a write deadline so a stalled client
// cannot wedge the feed.
func (s *Server) writeEvent(conn *websocket.Conn, event events.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("server: watch write failed: %v", err)
		return err
	}
	return nil
}
