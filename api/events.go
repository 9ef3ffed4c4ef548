package api

import (
	"net/http"
	"time"

	"github.com/encodeous/meshwatch/state"
	"github.com/gorilla/websocket"
)

const eventBufferSize = 64

// streamEvents upgrades to a websocket and writes every engine event as a JSON
// text frame until the client goes away or the engine stops.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel, err := s.engine.Subscribe(eventBufferSize)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(state.WsWriteTimeout))
		return
	}
	defer cancel()
	s.log.Debug("event subscriber connected", "remote", r.RemoteAddr)

	// the client never sends anything, reading only surfaces the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(state.WsPingInterval)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine stopped"),
					time.Now().Add(state.WsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(state.WsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug("event subscriber write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(state.WsWriteTimeout)); err != nil {
				return
			}
		case <-gone:
			s.log.Debug("event subscriber disconnected", "remote", r.RemoteAddr)
			return
		}
	}
}
