package web

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/tickdemo/internal/status"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

const writeWait = 5 * time.Second

// handleWS pushes the compact status JSON to the client immediately and
// then every push interval until the client goes away or the server shuts
// down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Reads only detect the client closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.PushInterval)
	defer ticker.Stop()

	for {
		snap := s.tracker.Snapshot()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, status.FormatStatusEvent(snap, "", "")); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-s.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(writeWait))
			return
		}
	}
}
