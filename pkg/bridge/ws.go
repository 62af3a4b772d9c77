package bridge

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bridge only listens on loopback; pages from any local origin may
	// subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type reloadMessage struct {
	Type    string `json:"type"`
	Version int64  `json:"version"`
}

// hub fans reload notifications out to connected websocket clients.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   zerolog.Logger
}

func newHub(log zerolog.Logger) *hub {
	return &hub{conns: map[*websocket.Conn]struct{}{}, log: log}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.Close()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *hub) broadcast(msg reloadMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteJSON(msg); err != nil {
			h.log.Debug().Err(err).Msg("dropping websocket client")
			delete(h.conns, c)
			c.Close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.Close()
		delete(h.conns, c)
	}
}

// handleWebsocket upgrades the connection, sends the current reload
// version and keeps the client registered until it disconnects.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	if err := conn.WriteJSON(reloadMessage{Type: "hello", Version: s.Version()}); err != nil {
		conn.Close()
		return
	}
	s.hub.add(conn)
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
