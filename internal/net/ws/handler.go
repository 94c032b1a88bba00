package ws

import (
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bizarre-tabletop/server/internal/hub"
)

const writeWait = 10 * time.Second

// Handler bridges browser clients onto the session: the same pipe/newline
// line protocol, carried one-or-more lines per websocket text frame.
type Handler struct {
	hub      *hub.Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs the websocket bridge for the given hub.
func NewHandler(h *hub.Hub, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The session has no cross-origin story; local tables only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the session read loop until the
// peer goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	id := h.hub.Attach(&wsConn{conn: conn}, "websocket")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Detach(id, "websocket closed: "+err.Error())
			return
		}
		for _, line := range strings.Split(string(payload), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			h.hub.HandleLine(id, line)
		}
	}
}

// wsConn adapts a websocket connection to the hub's line-oriented writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
