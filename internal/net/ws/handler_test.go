package ws

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bizarre-tabletop/server/internal/accounts"
	"bizarre-tabletop/server/internal/hub"
	"bizarre-tabletop/server/internal/proto"
	"bizarre-tabletop/server/internal/world"
)

// recordConn stands in for a TCP-side peer so fan-out across transports can
// be observed without a second listener.
type recordConn struct {
	mu    sync.Mutex
	lines []string
}

func (c *recordConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *recordConn) Close() error { return nil }

func (c *recordConn) RemoteAddr() string { return "record:0" }

func (c *recordConn) has(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.lines {
		if got == line {
			return true
		}
	}
	return false
}

func startBridge(t *testing.T) (*hub.Hub, *httptest.Server) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store := accounts.Open(filepath.Join(t.TempDir(), "accounts.txt"), logger)
	table := hub.New(hub.Config{World: world.New(), Store: store, Logger: logger})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		table.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(NewHandler(table, logger))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		table.Wait()
	})
	return table, srv
}

func dialBridge(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return string(payload)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridgeLoginAndSnapshot(t *testing.T) {
	_, srv := startBridge(t)

	conn := dialBridge(t, srv)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("name|Alice|pass|12345")); err != nil {
		t.Fatalf("write handshake: %v", err)
	}

	reply, ok := proto.ParseLine(readFrame(t, conn))
	if !ok || reply.Tag != proto.TagLoginCreated {
		t.Fatalf("first frame = %+v, want login_created", reply)
	}
	if reply.Arg(0) != "Alice" || len(reply.Args) != accounts.RecordFields {
		t.Fatalf("login payload = %v", reply.Args)
	}
	if frame := readFrame(t, conn); !strings.HasPrefix(frame, "update_map|20|20|") {
		t.Fatalf("snapshot frame = %q", frame)
	}
	for i := 0; i < 2; i++ {
		if frame := readFrame(t, conn); !strings.HasPrefix(frame, "update_token|-1|") {
			t.Fatalf("snapshot frame = %q", frame)
		}
	}
}

func TestBridgeFanOutAcrossTransports(t *testing.T) {
	table, srv := startBridge(t)

	wsClient := dialBridge(t, srv)
	if err := wsClient.WriteMessage(websocket.TextMessage, []byte("name|Alice|pass|12345")); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	for i := 0; i < 4; i++ {
		readFrame(t, wsClient)
	}

	peer := &recordConn{}
	peerID := table.Attach(peer, "tcp")
	table.HandleLine(peerID, "name|Bob|pass|54321")

	// The websocket client sees the peer's handshake and snapshot rebroadcast.
	if frame := readFrame(t, wsClient); frame != "name|Bob|pass|54321" {
		t.Fatalf("handshake relay = %q", frame)
	}
	for i := 0; i < 3; i++ {
		readFrame(t, wsClient)
	}

	// A command entering on the other transport reaches the bridge.
	table.HandleLine(peerID, "move|0|64|64")
	if frame := readFrame(t, wsClient); frame != "move|0|64|64" {
		t.Fatalf("relay toward bridge = %q", frame)
	}

	// One frame carrying several lines splits into one command each, and
	// both relay back out to the peer.
	batch := "roll|1|Alice|6\nmenacing\n"
	if err := wsClient.WriteMessage(websocket.TextMessage, []byte(batch)); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	waitFor(t, "batched commands relayed", func() bool {
		return peer.has("roll|1|Alice|6") && peer.has("menacing")
	})
	waitFor(t, "batched roll applied", func() bool {
		rolls := table.SnapshotRollLog()
		return len(rolls) == 1 && rolls[0] == "Alice rolled a dice(1-6): 6"
	})
}

func TestBridgeDisconnectDetaches(t *testing.T) {
	table, srv := startBridge(t)

	conn := dialBridge(t, srv)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("name|Alice|pass|12345")); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	readFrame(t, conn)
	waitFor(t, "roster gains Alice", func() bool { return len(table.Roster()) == 1 })

	conn.Close()
	waitFor(t, "roster empties", func() bool { return len(table.Roster()) == 0 })
}
