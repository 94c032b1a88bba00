package hub

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"bizarre-tabletop/server/internal/accounts"
	"bizarre-tabletop/server/internal/proto"
	"bizarre-tabletop/server/internal/world"
	"bizarre-tabletop/server/logging"
	sessionlog "bizarre-tabletop/server/logging/session"
)

// State tracks a connection through its lifecycle.
type State int

const (
	// StateAuthenticating covers Accepted through the name handshake. The
	// connection is excluded from the roster and from fan-out.
	StateAuthenticating State = iota
	// StateActive means the login round-trip completed.
	StateActive
	// StateClosed means the connection left the registry.
	StateClosed
)

// Conn is the transport half of a session: something that can deliver one
// protocol line at a time. TCP sockets and websocket bridges both satisfy it.
type Conn interface {
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// Config wires a hub's collaborators and buffer sizes.
type Config struct {
	World  *world.World
	Store  *accounts.Store
	Logger *log.Logger
	Events logging.Publisher
	// QueueSize bounds the central broadcast queue.
	QueueSize int
	// SubscriberBuffer bounds each connection's outbound backlog. A
	// connection that overflows it is dropped so one stalled client
	// cannot stall fan-out for the rest.
	SubscriberBuffer int
}

type message struct {
	origin  string
	payload string
}

type session struct {
	id        string
	conn      Conn
	transport string
	state     State
	account   accounts.Account
	out       chan string
}

// Hub owns the paired connection/session registry, the world, and the
// broadcast queue behind a single mutex. No lock is ever held across a
// blocking network call: fan-out snapshots under the lock and each
// connection's writer goroutine drains its own buffered channel.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session
	order    []string

	world     *world.World
	store     *accounts.Store
	queue     chan message
	subBuffer int
	logger    *log.Logger
	events    logging.Publisher

	wg           sync.WaitGroup
	queueDropped atomic.Uint64
}

// New constructs a hub. World and Store are required; zero buffer sizes get
// defaults.
func New(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	events := cfg.Events
	if events == nil {
		events = logging.NopPublisher()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	subBuffer := cfg.SubscriberBuffer
	if subBuffer <= 0 {
		subBuffer = 64
	}
	return &Hub{
		sessions:  make(map[string]*session),
		world:     cfg.World,
		store:     cfg.Store,
		queue:     make(chan message, queueSize),
		subBuffer: subBuffer,
		logger:    logger,
		events:    events,
	}
}

// Run drains the broadcast queue until ctx is cancelled. Messages reach
// every Active connection except the tagged origin, in enqueue order.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll("server shutdown")
			return
		case msg := <-h.queue:
			h.fanOut(ctx, msg)
		}
	}
}

// Attach registers a freshly accepted connection in the Authenticating
// state and starts its writer goroutine. It returns the connection ID used
// for all later calls.
func (h *Hub) Attach(conn Conn, transport string) string {
	sess := &session{
		id:        uuid.NewString(),
		conn:      conn,
		transport: transport,
		state:     StateAuthenticating,
		out:       make(chan string, h.subBuffer),
	}

	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.order = append(h.order, sess.id)
	h.mu.Unlock()

	h.wg.Add(1)
	go h.writeLoop(sess)

	h.logger.Printf("connection %s accepted from %s (%s)", sess.id, conn.RemoteAddr(), transport)
	sessionlog.ConnectionAccepted(context.Background(), h.events, h.connRef(sess.id),
		sessionlog.ConnectionPayload{RemoteAddr: conn.RemoteAddr(), Transport: transport})
	return sess.id
}

// Detach removes a connection from the registry and closes its socket. Safe
// to call more than once.
func (h *Hub) Detach(id, reason string) {
	h.mu.Lock()
	sess, ok := h.sessions[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, id)
	for i, ordered := range h.order {
		if ordered == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	sess.state = StateClosed
	close(sess.out)
	h.mu.Unlock()

	sess.conn.Close()
	h.logger.Printf("connection %s closed: %s (%d remaining)", id, reason, h.connectionCount())
	sessionlog.ConnectionClosed(context.Background(), h.events, h.connRef(id),
		sessionlog.ConnectionPayload{Reason: reason})
}

// HandleLine is the connection manager's entry point: one complete protocol
// line from the identified connection.
func (h *Hub) HandleLine(id, line string) {
	cmd, ok := proto.ParseLine(line)
	if !ok {
		return
	}

	h.mu.Lock()
	sess, live := h.sessions[id]
	var state State
	var accountName string
	if live {
		state = sess.state
		// Captured here so dispatch never touches sess.account, which
		// saveSheets rewrites under the same mutex.
		accountName = sess.account.Name
	}
	h.mu.Unlock()
	if !live {
		return
	}

	switch {
	case cmd.Tag == proto.TagExit:
		h.Detach(id, "client exit")
	case state == StateAuthenticating:
		h.authenticate(sess, cmd)
	default:
		h.dispatch(sess, accountName, cmd)
	}
}

// Broadcast enqueues a payload for delivery to every Active connection
// except origin. An empty origin reaches everyone. When the queue is full
// the message is dropped and counted rather than blocking the caller.
func (h *Hub) Broadcast(origin, payload string) {
	select {
	case h.queue <- message{origin: origin, payload: payload}:
	default:
		h.queueDropped.Add(1)
		h.logger.Printf("broadcast queue full, dropping %q", firstField(payload))
	}
}

// Roster lists the account names of Active connections in attach order.
func (h *Hub) Roster() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rosterLocked("")
}

// SnapshotTokens copies the current token list.
func (h *Hub) SnapshotTokens() []world.Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.Tokens()
}

// SnapshotRollLog copies the current roll history.
func (h *Hub) SnapshotRollLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.RollLog()
}

// QueueDropped reports how many broadcasts were shed on a full queue.
func (h *Hub) QueueDropped() uint64 {
	return h.queueDropped.Load()
}

// Wait blocks until every writer goroutine has exited. Call after Run
// returns.
func (h *Hub) Wait() {
	h.wg.Wait()
}

func (h *Hub) connectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) connRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindConnection}
}

func (h *Hub) rosterLocked(excludeID string) []string {
	names := make([]string, 0, len(h.order))
	for _, id := range h.order {
		if id == excludeID {
			continue
		}
		sess, ok := h.sessions[id]
		if !ok || sess.state != StateActive {
			continue
		}
		names = append(names, sess.account.Name)
	}
	return names
}

// sendLocked queues one line for a single connection. The caller holds
// h.mu. A full backlog reports false; the caller decides whether that
// drops the connection.
func (h *Hub) sendLocked(sess *session, line string) bool {
	if sess.state == StateClosed {
		return true
	}
	select {
	case sess.out <- line:
		return true
	default:
		return false
	}
}

// sendTo queues one line for a single connection, dropping the connection
// when its backlog is full.
func (h *Hub) sendTo(sess *session, line string) {
	h.mu.Lock()
	ok := h.sendLocked(sess, line)
	h.mu.Unlock()
	if !ok {
		h.dropSlow(sess)
	}
}

func (h *Hub) fanOut(ctx context.Context, msg message) {
	h.mu.Lock()
	var slow []*session
	for _, id := range h.order {
		if id == msg.origin {
			continue
		}
		sess := h.sessions[id]
		if sess == nil || sess.state != StateActive {
			continue
		}
		if !h.sendLocked(sess, msg.payload) {
			slow = append(slow, sess)
		}
	}
	h.mu.Unlock()

	for _, sess := range slow {
		h.dropSlow(sess)
	}
}

func (h *Hub) dropSlow(sess *session) {
	sessionlog.SubscriberDropped(context.Background(), h.events, h.connRef(sess.id),
		sessionlog.ConnectionPayload{Reason: "outbound backlog full"})
	h.Detach(sess.id, "outbound backlog full")
}

func (h *Hub) writeLoop(sess *session) {
	defer h.wg.Done()
	for line := range sess.out {
		if err := sess.conn.WriteLine(line); err != nil {
			h.Detach(sess.id, "write error: "+err.Error())
			// Keep draining so Detach's close can complete.
			for range sess.out {
			}
			return
		}
	}
}

func (h *Hub) closeAll(reason string) {
	h.mu.Lock()
	ids := append([]string(nil), h.order...)
	h.mu.Unlock()
	for _, id := range ids {
		h.Detach(id, reason)
	}
}

func firstField(payload string) string {
	for i := 0; i < len(payload); i++ {
		if payload[i] == '|' || payload[i] == '\n' {
			return payload[:i]
		}
	}
	return payload
}
