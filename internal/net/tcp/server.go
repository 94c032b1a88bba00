package tcp

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"bizarre-tabletop/server/internal/hub"
	"bizarre-tabletop/server/internal/proto"
)

// writeWait bounds how long a single line write may block before the
// connection is considered dead.
const writeWait = 10 * time.Second

// Server accepts plain TCP clients on the session's fixed port and runs one
// read loop per connection.
type Server struct {
	addr   string
	hub    *hub.Hub
	logger *log.Logger
	wg     sync.WaitGroup

	mu sync.Mutex
	ln net.Listener
}

// NewServer builds a TCP front end for the hub.
func NewServer(addr string, h *hub.Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{addr: addr, hub: h, logger: logger}
}

// Addr reports the bound listen address, or nil before ListenAndServe has
// opened its listener. Useful when the configured address picks a free port.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe accepts connections until ctx is cancelled. Accepting is
// never blocked by per-connection setup; each client gets its own goroutine
// immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.logger.Printf("listening for table clients on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

func (s *Server) serve(conn net.Conn) {
	id := s.hub.Attach(&lineConn{conn: conn}, "tcp")

	sc := proto.NewLineScanner(conn)
	for sc.Scan() {
		s.hub.HandleLine(id, sc.Text())
	}

	reason := "client closed the connection"
	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		reason = "read error: " + err.Error()
	}
	s.hub.Detach(id, reason)
}

// lineConn adapts a net.Conn to the hub's line-oriented writer.
type lineConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *lineConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}

func (c *lineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
