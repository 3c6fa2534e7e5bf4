package websocket

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/simucore/errors"
	"github.com/c360/simucore/metric"
	"github.com/c360/simucore/pkg/retry"
)

const defaultStopTimeout = 5 * time.Second

// MessageHandler receives the payload of every inbound text frame. It runs on
// the client's connection goroutine.
type MessageHandler func(id ClientID, msg []byte)

// ConnectionHandler is told when a client finishes the handshake (connected
// true) and when it goes away (connected false).
type ConnectionHandler func(id ClientID, connected bool)

// Deps are the optional collaborators of a Server
type Deps struct {
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// Server accepts WebSocket clients on one TCP port and fans text messages out
// to them.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	metrics *serverMetrics

	lifecycleMu sync.Mutex // serializes Start and Stop

	mu         sync.RWMutex
	listener   net.Listener
	running    bool
	shutdown   chan struct{}
	acceptDone chan struct{}
	wg         sync.WaitGroup // connection goroutines

	clientsMu sync.Mutex
	conns     map[ClientID]*client // every accepted socket
	clients   map[ClientID]*client // handshake completed
	stopping  bool

	nextID atomic.Uint64

	handlerMu    sync.RWMutex
	onMessage    MessageHandler
	onConnection ConnectionHandler
}

// NewServer validates cfg and registers the server metrics when a registry is
// supplied.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMetrics(deps.MetricsRegistry)
	if err != nil {
		return nil, errors.Wrap(err, "websocket", "NewServer", "metrics registration")
	}
	return &Server{
		cfg:     cfg,
		logger:  logger.With("component", "websocket"),
		metrics: m,
		conns:   make(map[ClientID]*client),
		clients: make(map[ClientID]*client),
	}, nil
}

// SetMessageHandler replaces the inbound message callback
func (s *Server) SetMessageHandler(h MessageHandler) {
	s.handlerMu.Lock()
	s.onMessage = h
	s.handlerMu.Unlock()
}

// SetConnectionHandler replaces the connect/disconnect callback
func (s *Server) SetConnectionHandler(h ConnectionHandler) {
	s.handlerMu.Lock()
	s.onConnection = h
	s.handlerMu.Unlock()
}

// Start binds the listener and begins accepting clients. Cancelling ctx
// stops the server.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.WrapInvalid(err, "Server", "Start", "context check")
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "state check")
	}

	addr := s.cfg.address()
	ln, err := retry.DoWithResult(ctx, s.cfg.BindRetry, func() (net.Listener, error) {
		l, err := net.Listen("tcp", addr)
		if err != nil && !errors.IsTransient(err) {
			return nil, retry.NonRetryable(err)
		}
		return l, err
	})
	if err != nil {
		s.metrics.failed("bind")
		return errors.WrapTransient(err, "Server", "Start", "listen on "+addr)
	}

	shutdown := make(chan struct{})
	acceptDone := make(chan struct{})

	s.clientsMu.Lock()
	s.stopping = false
	s.clientsMu.Unlock()

	s.mu.Lock()
	s.listener = ln
	s.running = true
	s.shutdown = shutdown
	s.acceptDone = acceptDone
	s.mu.Unlock()

	go s.acceptLoop(ln, shutdown, acceptDone)
	go func() {
		select {
		case <-ctx.Done():
			if err := s.Stop(defaultStopTimeout); err != nil {
				s.logger.Warn("Stop after context cancellation", "error", err)
			}
		case <-shutdown:
		}
	}()

	s.logger.Info("WebSocket server listening", "addr", ln.Addr().String())
	return nil
}

// Stop closes the listener and every client, then waits up to timeout for the
// connection goroutines. Stopping a stopped server is a no-op.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if timeout <= 0 {
		timeout = defaultStopTimeout
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.shutdown)
	ln, acceptDone := s.listener, s.acceptDone
	s.listener = nil
	s.mu.Unlock()

	// The accept loop must be gone before wg.Wait so no new Add races it
	_ = ln.Close()
	<-acceptDone

	s.clientsMu.Lock()
	s.stopping = true
	for _, c := range s.conns {
		c.setState(StateClosing)
		c.close()
	}
	s.clientsMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn("Connection goroutines did not exit in time", "timeout", timeout)
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Server", "Stop", "wait for connections")
	}

	s.logger.Info("WebSocket server stopped")
	return nil
}

// IsRunning reports whether the listener is accepting
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the bound address, or nil when not running
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ClientCount returns the number of clients past the handshake
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// SendToConnectedClients broadcasts msg as one text frame. It returns false
// when there is nobody to send to or msg does not fit a frame.
func (s *Server) SendToConnectedClients(msg []byte) bool {
	targets := s.openClients()
	if len(targets) == 0 {
		return false
	}
	frame, ok := s.encodeText(msg)
	if !ok {
		return false
	}
	s.deliver(targets, frame, len(msg))
	return true
}

// Broadcast sends msg to every connected client without reporting the outcome
func (s *Server) Broadcast(msg []byte) {
	s.SendToConnectedClients(msg)
}

// SendToClient sends msg to a single client
func (s *Server) SendToClient(id ClientID, msg []byte) bool {
	s.clientsMu.Lock()
	c, ok := s.clients[id]
	s.clientsMu.Unlock()
	if !ok {
		return false
	}
	frame, ok := s.encodeText(msg)
	if !ok {
		return false
	}
	return s.deliver([]*client{c}, frame, len(msg)) == 1
}

func (s *Server) encodeText(msg []byte) ([]byte, bool) {
	frame, err := EncodeFrame(OpText, msg)
	if err != nil {
		s.logger.Error("Outbound message dropped", "bytes", len(msg), "error", err)
		s.metrics.failed("frame_too_large")
		return nil, false
	}
	return frame, true
}

// deliver writes frame to each target. A failed write closes that client so
// its read loop unregisters it.
func (s *Server) deliver(targets []*client, frame []byte, payloadBytes int) int {
	sent := 0
	for _, c := range targets {
		if err := c.writeRaw(frame, s.cfg.WriteTimeout); err != nil {
			s.logger.Debug("Write to client failed", "client_id", c.id, "error", err)
			s.metrics.failed("write")
			c.close()
			continue
		}
		s.metrics.sent(payloadBytes)
		sent++
	}
	return sent
}

func (s *Server) openClients() []*client {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	out := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

func (s *Server) acceptLoop(ln net.Listener, shutdown <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-shutdown:
				return
			default:
			}
			if isTimeout(err) {
				continue
			}
			s.logger.Error("Accept failed", "error", err)
			s.metrics.failed("accept")
			return
		}

		c := newClient(ClientID(s.nextID.Add(1)), conn)
		if !s.track(c) {
			c.close()
			continue
		}
		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *Server) track(c *client) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.stopping {
		return false
	}
	s.conns[c.id] = c
	return true
}

func (s *Server) untrack(c *client) {
	s.clientsMu.Lock()
	delete(s.conns, c.id)
	delete(s.clients, c.id)
	s.clientsMu.Unlock()
	c.close()
}

func (s *Server) open(c *client) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if s.stopping {
		return false
	}
	c.setState(StateOpen)
	s.clients[c.id] = c
	return true
}

func (s *Server) serve(c *client) {
	defer s.wg.Done()
	defer s.untrack(c)

	c.setState(StateHandshaking)
	if s.cfg.HandshakeTimeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}
	br := bufio.NewReader(c.conn)
	if err := serverHandshake(br, c.conn); err != nil {
		s.logger.Debug("Handshake rejected", "client_id", c.id, "remote", c.conn.RemoteAddr().String(), "error", err)
		s.metrics.handshakeFailed()
		c.setState(StateClosed)
		return
	}
	_ = c.conn.SetDeadline(time.Time{})

	if !s.open(c) {
		c.setState(StateClosed)
		return
	}
	s.metrics.connected()
	s.logger.Info("Client connected", "client_id", c.id, "remote", c.conn.RemoteAddr().String())
	s.notifyConnection(c.id, true)

	reason := s.readLoop(c, br)

	s.clientsMu.Lock()
	delete(s.clients, c.id)
	s.clientsMu.Unlock()
	c.setState(StateClosed)

	s.metrics.disconnected(reason)
	s.logger.Info("Client disconnected", "client_id", c.id, "reason", reason,
		"duration", time.Since(c.connectedAt).String())
	s.notifyConnection(c.id, false)
}

// readLoop serves frames until the connection ends and returns the reason
func (s *Server) readLoop(c *client, br *bufio.Reader) string {
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		f, err := ReadFrame(br)
		if err != nil {
			return s.readFailure(c, err)
		}
		s.metrics.frameReceived(f.Opcode)

		switch f.Opcode {
		case OpText:
			s.dispatch(c.id, f.Payload)
		case OpClose:
			c.setState(StateClosing)
			if err := c.write(OpClose, f.Payload, s.cfg.WriteTimeout); err != nil {
				s.logger.Debug("Close echo failed", "client_id", c.id, "error", err)
			}
			return "client_close"
		case OpPing:
			if err := c.write(OpPong, f.Payload, s.cfg.WriteTimeout); err != nil {
				s.metrics.failed("write")
				return "write_error"
			}
		}
	}
}

func (s *Server) readFailure(c *client, err error) string {
	switch {
	case errors.Is(err, errors.ErrUnsupportedLength):
		s.logger.Warn("Client sent a 64-bit frame length", "client_id", c.id)
		s.metrics.failed("unsupported_length")
		return "protocol_error"
	case c.State() == StateClosing:
		return "server_stop"
	case isTimeout(err):
		return "timeout"
	default:
		return "connection_lost"
	}
}

func (s *Server) dispatch(id ClientID, msg []byte) {
	s.handlerMu.RLock()
	h := s.onMessage
	s.handlerMu.RUnlock()
	if h != nil {
		h(id, msg)
	}
}

func (s *Server) notifyConnection(id ClientID, connected bool) {
	s.handlerMu.RLock()
	h := s.onConnection
	s.handlerMu.RUnlock()
	if h != nil {
		h(id, connected)
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
