package websocket

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ClientID identifies a connected client. Ids start at 1 and are not reused.
type ClientID uint64

// ConnState is the lifecycle stage of one connection
type ConnState int32

// Connection states
const (
	StateConnecting ConnState = iota
	StateHandshaking
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type client struct {
	id          ClientID
	conn        net.Conn
	connectedAt time.Time

	state     atomic.Int32
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newClient(id ClientID, conn net.Conn) *client {
	c := &client{id: id, conn: conn, connectedAt: time.Now()}
	c.setState(StateConnecting)
	return c
}

func (c *client) setState(s ConnState) { c.state.Store(int32(s)) }

func (c *client) State() ConnState { return ConnState(c.state.Load()) }

// writeRaw sends an already encoded frame
func (c *client) writeRaw(frame []byte, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	_, err := c.conn.Write(frame)
	return err
}

func (c *client) write(op Opcode, payload []byte, timeout time.Duration) error {
	frame, err := EncodeFrame(op, payload)
	if err != nil {
		return err
	}
	return c.writeRaw(frame, timeout)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}
