package engine

import (
	"context"
	"net"
	"time"

	"github.com/c360/simucore/websocket"
)

// Ticker paces the tick loop. Wait returns when the next tick is due or ctx
// is done.
type Ticker interface {
	Wait(ctx context.Context) error
}

// HAL is the hardware abstraction the application samples every tick
type HAL interface {
	Init(ctx context.Context) error
	Update(ctx context.Context) error
}

// Transport carries snapshots out and mutations in. *websocket.Server
// implements it.
type Transport interface {
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	IsRunning() bool
	Addr() net.Addr
	SendToConnectedClients(msg []byte) bool
	SendToClient(id websocket.ClientID, msg []byte) bool
	SetMessageHandler(h websocket.MessageHandler)
	SetConnectionHandler(h websocket.ConnectionHandler)
}

var (
	_ Transport = (*websocket.Server)(nil)
	_ Transport = NullTransport{}
)

// NullTransport is used when the webserver is disabled. It never runs and
// drops every message.
type NullTransport struct{}

func (NullTransport) Start(context.Context) error                      { return nil }
func (NullTransport) Stop(time.Duration) error                         { return nil }
func (NullTransport) IsRunning() bool                                  { return false }
func (NullTransport) Addr() net.Addr                                   { return nil }
func (NullTransport) SendToConnectedClients([]byte) bool               { return false }
func (NullTransport) SendToClient(websocket.ClientID, []byte) bool     { return false }
func (NullTransport) SetMessageHandler(websocket.MessageHandler)       {}
func (NullTransport) SetConnectionHandler(websocket.ConnectionHandler) {}

// intervalTicker fires every period measured from the previous deadline, so
// work done inside a tick does not stretch the period. After an overrun of a
// full period it resynchronizes to the current time. Not safe for concurrent
// Wait calls.
type intervalTicker struct {
	period time.Duration
	next   time.Time
}

// NewTicker returns a Ticker with the given period. A non-positive period
// never waits.
func NewTicker(period time.Duration) Ticker {
	return &intervalTicker{period: period}
}

func (t *intervalTicker) Wait(ctx context.Context) error {
	if t.period <= 0 {
		return ctx.Err()
	}

	now := time.Now()
	if t.next.IsZero() || now.Sub(t.next) > t.period {
		t.next = now
	}
	t.next = t.next.Add(t.period)

	timer := time.NewTimer(time.Until(t.next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopHAL struct{}

func (nopHAL) Init(context.Context) error   { return nil }
func (nopHAL) Update(context.Context) error { return nil }
