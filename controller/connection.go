// Package controller implements the OpenFlow 1.3 controller-side core:
// per-switch Connection state machines, the HELLO/FEATURES/BARRIER
// handshake, message dispatch and event fan-out, and the ListenerLoop
// that accepts new switches and drives their connections to
// completion.
//
// A classic OpenFlow controller reactor is single-threaded and
// cooperative: one task multiplexes every socket with a select/poll
// primitive and runs handlers to completion without preemption. This
// package expresses that model the way Go programs actually express
// it — one goroutine per accepted connection doing blocking reads, the
// way github.com/netrack/openflow's Server.Serve and
// contiv/libOpenflow's Controller.handleConnection both do it — rather
// than hand-rolling an epoll loop. The invariants that matter (strict
// per-connection message ordering, handlers that run to completion
// without interleaving with each other) fall out for free: a single
// goroutine is, by construction, never running two handlers at once.
package controller

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowbridge/ofcore/deferred"
	"github.com/flowbridge/ofcore/event"
	"github.com/flowbridge/ofcore/frame"
	"github.com/flowbridge/ofcore/hostrt"
	"github.com/flowbridge/ofcore/ofp"
	"github.com/flowbridge/ofcore/ports"
)

// State is a Connection's position in the handshake state machine.
// Disconnected is terminal.
type State int

const (
	StatePreHello State = iota
	StateHelloSent
	StateFeaturesPending
	StateInstallingMiss
	StateUp
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StatePreHello:
		return "pre-hello"
	case StateHelloSent:
		return "hello-sent"
	case StateFeaturesPending:
		return "features-pending"
	case StateInstallingMiss:
		return "installing-miss"
	case StateUp:
		return "up"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

var nextConnID uint64

// Connection is one TCP session with a single OpenFlow switch. Every
// field that only the connection's own goroutine touches (state,
// features, ports, multipart reassembly, handshake bookkeeping) is
// unsynchronized by design: the read loop is that goroutine, and
// handlers run to completion on it before the next message is
// dispatched. Fields other goroutines may reach into (disconnecting,
// writing) are guarded explicitly.
type Connection struct {
	ID uint64

	conn   net.Conn
	reader *frame.Reader
	log    hostrt.Logger

	sender  *deferred.Sender
	metrics *Metrics
	pcap    *pcapWriter

	writeMu sync.Mutex

	state State
	dpid  uint64

	Ports         *ports.Collection
	originalPorts *ports.Collection
	Features      *ofp.SwitchFeatures

	mp multipartBuffer

	arbiter Arbiter
	nexus   Nexus
	pub     *event.Publisher

	connectTime    time.Time
	idleTimeUnix   atomic.Int64
	disconnectOnce sync.Once
	disconnected   atomic.Bool

	barrierXID atomic.Uint32
	xidCounter atomic.Uint32
}

// newConnection constructs a Connection around an already-accepted
// socket and immediately sends OFPT_HELLO, per the handshake FSM's
// "on accept" transition. It does not start the read loop; callers
// (normally Server) do that with Serve.
func newConnection(conn net.Conn, arbiter Arbiter, sender *deferred.Sender, metrics *Metrics, pcap *pcapWriter) *Connection {
	c := &Connection{
		ID:            atomic.AddUint64(&nextConnID, 1),
		conn:          conn,
		reader:        frame.NewReader(conn),
		log:           hostrt.GetLogger("controller.connection"),
		sender:        sender,
		metrics:       metrics,
		pcap:          pcap,
		state:         StatePreHello,
		Ports:         ports.New(),
		originalPorts: ports.New(),
		arbiter:       arbiter,
		nexus:         noopNexus{},
		pub:           event.NewPublisher(),
	}
	c.idleTimeUnix.Store(time.Now().Unix())

	if err := c.sendMessage(frame.TypeHello, 0, &ofp.Hello{}); err != nil {
		c.log.Warnf("conn %d: failed to send initial hello: %s", c.ID, err)
	}
	c.state = StateHelloSent

	return c
}

// State reports the connection's current position in the handshake
// state machine.
func (c *Connection) State() State { return c.state }

// DatapathID returns the 64-bit switch identity reported in
// FEATURES_REPLY, or 0 before it has arrived.
func (c *Connection) DatapathID() uint64 { return c.dpid }

// ConnectTime reports when the handshake completed, or the zero time
// if it has not.
func (c *Connection) ConnectTime() time.Time { return c.connectTime }

// IdleTime reports the wall-clock time of the most recent successful
// read, for external idle-policy decisions. It is safe to call from
// any goroutine.
func (c *Connection) IdleTime() time.Time {
	return time.Unix(c.idleTimeUnix.Load(), 0)
}

// Subscribe registers a connection-local event handler. Connection
// subscribers run after the nexus has had a chance to handle (and
// potentially halt) the same event.
func (c *Connection) Subscribe(k event.Kind, h event.Handler) {
	c.pub.Subscribe(k, h)
}

func (c *Connection) nextXID() uint32 {
	return c.xidCounter.Add(1)
}

// raise publishes ev first to the nexus, then — unless the nexus
// delivery set ev.Halt — to the connection's own subscribers.
func (c *Connection) raise(kind event.Kind, data interface{}) {
	ev := &event.Event{Kind: kind, Source: c, Data: data}
	out := c.nexus.RaiseNoErrors(ev)
	if out == nil {
		out = ev
	}
	if out.Halt {
		return
	}
	c.pub.Raise(out)
}

// sendMessage serializes header+body and hands the bytes to the send
// path.
func (c *Connection) sendMessage(t frame.Type, xid uint32, body io.WriterTo) error {
	var buf bytes.Buffer
	h := frame.Header{Version: frame.Version, Type: t, XID: xid}
	n, err := frame.Encode(&buf, h, body)
	if err != nil {
		return err
	}

	if c.pcap != nil {
		h.Length = uint16(n)
		c.pcap.captureOutbound(frame.Message{Header: h, Body: buf.Bytes()[frame.HeaderLen:]})
	}

	c.sendBytes(buf.Bytes())
	return nil
}

// sendBytes implements the Connection.send I/O contract: silently
// drop if disconnected, enqueue if the deferred sender already has a
// global backlog, otherwise attempt one immediate write and enqueue
// whatever that write didn't cover.
func (c *Connection) sendBytes(data []byte) {
	if c.disconnected.Load() {
		return
	}

	if c.sender.Sending() {
		c.sender.Send(c.ID, c, data)
		return
	}

	n, err := c.tryWrite(data)
	if err != nil {
		if isTimeout(err) {
			c.sender.Send(c.ID, c, data[n:])
			return
		}
		c.teardown(fmt.Sprintf("send error: %s", err))
		return
	}

	if n < len(data) {
		c.sender.Send(c.ID, c, data[n:])
	}
}

// tryWrite attempts a single non-blocking-style write: it arms a
// write deadline of "now" so the call returns immediately instead of
// blocking the connection's goroutine, emulating a non-blocking socket
// write followed by EAGAIN-triggered enqueue.
func (c *Connection) tryWrite(data []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now())
	n, err := c.conn.Write(data)
	c.conn.SetWriteDeadline(time.Time{})
	return n, err
}

// Write implements deferred.Conn: it is the write entry point the
// Sender's worker goroutine uses to drain a backlogged queue. It
// shares writeMu with tryWrite so the two paths never interleave bytes
// on the wire.
func (c *Connection) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(b)
}

// SetWriteDeadline implements deferred.Conn.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Disconnect implements deferred.Conn and is also called directly by
// the read loop. It is idempotent: only the first call tears the
// connection down and raises ConnectionDown.
func (c *Connection) Disconnect() {
	c.teardown("")
}

func (c *Connection) teardown(reason string) {
	c.disconnectOnce.Do(func() {
		c.disconnected.Store(true)
		c.state = StateDisconnected

		if reason != "" {
			c.log.Infof("conn %d: disconnecting: %s", c.ID, reason)
		}

		c.sender.Kill(c.ID)
		c.nexus.Disconnect(c.dpid)
		c.raise(event.ConnectionDown, nil)

		c.conn.Close()
		if c.pcap != nil {
			c.pcap.Close()
		}

		if c.metrics != nil {
			c.metrics.connectionsClosed.Inc()
		}
	})
}

// Serve runs the connection's read loop until the socket closes or a
// framing violation occurs. It is meant to be called as `go
// conn.Serve()` by Server immediately after accept.
func (c *Connection) Serve() {
	defer c.teardown("read loop exited")

	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		c.idleTimeUnix.Store(time.Now().Unix())

		if c.pcap != nil {
			c.pcap.captureInbound(msg)
		}

		c.dispatchSafely(msg)
	}
}

func (c *Connection) logReadError(err error) {
	switch {
	case err == io.EOF:
		c.log.Infof("conn %d: connection closed by peer", c.ID)
	case err == frame.ErrUnsupportedVersion:
		c.log.Errorf("conn %d: unsupported OpenFlow version", c.ID)
		if c.pcap != nil {
			c.pcap.onVersionMismatch()
		}
	case isConnReset(err):
		c.log.Infof("conn %d: connection reset by peer", c.ID)
	default:
		c.log.Errorf("conn %d: read error: %s", c.ID, err)
	}
}

func isConnReset(err error) bool {
	return strings.Contains(err.Error(), "reset by peer") ||
		strings.Contains(err.Error(), "connection reset")
}

// dispatchSafely recovers from a panicking handler so that one bad
// message cannot take an otherwise-healthy connection down; the panic
// is logged with its full context instead.
func (c *Connection) dispatchSafely(msg frame.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("conn %d: handler panic on %s (xid=%d): %v", c.ID, msg.Header.Type, msg.Header.XID, r)
		}
	}()
	c.dispatch(msg)
}
