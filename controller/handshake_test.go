package controller

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/flowbridge/ofcore/deferred"
	"github.com/flowbridge/ofcore/event"
	"github.com/flowbridge/ofcore/frame"
	"github.com/flowbridge/ofcore/hostrt"
	"github.com/flowbridge/ofcore/ofp"
)

// chainWriterTo concatenates several io.WriterTo values into a single
// message body, the way a FEATURES_REPLY carrying a trailing port list
// needs.
type chainWriterTo []io.WriterTo

func (c chainWriterTo) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, wt := range c {
		n, err := wt.WriteTo(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// testSwitch drives the peer half of a net.Pipe as a fake switch: a
// background goroutine keeps reading fully-framed messages so that
// neither the connection's immediate-write fast path nor its deferred
// fallback path ever block on the other end being idle.
type testSwitch struct {
	t    *testing.T
	conn net.Conn
	msgs chan frame.Message
}

func newTestSwitch(t *testing.T, conn net.Conn) *testSwitch {
	sw := &testSwitch{t: t, conn: conn, msgs: make(chan frame.Message, 64)}
	go sw.readLoop()
	return sw
}

func (sw *testSwitch) readLoop() {
	r := frame.NewReader(sw.conn)
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			close(sw.msgs)
			return
		}
		sw.msgs <- msg
	}
}

func (sw *testSwitch) expect(typ frame.Type) frame.Message {
	sw.t.Helper()
	select {
	case msg, ok := <-sw.msgs:
		if !ok {
			sw.t.Fatalf("connection closed while waiting for %s", typ)
		}
		if msg.Header.Type != typ {
			sw.t.Fatalf("expected %s, got %s", typ, msg.Header.Type)
		}
		return msg
	case <-time.After(2 * time.Second):
		sw.t.Fatalf("timed out waiting for %s", typ)
	}
	return frame.Message{}
}

func (sw *testSwitch) send(typ frame.Type, xid uint32, body io.WriterTo) {
	sw.t.Helper()
	h := frame.Header{Version: frame.Version, Type: typ, XID: xid}
	if _, err := frame.Encode(sw.conn, h, body); err != nil {
		sw.t.Fatalf("send %s: %s", typ, err)
	}
}

// recordingNexus wraps BasicNexus and funnels every raised event onto a
// channel the test can drain in order.
type recordingNexus struct {
	*BasicNexus
	events chan *event.Event
}

func newRecordingNexus() *recordingNexus {
	n := &recordingNexus{BasicNexus: NewBasicNexus(), events: make(chan *event.Event, 64)}
	for _, k := range []event.Kind{
		event.ConnectionUp, event.ConnectionDown, event.PortStatus,
		event.FlowRemoved, event.PacketIn, event.BarrierIn,
		event.FeaturesReceived, event.MPFlowStatsReceived,
	} {
		n.Subscribe(k, func(ev *event.Event) { n.events <- ev })
	}
	return n
}

func (n *recordingNexus) expect(t *testing.T, k event.Kind) *event.Event {
	t.Helper()
	select {
	case ev := <-n.events:
		if ev.Kind != k {
			t.Fatalf("expected event %s, got %s", k, ev.Kind)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event %s", k)
	}
	return nil
}

type testHarness struct {
	t     *testing.T
	conn  *Connection
	sw    *testSwitch
	nexus *recordingNexus
}

func newTestHarness(t *testing.T) *testHarness {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	sender := deferred.NewSender(hostrt.GetLogger("test.deferred"))
	t.Cleanup(sender.Stop)

	sw := newTestSwitch(t, client)

	nexus := newRecordingNexus()
	arbiter := ArbiterFunc(func(c *Connection) (Nexus, bool) { return nexus, true })

	conn := newConnection(server, arbiter, sender, nil, nil)
	go conn.Serve()
	sw.expect(frame.TypeHello) // the Hello newConnection sends on accept

	return &testHarness{t: t, conn: conn, sw: sw, nexus: nexus}
}

// runHandshake drives the full HELLO/FEATURES/BARRIER exchange and
// returns once the connection has reached StateUp. completeBarrier
// chooses whether the fake switch answers the barrier with
// BARRIER_REPLY (true) or with the "barrier unsupported" ERROR (false).
func (h *testHarness) runHandshake(reportedPort ofp.Port, completeBarrier bool) {
	h.t.Helper()

	h.sw.send(frame.TypeHello, 0, &ofp.Hello{})
	h.sw.expect(frame.TypeFeaturesRequest)

	sf := &ofp.SwitchFeatures{DatapathID: 0x0102030405060708, NumTables: 1}
	h.sw.send(frame.TypeFeaturesReply, 1, chainWriterTo{sf, &reportedPort})

	h.sw.expect(frame.TypeFlowMod)
	barrier := h.sw.expect(frame.TypeBarrierRequest)

	if completeBarrier {
		h.sw.send(frame.TypeBarrierReply, barrier.Header.XID, nil)
		h.nexus.expect(h.t, event.BarrierIn)
	} else {
		errBody := &ofp.Error{Type: ofp.ErrTypeBadRequest, Code: ofp.ErrCodeBadRequestBadType}
		h.sw.send(frame.TypeError, barrier.Header.XID, errBody)
	}

	h.nexus.expect(h.t, event.ConnectionUp)
	h.nexus.expect(h.t, event.FeaturesReceived)

	if h.conn.State() != StateUp {
		h.t.Fatalf("expected state up, got %s", h.conn.State())
	}
}

func TestHandshakeHappyPath(t *testing.T) {
	h := newTestHarness(t)
	h.runHandshake(ofp.Port{PortNo: 1, Name: "p1", HWAddr: net.HardwareAddr{0, 1, 2, 3, 4, 5}}, true)

	if got := h.conn.DatapathID(); got != 0x0102030405060708 {
		t.Fatalf("unexpected datapath id: %x", got)
	}

	p, ok := h.conn.Ports.ByName("p1")
	if !ok {
		t.Fatalf("expected port p1 to be present after handshake")
	}
	if p.PortNo != 1 {
		t.Fatalf("unexpected port number: %d", p.PortNo)
	}
}

func TestHandshakeBarrierUnsupported(t *testing.T) {
	h := newTestHarness(t)
	h.runHandshake(ofp.Port{PortNo: 1, Name: "p1"}, false)
}

func TestEchoRoundTrip(t *testing.T) {
	h := newTestHarness(t)
	h.runHandshake(ofp.Port{PortNo: 1, Name: "p1"}, true)

	h.sw.send(frame.TypeEchoRequest, 42, &ofp.EchoRequest{Data: []byte("ping")})
	reply := h.sw.expect(frame.TypeEchoReply)

	if reply.Header.XID != 42 {
		t.Fatalf("echo reply xid mismatch: got %d", reply.Header.XID)
	}

	var er ofp.EchoReply
	if _, err := er.ReadFrom(bytes.NewReader(reply.Body)); err != nil {
		t.Fatalf("malformed echo reply: %s", err)
	}
	if string(er.Data) != "ping" {
		t.Fatalf("echo reply data mismatch: %q", er.Data)
	}
}

func TestPortStatusDelta(t *testing.T) {
	h := newTestHarness(t)
	h.runHandshake(ofp.Port{PortNo: 1, Name: "p1"}, true)

	newPort := ofp.Port{PortNo: 2, Name: "p2", HWAddr: net.HardwareAddr{0, 1, 2, 3, 4, 6}}
	ps := &ofp.PortStatus{Reason: ofp.PortReasonAdd, Port: newPort}
	h.sw.send(frame.TypePortStatus, 0, ps)
	h.nexus.expect(h.t, event.PortStatus)

	if _, ok := h.conn.Ports.ByName("p2"); !ok {
		t.Fatalf("expected port p2 to be added")
	}

	del := &ofp.PortStatus{Reason: ofp.PortReasonDelete, Port: newPort}
	h.sw.send(frame.TypePortStatus, 0, del)
	h.nexus.expect(h.t, event.PortStatus)

	if _, ok := h.conn.Ports.ByName("p2"); ok {
		t.Fatalf("expected port p2 to be forgotten after delete")
	}
	if _, ok := h.conn.Ports.ByName("p1"); !ok {
		t.Fatalf("original port p1 should still be visible through the baseline")
	}
}

func TestMultipartReassembly(t *testing.T) {
	h := newTestHarness(t)
	h.runHandshake(ofp.Port{PortNo: 1, Name: "p1"}, true)

	mr1 := &ofp.MultipartReply{Type: ofp.MultipartTypeFlow, Flags: ofp.MultipartReplyMode}
	h.sw.send(frame.TypeMultipartReply, 7, chainWriterTo{mr1, rawBytes("frag-one-")})

	mr2 := &ofp.MultipartReply{Type: ofp.MultipartTypeFlow, Flags: 0}
	h.sw.send(frame.TypeMultipartReply, 7, chainWriterTo{mr2, rawBytes("frag-two")})

	ev := h.nexus.expect(h.t, event.MPFlowStatsReceived)
	body, ok := ev.Data.([]byte)
	if !ok {
		t.Fatalf("expected []byte payload, got %T", ev.Data)
	}
	if string(body) != "frag-one-frag-two" {
		t.Fatalf("unexpected reassembled body: %q", body)
	}
}

// rawBytes is a WriterTo over a fixed byte slice, for appending opaque
// fragment payloads after a typed header in a test message.
type rawBytes []byte

func (b rawBytes) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b)
	return int64(n), err
}
