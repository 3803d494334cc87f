package controller

import (
	"bytes"

	"github.com/flowbridge/ofcore/event"
	"github.com/flowbridge/ofcore/frame"
	"github.com/flowbridge/ofcore/ofp"
)

// handlerFunc processes one fully-framed inbound message on the
// connection's own goroutine.
type handlerFunc func(c *Connection, msg frame.Message)

// dispatchTable is a dense, OFPT-indexed handler table. It is built
// once at package init and never mutated afterward, so concurrent
// connections can share it without locking.
var dispatchTable [32]handlerFunc

func init() {
	dispatchTable[frame.TypeHello] = handleHello
	dispatchTable[frame.TypeError] = handleError
	dispatchTable[frame.TypeEchoRequest] = handleEchoRequest
	dispatchTable[frame.TypeEchoReply] = handleNoop
	dispatchTable[frame.TypeExperimenter] = handleExperimenter
	dispatchTable[frame.TypeFeaturesReply] = handleFeaturesReply
	dispatchTable[frame.TypePacketIn] = handlePacketIn
	dispatchTable[frame.TypeFlowRemoved] = handleFlowRemoved
	dispatchTable[frame.TypePortStatus] = handlePortStatus
	dispatchTable[frame.TypeBarrierReply] = handleBarrierReply
	dispatchTable[frame.TypeMultipartReply] = handleMultipartReply
	dispatchTable[frame.TypeRoleReply] = handleNoop
	dispatchTable[frame.TypeGetAsyncReply] = handleNoop
}

// dispatch routes msg to its registered handler, aborting the
// connection if the type has none.
func (c *Connection) dispatch(msg frame.Message) {
	if int(msg.Header.Type) >= len(dispatchTable) || dispatchTable[msg.Header.Type] == nil {
		c.teardown("no handler for message type " + msg.Header.Type.String())
		return
	}

	dispatchTable[msg.Header.Type](c, msg)
}

func handleNoop(c *Connection, msg frame.Message) {}

func handleExperimenter(c *Connection, msg frame.Message) {
	c.log.Infof("conn %d: experimenter message (xid=%d, %d bytes)", c.ID, msg.Header.XID, len(msg.Body))
}

func handleHello(c *Connection, msg frame.Message) {
	if c.state != StateHelloSent && c.state != StatePreHello {
		return
	}
	if err := c.sendMessage(frame.TypeFeaturesRequest, c.nextXID(), nil); err != nil {
		c.log.Errorf("conn %d: failed to send features request: %s", c.ID, err)
		return
	}
	c.state = StateFeaturesPending
}

// handleError decodes an ERROR message and raises it as ErrorIn.
// The handshake's transient barrier-unsupported listener sets Halt on
// the event once it has claimed the error as an expected part of
// negotiation; everything else is logged.
func handleError(c *Connection, msg frame.Message) {
	var e ofp.Error
	if _, err := e.ReadFrom(bytes.NewReader(msg.Body)); err != nil {
		c.log.Errorf("conn %d: malformed ERROR message: %s", c.ID, err)
		return
	}

	ev := &event.Event{Kind: event.ErrorIn, Source: c, Data: errorEvent{XID: msg.Header.XID, Error: e}}
	out := c.nexus.RaiseNoErrors(ev)
	if out == nil {
		out = ev
	}
	if out.Halt {
		return
	}

	c.pub.Raise(out)

	// A connection-level subscriber (e.g. the handshake's transient
	// barrier-unsupported listener) may set Halt while handling this
	// event to mark it as an expected part of negotiation rather than
	// a fault worth logging.
	if !out.Halt {
		c.log.Warnf("conn %d: switch reported error: %s", c.ID, e.String())
	}
}

// errorEvent is the payload carried by ErrorIn events: the raw OFPT_ERROR
// plus the xid it arrived with, since handshake barrier matching needs
// the xid and ofp.Error itself doesn't carry one.
type errorEvent struct {
	XID   uint32
	Error ofp.Error
}

func handleEchoRequest(c *Connection, msg frame.Message) {
	var req ofp.EchoRequest
	if _, err := req.ReadFrom(bytes.NewReader(msg.Body)); err != nil {
		c.log.Errorf("conn %d: malformed ECHO_REQUEST: %s", c.ID, err)
		return
	}

	reply := &ofp.EchoReply{Data: req.Data}
	if err := c.sendMessage(frame.TypeEchoReply, msg.Header.XID, reply); err != nil {
		c.log.Errorf("conn %d: failed to send echo reply: %s", c.ID, err)
	}
}

func handlePacketIn(c *Connection, msg frame.Message) {
	var pi ofp.PacketIn
	if _, err := pi.ReadFrom(bytes.NewReader(msg.Body)); err != nil {
		c.log.Errorf("conn %d: malformed PACKET_IN: %s", c.ID, err)
		return
	}
	c.raise(event.PacketIn, &pi)
}

func handleFlowRemoved(c *Connection, msg frame.Message) {
	var fr ofp.FlowRemoved
	if _, err := fr.ReadFrom(bytes.NewReader(msg.Body)); err != nil {
		c.log.Errorf("conn %d: malformed FLOW_REMOVED: %s", c.ID, err)
		return
	}
	c.raise(event.FlowRemoved, &fr)
}

func handlePortStatus(c *Connection, msg frame.Message) {
	var ps ofp.PortStatus
	if _, err := ps.ReadFrom(bytes.NewReader(msg.Body)); err != nil {
		c.log.Errorf("conn %d: malformed PORT_STATUS: %s", c.ID, err)
		return
	}

	p := toLocalPort(ps.Port)
	switch ps.Reason {
	case ofp.PortReasonDelete:
		c.Ports.Forget(uint32(ps.Port.PortNo))
	default:
		c.Ports.Update(p)
	}

	c.raise(event.PortStatus, &ps)
}

func handleBarrierReply(c *Connection, msg frame.Message) {
	c.raise(event.BarrierIn, msg.Header.XID)
}

func handleMultipartReply(c *Connection, msg frame.Message) {
	var mr ofp.MultipartReply
	body := bytes.NewReader(msg.Body)
	n, err := mr.ReadFrom(body)
	if err != nil {
		c.log.Errorf("conn %d: malformed MULTIPART_REPLY: %s", c.ID, err)
		return
	}
	frag := msg.Body[int(n):]

	c.raise(event.RawMultipartReply, multipartFragment{
		XID: msg.Header.XID, Type: mr.Type, Flags: mr.Flags, Body: frag,
	})

	isLast := mr.Flags&ofp.MultipartReplyMode == 0

	reassembled, done := c.feedMultipart(msg.Header.XID, mr.Type, frag, isLast)
	if !done {
		return
	}

	kind, ok := multipartEvent(mr.Type)
	if !ok {
		c.log.Infof("conn %d: reassembled multipart reply of unrouted type %s", c.ID, mr.Type)
		return
	}
	c.raise(kind, reassembled)
}

// multipartFragment is the payload of a RawMultipartReply event: one
// raw fragment, before reassembly.
type multipartFragment struct {
	XID   uint32
	Type  ofp.MultipartType
	Flags ofp.MultipartReplyFlag
	Body  []byte
}
