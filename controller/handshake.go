package controller

import (
	"bytes"
	"sync"
	"time"

	"github.com/flowbridge/ofcore/event"
	"github.com/flowbridge/ofcore/frame"
	"github.com/flowbridge/ofcore/ofp"
)

// handleFeaturesReply implements the FEATURES_REPLY transition: record
// features and the baseline port snapshot, arbitrate a nexus (unless
// this is a reconnect re-emission), install the table-miss entry, and
// fence it with a barrier.
func handleFeaturesReply(c *Connection, msg frame.Message) {
	var sf ofp.SwitchFeatures
	n, err := sf.ReadFrom(bytes.NewReader(msg.Body))
	if err != nil {
		c.log.Errorf("conn %d: malformed FEATURES_REPLY: %s", c.ID, err)
		c.teardown("malformed features reply")
		return
	}

	// OpenFlow 1.0-style feature replies trail the fixed fields with
	// the port list; this core accepts that shape too so that the
	// handshake scenario in the test suite (a single FEATURES_REPLY
	// carrying its ports) round-trips without a separate
	// OFPMP_PORT_DESCRIPTION request.
	var reportedPorts ofp.Ports
	reportedPorts.ReadFrom(bytes.NewReader(msg.Body[int(n):]))

	c.Features = &sf
	c.dpid = sf.DatapathID

	snapshot := newBaselineFromReported(reportedPorts)
	c.originalPorts = snapshot
	c.Ports = newDeltaOver(snapshot)

	// Reconnects take the early-return path and stop there; first
	// connections raise FeaturesReceived exactly once, from the barrier
	// callback below.
	if !c.connectTime.IsZero() {
		c.nexus.Connect(c)
		c.raise(event.FeaturesReceived, &sf)
		return
	}

	nexus, ok := c.arbiter.GetNexus(c)
	if !ok {
		c.log.Warnf("conn %d: no nexus for this switch, dropping connection", c.ID)
		if c.metrics != nil {
			c.metrics.connectionsRejected.Inc()
		}
		c.teardown("no nexus")
		return
	}
	c.nexus = nexus
	c.nexus.Connect(c)

	c.state = StateInstallingMiss
	installTableMiss(c)
}

// installTableMiss sends the table-miss FLOW_MOD, followed by a
// BARRIER_REQUEST, then arms the one-shot BarrierIn/ErrorIn listeners
// that complete (or fail) the handshake.
func installTableMiss(c *Connection) {
	fm := &ofp.FlowMod{
		Command:     ofp.FlowAdd,
		Table:       0,
		Priority:    1,
		Buffer:      ofp.NoBuffer,
		OutPort:     ofp.PortController,
		OutGroup:    0,
		IdleTimeout: 0,
		HardTimeout: 0,
		Match:       ofp.Match{Type: ofp.MatchTypeXM},
		Instructions: ofp.Instructions{
			&ofp.InstructionApplyActions{
				Actions: ofp.Actions{
					&ofp.ActionOutput{Port: ofp.PortController, MaxLen: ofp.ContentLenNoBuffer},
				},
			},
		},
	}

	if err := c.sendMessage(frame.TypeFlowMod, c.nextXID(), fm); err != nil {
		c.log.Errorf("conn %d: failed to send table-miss flow mod: %s", c.ID, err)
		c.teardown("failed to install table-miss")
		return
	}

	xid := c.nextXID()
	c.barrierXID.Store(xid)

	if err := c.sendMessage(frame.TypeBarrierRequest, xid, nil); err != nil {
		c.log.Errorf("conn %d: failed to send barrier request: %s", c.ID, err)
		c.teardown("failed to send barrier")
		return
	}

	var settle sync.Once

	c.pub.SubscribeOnce(event.BarrierIn, func(ev *event.Event) {
		settle.Do(func() { onBarrier(c, ev) })
	})
	c.pub.SubscribeOnce(event.ErrorIn, func(ev *event.Event) {
		settle.Do(func() { onHandshakeError(c, ev) })
	})
}

func onBarrier(c *Connection, ev *event.Event) {
	xid, _ := ev.Data.(uint32)
	if xid != c.barrierXID.Load() {
		c.log.Errorf("conn %d: barrier xid mismatch: got %d, want %d", c.ID, xid, c.barrierXID.Load())
		c.teardown("failed connect")
		return
	}
	completeHandshake(c)
}

func onHandshakeError(c *Connection, ev *event.Event) {
	ee, _ := ev.Data.(errorEvent)

	if ee.XID == c.barrierXID.Load() &&
		ee.Error.Type == ofp.ErrTypeBadRequest &&
		ee.Error.Code == ofp.ErrCodeBadRequestBadType {
		// Switch doesn't support barriers; proceed as if BarrierIn fired.
		ev.Halt = true
		completeHandshake(c)
		return
	}

	c.log.Errorf("conn %d: handshake failed: %s", c.ID, ee.Error.String())
	c.teardown("failed connect")
}

func completeHandshake(c *Connection) {
	c.connectTime = time.Now()
	c.state = StateUp
	c.raise(event.ConnectionUp, nil)
	c.raise(event.FeaturesReceived, c.Features)
}
