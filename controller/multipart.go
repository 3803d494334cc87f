package controller

import (
	"github.com/flowbridge/ofcore/event"
	"github.com/flowbridge/ofcore/ofp"
)

// multipartBuffer accumulates in-order fragments for a single logical
// multipart reply, tagged by (xid, type). It holds at most one logical
// reply in flight at a time — multipart sequences are never
// interleaved by xid.
type multipartBuffer struct {
	active bool
	xid    uint32
	mpType ofp.MultipartType
	bodies [][]byte
}

// isListType reports whether sub-type t's reassembled body is the
// concatenation of every fragment's body, as opposed to a scalar reply
// that only ever carries one fragment.
func isListType(t ofp.MultipartType) bool {
	switch t {
	case ofp.MultipartTypeDescription, ofp.MultipartTypeAggregate:
		return false
	default:
		return true
	}
}

// feedMultipart appends a fragment to the connection's in-flight
// reassembly, restarting it if the fragment's (xid, type) doesn't
// match what's already buffered — logged and recovered from rather
// than treated as fatal.
//
// It returns the reassembled body and true once isLast is set on a
// matching fragment.
func (c *Connection) feedMultipart(xid uint32, mpType ofp.MultipartType, body []byte, isLast bool) ([]byte, bool) {
	b := &c.mp
	if b.active && (b.xid != xid || b.mpType != mpType) {
		c.log.Errorf("conn %d: multipart reassembly restarted: had (xid=%d type=%s), got (xid=%d type=%s)",
			c.ID, b.xid, b.mpType, xid, mpType)
		if c.metrics != nil {
			c.metrics.multipartRestarts.Inc()
		}
		b.reset()
	}

	if !b.active {
		b.active = true
		b.xid = xid
		b.mpType = mpType
	}

	b.bodies = append(b.bodies, body)

	if !isLast {
		return nil, false
	}

	var out []byte
	if isListType(mpType) {
		for _, frag := range b.bodies {
			out = append(out, frag...)
		}
	} else {
		out = b.bodies[0]
	}

	b.reset()
	return out, true
}

func (b *multipartBuffer) reset() {
	b.active = false
	b.bodies = nil
}

// multipartEvent resolves the event.Kind that a reassembled reply of
// mpType should be published as.
func multipartEvent(mpType ofp.MultipartType) (event.Kind, bool) {
	return event.MultipartKind(uint16(mpType))
}
