package controller

import (
	"github.com/flowbridge/ofcore/event"
	"github.com/flowbridge/ofcore/hostrt"
)

// Nexus is the upstream event broker a Connection reports to once an
// Arbiter has placed it in some group of switches. Every event the
// core raises goes to the Nexus first; only if the Nexus-level
// delivery leaves Event.Halt unset does the Connection also raise the
// event to its own local subscribers.
type Nexus interface {
	// RaiseNoErrors publishes ev to every subscriber registered for
	// ev.Kind and returns ev so the caller can inspect Halt. Handler
	// panics are recovered and logged rather than propagated.
	RaiseNoErrors(ev *event.Event) *event.Event

	// Subscribe registers a handler on this nexus for events of kind k.
	Subscribe(k event.Kind, h event.Handler)

	// Connect is called synchronously when a Connection finishes
	// arbitration and attaches to this nexus, before ConnectionUp is
	// raised, and again each time an already-up Connection receives a
	// further FEATURES_REPLY.
	Connect(c *Connection)

	// Disconnect is called when a Connection attached to this nexus
	// goes down, identified by datapath ID.
	Disconnect(dpid uint64)
}

// Arbiter decides which Nexus a newly-handshaking Connection belongs
// to. Returning ok=false tells the Connection no home exists for it;
// the handshake is abandoned and the connection is dropped.
type Arbiter interface {
	GetNexus(c *Connection) (Nexus, bool)
}

// ArbiterFunc adapts a function to the Arbiter interface.
type ArbiterFunc func(c *Connection) (Nexus, bool)

// GetNexus implements Arbiter.
func (f ArbiterFunc) GetNexus(c *Connection) (Nexus, bool) {
	return f(c)
}

// BasicNexus is a ready-to-use Nexus backed by an event.Publisher. It
// is enough to run a single-switch-group controller; applications
// that need per-switch-group fan-out can implement their own Nexus and
// still embed BasicNexus for the Publisher plumbing.
type BasicNexus struct {
	pub *event.Publisher
}

// NewBasicNexus returns an empty, ready-to-use BasicNexus.
func NewBasicNexus() *BasicNexus {
	return &BasicNexus{pub: event.NewPublisher()}
}

// Subscribe implements Nexus.
func (n *BasicNexus) Subscribe(k event.Kind, h event.Handler) {
	n.pub.Subscribe(k, h)
}

// RaiseNoErrors implements Nexus. A panicking subscriber is recovered
// and logged; the subscribers after it for that event do not run.
func (n *BasicNexus) RaiseNoErrors(ev *event.Event) (out *event.Event) {
	out = ev
	defer func() {
		if r := recover(); r != nil {
			hostrt.GetLogger("nexus").Errorf("recovered from event handler panic: %v", r)
		}
	}()
	n.pub.Raise(ev)
	return ev
}

// Connect implements Nexus; BasicNexus has no per-switch bookkeeping of
// its own beyond the event bus, so this is a no-op hook for embedders
// to override by not embedding it and implementing Nexus directly.
func (n *BasicNexus) Connect(c *Connection) {}

// Disconnect implements Nexus.
func (n *BasicNexus) Disconnect(dpid uint64) {}

// noopNexus is the null-object nexus every Connection starts attached
// to before arbitration runs, per design note 9.1: it exists so that a
// FEATURES_REPLY arriving before arbitration completes has somewhere
// safe to publish to. It logs at warning level and otherwise discards
// everything.
type noopNexus struct{}

func (noopNexus) RaiseNoErrors(ev *event.Event) *event.Event {
	hostrt.GetLogger("nexus").Warnf("event %s raised with no nexus attached", ev.Kind)
	return ev
}

func (noopNexus) Subscribe(event.Kind, event.Handler) {}
func (noopNexus) Connect(*Connection)                 {}
func (noopNexus) Disconnect(uint64)                   {}
