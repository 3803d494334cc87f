// Package event implements the publish/subscribe bus that the
// controller core uses to tell upstream code about connection
// lifecycle and protocol activity: ConnectionUp, PacketIn, PortStatus,
// and so on. A Connection always publishes first to its Nexus, then to
// its own local subscribers, unless the Nexus-level delivery sets
// Event.Halt.
package event

import "sync"

// Kind identifies the category of an Event. The zero Kind is never
// raised.
type Kind int

// Event kinds raised by the controller core. Every kind is raised with
// the identical shape on both a Nexus and a Connection.
const (
	_ Kind = iota
	ConnectionUp
	ConnectionDown
	PortStatus
	FlowRemoved
	PacketIn
	ErrorIn
	BarrierIn
	FeaturesReceived
	RawMultipartReply

	MPDescReceived
	MPFlowStatsReceived
	MPAggregateStatsReceived
	MPTableStatsReceived
	MPPortStatsReceived
	MPQueueStatsReceived
	MPGroupStatsReceived
	MPGroupDescReceived
	MPGroupFeaturesReceived
	MPMeterStatsReceived
	MPMeterConfigReceived
	MPMeterFeaturesReceived
	MPTableFeaturesReceived
	MPPortDescReceived
)

var kindNames = map[Kind]string{
	ConnectionUp:             "ConnectionUp",
	ConnectionDown:           "ConnectionDown",
	PortStatus:               "PortStatus",
	FlowRemoved:              "FlowRemoved",
	PacketIn:                 "PacketIn",
	ErrorIn:                  "ErrorIn",
	BarrierIn:                "BarrierIn",
	FeaturesReceived:         "FeaturesReceived",
	RawMultipartReply:        "RawMultipartReply",
	MPDescReceived:           "MPDescReceived",
	MPFlowStatsReceived:      "MPFlowStatsReceived",
	MPAggregateStatsReceived: "MPAggregateStatsReceived",
	MPTableStatsReceived:     "MPTableStatsReceived",
	MPPortStatsReceived:      "MPPortStatsReceived",
	MPQueueStatsReceived:     "MPQueueStatsReceived",
	MPGroupStatsReceived:     "MPGroupStatsReceived",
	MPGroupDescReceived:      "MPGroupDescReceived",
	MPGroupFeaturesReceived:  "MPGroupFeaturesReceived",
	MPMeterStatsReceived:     "MPMeterStatsReceived",
	MPMeterConfigReceived:    "MPMeterConfigReceived",
	MPMeterFeaturesReceived:  "MPMeterFeaturesReceived",
	MPTableFeaturesReceived:  "MPTableFeaturesReceived",
	MPPortDescReceived:       "MPPortDescReceived",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// mpKindByType maps an OFPMP_* multipart sub-type (as carried on the
// wire) to the event Kind raised once a reply of that sub-type has
// been fully reassembled. Defined here, rather than in the controller
// package, so that callers of event.Kind never need to know the
// OFPMP_* numbering.
var mpKindByType = map[uint16]Kind{
	0:  MPDescReceived,
	1:  MPFlowStatsReceived,
	2:  MPAggregateStatsReceived,
	3:  MPTableStatsReceived,
	4:  MPPortStatsReceived,
	5:  MPQueueStatsReceived,
	6:  MPGroupStatsReceived,
	7:  MPGroupDescReceived,
	8:  MPGroupFeaturesReceived,
	9:  MPMeterStatsReceived,
	10: MPMeterConfigReceived,
	11: MPMeterFeaturesReceived,
	12: MPTableFeaturesReceived,
	13: MPPortDescReceived,
}

// MultipartKind returns the reassembled-reply Kind for an OFPMP_*
// sub-type, and reports whether that sub-type is one this core routes.
func MultipartKind(mpType uint16) (Kind, bool) {
	k, ok := mpKindByType[mpType]
	return k, ok
}

// Event is a single occurrence raised on a Publisher. Data carries the
// kind-specific payload (e.g. the *ofp.PortStatus for PortStatus, the
// assembled []byte for a multipart event); callers type-assert it.
// Source identifies which connection produced the event; it is nil for
// events a Nexus itself originates.
type Event struct {
	Kind   Kind
	Source interface{}
	Data   interface{}

	// Halt suppresses delivery to the next stage in the nexus ->
	// connection forwarding chain when set by a nexus-level
	// subscriber. It has no effect on subscribers at the same stage
	// that run after the one that set it; it only gates forwarding.
	Halt bool
}

// Handler receives a raised Event. A Handler must not block for long;
// the core invokes handlers synchronously on the connection's
// goroutine.
type Handler func(*Event)

type subscription struct {
	handler Handler
	once    bool
}

// Publisher is an ordered, multi-subscriber event sink for one
// Kind-keyed set of Handlers. Both a Nexus and a Connection embed one.
// Subscriber lists are appended-to far more often than raised
// concurrently from multiple goroutines, but Raise and Subscribe are
// still safe to call from different goroutines.
type Publisher struct {
	mu   sync.RWMutex
	subs map[Kind][]*subscription
}

// NewPublisher returns a ready-to-use Publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[Kind][]*subscription)}
}

// Subscribe registers h to run, in registration order, every time an
// Event of kind k is raised.
func (p *Publisher) Subscribe(k Kind, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[k] = append(p.subs[k], &subscription{handler: h})
}

// SubscribeOnce registers h to run at most once: it is removed from
// the subscriber list before it runs. Used for the handshake's
// transient barrier/error listeners during the handshake.
func (p *Publisher) SubscribeOnce(k Kind, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[k] = append(p.subs[k], &subscription{handler: h, once: true})
}

// Raise invokes every subscriber registered for ev.Kind, in
// registration order, passing ev. Once-subscribers are removed from
// the list before Raise returns, even if they are still executing when
// a concurrent Raise for the same Kind begins (that concurrent Raise
// takes a fresh snapshot after this one releases the write lock).
func (p *Publisher) Raise(ev *Event) {
	p.mu.Lock()
	subs := p.subs[ev.Kind]
	var kept []*subscription
	var fire []*subscription
	for _, s := range subs {
		fire = append(fire, s)
		if !s.once {
			kept = append(kept, s)
		}
	}
	p.subs[ev.Kind] = kept
	p.mu.Unlock()

	for _, s := range fire {
		s.handler(ev)
	}
}
