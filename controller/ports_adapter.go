package controller

import (
	"strings"

	"github.com/flowbridge/ofcore/ofp"
	"github.com/flowbridge/ofcore/ports"
)

// toLocalPort narrows a wire-format ofp.Port down to the fields
// ports.Collection indexes on.
func toLocalPort(p ofp.Port) ports.Port {
	var mac [6]byte
	copy(mac[:], p.HWAddr)
	return ports.Port{
		PortNo: uint32(p.PortNo),
		HWAddr: mac,
		Name:   strings.TrimRight(p.Name, "\x00"),
	}
}

// newBaselineFromReported builds a baseline-less Collection holding
// exactly the ports a FEATURES_REPLY reported, becoming a connection's
// original-ports snapshot.
func newBaselineFromReported(reported ofp.Ports) *ports.Collection {
	baseline := ports.New()
	for _, p := range reported {
		baseline.Update(toLocalPort(p))
	}
	return baseline
}

// newDeltaOver returns an empty delta view layered on baseline,
// resetting the delta view on top of a freshly captured baseline.
func newDeltaOver(baseline *ports.Collection) *ports.Collection {
	return ports.NewFromBaseline(baseline)
}
