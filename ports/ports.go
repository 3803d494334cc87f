// Package ports implements PortCollection, the baseline+delta view of
// a switch's port table. A FEATURES_REPLY snapshot becomes a baseline;
// subsequent PORT_STATUS messages apply add/update/delete deltas
// without mutating that snapshot, so the original feature-reply
// snapshot stays available for diagnostics even after the live view
// has moved on.
package ports

import "fmt"

// Port is the subset of an OpenFlow port descriptor the core tracks
// for lookup purposes. Richer per-port statistics live in the ofp
// message types themselves; Port only carries what PortCollection
// needs to index by number, MAC, or name.
type Port struct {
	PortNo uint32
	HWAddr [6]byte
	Name   string
}

// ErrNotFound is returned by Collection lookups that miss both the
// local delta and the baseline.
var ErrNotFound = fmt.Errorf("ports: no such port")

// Collection is a baseline+delta view over a switch's ports: lookups
// fall through to a parent baseline when not present locally, and a
// delete can mask a port that's still present in that baseline. The
// zero Collection is a usable, empty, baseline-less collection.
type Collection struct {
	baseline *Collection
	local    map[uint32]Port
	masks    map[uint32]struct{}
}

// New returns an empty Collection with no baseline.
func New() *Collection {
	return &Collection{
		local: make(map[uint32]Port),
		masks: make(map[uint32]struct{}),
	}
}

// NewFromBaseline returns an empty delta view layered on top of
// baseline. baseline is never mutated by operations on the returned
// Collection.
func NewFromBaseline(baseline *Collection) *Collection {
	c := New()
	c.baseline = baseline
	return c
}

// Reset clears the local delta (added/updated ports and masks) while
// leaving the baseline untouched.
func (c *Collection) Reset() {
	c.local = make(map[uint32]Port)
	c.masks = make(map[uint32]struct{})
}

// Forget marks portNo deleted: it is masked out of the baseline (if
// present there) and removed from the local delta.
func (c *Collection) Forget(portNo uint32) {
	delete(c.local, portNo)
	c.masks[portNo] = struct{}{}
}

// Update adds or replaces the local entry for p.PortNo and unmasks it,
// so a previously forgotten port becomes visible again once it is
// reported back by PORT_STATUS(ADD).
func (c *Collection) Update(p Port) {
	delete(c.masks, p.PortNo)
	c.local[p.PortNo] = p
}

// ByNumber looks up a port by its OpenFlow port number: local entries
// win over the baseline, and a masked baseline entry is invisible.
func (c *Collection) ByNumber(portNo uint32) (Port, bool) {
	if p, ok := c.local[portNo]; ok {
		return p, true
	}
	if _, masked := c.masks[portNo]; masked {
		return Port{}, false
	}
	if c.baseline != nil {
		return c.baseline.ByNumber(portNo)
	}
	return Port{}, false
}

// ByHWAddr looks up a port by MAC address.
func (c *Collection) ByHWAddr(addr [6]byte) (Port, bool) {
	for _, no := range c.Keys() {
		p, ok := c.ByNumber(no)
		if ok && p.HWAddr == addr {
			return p, true
		}
	}
	return Port{}, false
}

// ByName looks up a port by its reported name.
func (c *Collection) ByName(name string) (Port, bool) {
	for _, no := range c.Keys() {
		p, ok := c.ByNumber(no)
		if ok && p.Name == name {
			return p, true
		}
	}
	return Port{}, false
}

// Keys returns the set of visible port numbers: baseline keys minus
// masks, union local keys. Order is unspecified.
func (c *Collection) Keys() []uint32 {
	seen := make(map[uint32]struct{})
	var keys []uint32

	if c.baseline != nil {
		for _, no := range c.baseline.Keys() {
			if _, masked := c.masks[no]; masked {
				continue
			}
			if _, dup := seen[no]; dup {
				continue
			}
			seen[no] = struct{}{}
			keys = append(keys, no)
		}
	}

	for no := range c.local {
		if _, dup := seen[no]; dup {
			continue
		}
		seen[no] = struct{}{}
		keys = append(keys, no)
	}

	return keys
}

// Len reports the number of visible ports.
func (c *Collection) Len() int {
	return len(c.Keys())
}

// Copy returns a new Collection chained to a clone of this one's
// baseline chain: local and masks are copied, and the baseline
// reference is preserved by pointing at a fresh copy of it rather than
// the live instance, so mutations to the original after Copy don't
// leak into the copy.
func (c *Collection) Copy() *Collection {
	if c == nil {
		return nil
	}

	clone := &Collection{
		baseline: c.baseline.Copy(),
		local:    make(map[uint32]Port, len(c.local)),
		masks:    make(map[uint32]struct{}, len(c.masks)),
	}
	for no, p := range c.local {
		clone.local[no] = p
	}
	for no := range c.masks {
		clone.masks[no] = struct{}{}
	}
	return clone
}
