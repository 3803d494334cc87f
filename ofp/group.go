package ofp

// GroupType represents a type of the group. Values in range [128, 255]
// are reserved for experimental use.
type GroupType uint8

const (
	// GroupTypeAll defines multicast/broadcast group.
	GroupTypeAll GroupType = iota

	// GroupTypeSelect defines a select group.
	GroupTypeSelect

	// GroupTypeIndirect defines an indirect group.
	GroupTypeIndirect

	// GroupTypeFastFailover defines fast failover group.
	GroupTypeFastFailover
)

// Group uniquely identifies the group in the switch.
type Group uint32

const (
	// GroupMax is the last usable group number.
	GroupMax Group = 0xffffff00

	// GroupAll represents all groups for group delete commands.
	GroupAll Group = 0xfffffffc

	// GroupAny is a wildcard group used only for flow stats requests.
	// Selects all flows regardless of group (including flows with no
	// group)
	GroupAny Group = 0xffffffff
)
