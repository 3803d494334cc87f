package ofp

import "fmt"

// Table defines a switch table number.
type Table uint8

// String returns a string representation of the table.
func (t Table) String() string {
	return fmt.Sprintf("Table(%d)", t)
}

const (
	// TableMax defines the last usable table number.
	TableMax Table = 0xfe

	// TableAll defines the wildcard table used for table config, flow
	// stats and flow deletes.
	TableAll Table = 0xff
)

// TableConfig defines the flags to configure the table. Reserved for
// future use.
type TableConfig uint32

const (
	// TableConfigDeprecatedMask defines the deprecated bits of the
	// table configuration.
	TableConfigDeprecatedMask TableConfig = 3
)
