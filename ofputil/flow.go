package ofputil

import (
	"github.com/flowbridge/ofcore/ofp"
)

// TableFlush builds a FLOW_MOD that deletes every entry in table.
func TableFlush(table ofp.Table) *ofp.FlowMod {
	return &ofp.FlowMod{
		Table:    table,
		Command:  ofp.FlowDelete,
		Buffer:   ofp.NoBuffer,
		OutPort:  ofp.PortAny,
		OutGroup: ofp.GroupAny,
		Match:    ofp.Match{Type: ofp.MatchTypeXM},
	}
}

// FlowFlush builds a FLOW_MOD that deletes only the entries in table
// matching match.
func FlowFlush(table ofp.Table, match ofp.Match) *ofp.FlowMod {
	return &ofp.FlowMod{
		Table:    table,
		Command:  ofp.FlowDelete,
		Buffer:   ofp.NoBuffer,
		OutPort:  ofp.PortAny,
		OutGroup: ofp.GroupAny,
		Match:    match,
	}
}

// FlowDrop builds a FLOW_MOD that installs a match-everything,
// empty-instruction entry in table, i.e. a silent drop rule.
func FlowDrop(table ofp.Table) *ofp.FlowMod {
	return &ofp.FlowMod{
		Table:   table,
		Command: ofp.FlowAdd,
		Buffer:  ofp.NoBuffer,
		Match:   ofp.Match{Type: ofp.MatchTypeXM},
	}
}
