// Package walklog defines the walk-log protocol: the ordered, replayable,
// independently-mergeable sequence of events a single walk emits, and the
// wire encoding workers use to ship them to peers. Entries are JSON
// records carrying dc_module/dc_name discriminator fields so a
// polymorphic decoder can reconstruct the right variant, using
// encoding/json for a self-describing wire value.
package walklog

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Kind discriminates the three entry variants.
type Kind string

const (
	KindTakeAction Kind = "TakeAction"
	KindNewNode    Kind = "NewNode"
	KindWalkResult Kind = "WalkResult"
)

const dcModule = "walklog"

// Entry is one walk-log event. Only the fields relevant to Kind are set;
// unused fields are left at their zero value and omitted from the wire
// encoding.
type Entry struct {
	DCModule string `json:"dc_module"`
	DCName   string `json:"dc_name"`
	Kind     Kind   `json:"kind"`

	// TakeAction / NewNode
	Action string `json:"action,omitempty"`

	// NewNode
	NodeID   uint32 `json:"id,omitempty"`
	ParentID int64  `json:"parent_id,omitempty"`

	// WalkResult
	ScoreVec map[string]float64 `json:"score_vec,omitempty"`
}

// TakeAction builds a take-action entry: bookkeeping of a rules mutation
// applied during selection or simulation, used only to restore the local
// gamestate after a walk.
func TakeAction(action string) Entry {
	return Entry{DCModule: dcModule, DCName: string(KindTakeAction), Kind: KindTakeAction, Action: action}
}

// NewNode builds a new-node entry, emitted once per node creation.
func NewNode(id uint32, parentID int64, action string) Entry {
	return Entry{
		DCModule: dcModule, DCName: string(KindNewNode), Kind: KindNewNode,
		NodeID: id, ParentID: parentID, Action: action,
	}
}

// WalkResult builds a walk-result entry, emitted once per walk after
// backup.
func WalkResult(score map[string]float64) Entry {
	return Entry{DCModule: dcModule, DCName: string(KindWalkResult), Kind: KindWalkResult, ScoreVec: score}
}

// Log is an ordered sequence of entries, as produced by one walk or one
// walk batch.
type Log []Entry

// Encode serializes a log to JSON (one array of entries).
func Encode(log Log) ([]byte, error) {
	b, err := json.Marshal(log)
	if err != nil {
		return nil, errors.Wrap(err, "walklog: encode")
	}
	return b, nil
}

// Decode parses a JSON-encoded log. Malformed entries are not tolerated
// here (the envelope itself must be well-formed); per-entry tolerance for
// malformed *content* happens in Apply, which logs and drops bad entries
// rather than poisoning the rest of the stream.
func Decode(b []byte) (Log, error) {
	var log Log
	if err := json.Unmarshal(b, &log); err != nil {
		return nil, errors.Wrap(err, "walklog: decode")
	}
	return log, nil
}
