package walklog

import (
	"github.com/distmcts/distmcts/pkg/game"
	"github.com/distmcts/distmcts/pkg/tree"
	"github.com/hashicorp/go-multierror"
	"k8s.io/klog/v2"
)

// Merger applies peer walk-log entries to a local tree.Store. It is not
// safe for concurrent use: the worker loop applies remote entries inline,
// on the same goroutine that owns the store.
//
// new-node entries whose parent is not yet known locally are deferred
// rather than dropped, and retried on every subsequent Apply call until
// their parent shows up.
type Merger struct {
	pending []Entry
}

// NewMerger returns an empty Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Apply merges entries into store, in order. walk-result entries are
// intentionally not applied to local visit/score counters: a peer's
// visit/score accumulation is not folded into this worker's own tallies,
// to avoid double-counting without a discount scheme. take-action entries
// are peer bookkeeping only and are never meaningful to a remote tree, so
// they are skipped. Decode-level and structural problems on individual
// entries are logged and dropped; they never abort the rest of the batch.
func (m *Merger) Apply(store *tree.Store, entries Log) error {
	var errs *multierror.Error

	candidates := append(m.pending, entries...)
	m.pending = m.pending[:0]

	for _, e := range candidates {
		switch e.Kind {
		case KindNewNode:
			applied, err := m.applyNewNode(store, e)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			if !applied {
				m.pending = append(m.pending, e)
			}
		case KindWalkResult, KindTakeAction:
			// Not applied remotely; see doc comment above.
		default:
			klog.V(2).Infof("walklog: dropping entry with unknown kind %q", e.Kind)
		}
	}

	// Retry deferred entries whose parent was applied later in this same
	// batch, until a pass applies none of them.
	for progressed := true; progressed; {
		progressed = false
		deferred := m.pending
		m.pending = nil
		for _, e := range deferred {
			applied, err := m.applyNewNode(store, e)
			if err != nil {
				errs = multierror.Append(errs, err)
			} else if !applied {
				m.pending = append(m.pending, e)
				continue
			}
			progressed = true
		}
	}

	if errs != nil {
		return errs.ErrorOrNil()
	}
	return nil
}

// applyNewNode inserts e's node and edge if e's parent is already known.
// It returns applied=false (not an error) when the parent is not yet
// present, so the caller can defer it.
func (m *Merger) applyNewNode(store *tree.Store, e Entry) (applied bool, err error) {
	if _, ok := store.Lookup(e.NodeID); ok {
		return true, nil // already applied, idempotent
	}

	if e.ParentID != tree.NoParent {
		if _, ok := store.Lookup(tree.NodeID(e.ParentID)); !ok {
			return false, nil // defer: parent not yet known
		}
	}

	store.EnsureExpanding(tree.NodeID(e.ParentID))
	// Score starts as an empty (non-nil) map: this worker never applies
	// remote walk-result counts (see the Apply doc comment), but the
	// node's own local backup path still needs a writable map once this
	// worker's search visits it.
	if err := store.InsertNode(&tree.Node{ID: e.NodeID, ParentID: e.ParentID, Score: game.ScoreVector{}}); err != nil {
		return false, err
	}
	store.AppendEdge(tree.NodeID(e.ParentID), e.NodeID, e.Action)
	return true, nil
}
