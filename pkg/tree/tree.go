// Package tree implements the MCTS arena: an id-indexed node map plus a
// parent-to-children adjacency list. Nodes are addressed by id rather
// than by pointer or slice position so that two workers expanding the
// same parent independently produce identical child ids, which is what
// makes cross-worker walk-log merge possible without a coordination
// protocol.
//
// A Store is owned by exactly one walk loop at a time: it holds no locks
// and is not safe for concurrent use.
package tree

import (
	"fmt"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/pkg/errors"
)

// NodeID is the node's stable, content-addressed 32-bit id.
type NodeID = uint32

// RootID is the fixed id of the root node.
const RootID NodeID = 0

// NoParent is the parent-id sentinel used by the root node.
const NoParent int64 = -1

// HeuristicSeed carries the (numerator, denominator) pair that seeds the
// pre-visit heuristic UCB variant for a node.
type HeuristicSeed struct {
	K float64
	N float64
}

// Node is one entry in the arena.
type Node struct {
	ID        NodeID
	ParentID  int64
	Visits    uint64
	Score     game.ScoreVector
	Heuristic *HeuristicSeed
}

// Edge is one (child, action) pair in a parent's adjacency list. Action is
// the content-addressing-relevant encoded action string, not the decoded
// game.Action, so the tree package has no dependency on any particular
// game adapter's action type.
type Edge struct {
	ChildID NodeID
	Action  string
}

// Store is the arena of nodes plus the parent→children adjacency map.
type Store struct {
	nodes map[NodeID]*Node
	edges map[NodeID][]Edge
}

// NewStore returns an empty store. Callers insert the root node themselves
// (the engine facade does this, since only it knows the player set needed
// to build the root's zero score vector).
func NewStore() *Store {
	return &Store{
		nodes: make(map[NodeID]*Node),
		edges: make(map[NodeID][]Edge),
	}
}

// InsertNode adds a new node to the arena. Re-inserting an id that already
// exists is only tolerated when it is an idempotent replay (same parent
// too); a different parent on the same id is a hash collision and must
// fail the walk rather than be silently papered over.
func (s *Store) InsertNode(n *Node) error {
	if existing, ok := s.nodes[n.ID]; ok {
		if existing.ParentID != n.ParentID {
			return errors.Errorf(
				"tree: id collision on node %d: existing parent %d, new parent %d",
				n.ID, existing.ParentID, n.ParentID,
			)
		}
		return nil // idempotent replay
	}
	s.nodes[n.ID] = n
	return nil
}

// Lookup returns the node for id, if present.
func (s *Store) Lookup(id NodeID) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// MustLookup panics if id is absent; used at call sites where absence is
// an invariant violation, not a recoverable condition.
func (s *Store) MustLookup(id NodeID) *Node {
	n, ok := s.nodes[id]
	if !ok {
		panic(fmt.Sprintf("tree: node %d not found", id))
	}
	return n
}

// HasEdges reports whether parent has an edges[] entry at all (as opposed
// to it being absent, meaning "never selected for expansion"). An entry
// present but empty means the node is terminal.
func (s *Store) HasEdges(parent NodeID) bool {
	_, ok := s.edges[parent]
	return ok
}

// Children returns parent's adjacency list and whether it has one.
func (s *Store) Children(parent NodeID) ([]Edge, bool) {
	children, ok := s.edges[parent]
	return children, ok
}

// EnsureExpanding marks parent as "being expanded" by creating its edges[]
// entry if absent, without adding any children yet. Idempotent: calling it
// on an already-present entry (including one populated by a remote merge)
// does nothing.
func (s *Store) EnsureExpanding(parent NodeID) {
	if _, ok := s.edges[parent]; !ok {
		s.edges[parent] = []Edge{}
	}
}

// AppendEdge appends (child, action) to parent's adjacency list, creating
// the list if it does not exist yet. Duplicate child ids are skipped.
func (s *Store) AppendEdge(parent NodeID, child NodeID, action string) {
	existing := s.edges[parent]
	for _, e := range existing {
		if e.ChildID == child {
			return
		}
	}
	s.edges[parent] = append(existing, Edge{ChildID: child, Action: action})
}

// Size returns the number of nodes in the arena.
func (s *Store) Size() int {
	return len(s.nodes)
}
