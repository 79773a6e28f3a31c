package tree

import (
	"testing"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	s := NewStore()
	_ = s.InsertNode(&Node{ID: RootID, ParentID: NoParent, Score: game.ScoreVector{"x": 0}})
	return s
}

func TestInsertNodeIdempotent(t *testing.T) {
	s := newTestStore()
	n := &Node{ID: 42, ParentID: 0}
	require.NoError(t, s.InsertNode(n))
	require.NoError(t, s.InsertNode(n)) // same id, same parent: idempotent replay
	got, ok := s.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, int64(0), got.ParentID)
}

func TestInsertNodeCollisionDifferentParentFails(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.InsertNode(&Node{ID: 42, ParentID: 0}))
	err := s.InsertNode(&Node{ID: 42, ParentID: 1})
	require.Error(t, err)
}

func TestChildrenAbsentVsEmpty(t *testing.T) {
	s := newTestStore()
	_, ok := s.Children(RootID)
	assert.False(t, ok, "edges[root] should be absent before any expansion")

	s.EnsureExpanding(RootID)
	children, ok := s.Children(RootID)
	assert.True(t, ok)
	assert.Empty(t, children, "a terminal node has a present but empty edge list")
}

func TestAppendEdgeSkipsDuplicateChild(t *testing.T) {
	s := newTestStore()
	s.AppendEdge(RootID, 1, "a")
	s.AppendEdge(RootID, 2, "b")
	s.AppendEdge(RootID, 1, "a") // duplicate id from a remote merge replay
	children, _ := s.Children(RootID)
	require.Len(t, children, 2)
	assert.Equal(t, NodeID(1), children[0].ChildID)
	assert.Equal(t, NodeID(2), children[1].ChildID)
}

func TestEnsureExpandingToleratesPreexistingPartialEntry(t *testing.T) {
	s := newTestStore()
	// Simulate a remote merge having already appended one child before
	// this worker locally expands the same parent.
	s.AppendEdge(RootID, 7, "z")
	s.EnsureExpanding(RootID)
	children, ok := s.Children(RootID)
	require.True(t, ok)
	require.Len(t, children, 1)
	assert.Equal(t, NodeID(7), children[0].ChildID)
}
