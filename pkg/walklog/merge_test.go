package walklog

import (
	"testing"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/distmcts/distmcts/pkg/tree"
	"github.com/distmcts/distmcts/pkg/ucb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithRoot() *tree.Store {
	s := tree.NewStore()
	_ = s.InsertNode(&tree.Node{ID: tree.RootID, ParentID: tree.NoParent})
	return s
}

func TestApplyNewNodeInsertsNodeAndEdge(t *testing.T) {
	s := newStoreWithRoot()
	m := NewMerger()
	require.NoError(t, m.Apply(s, Log{NewNode(7, 0, "a")}))

	_, ok := s.Lookup(7)
	assert.True(t, ok)
	children, ok := s.Children(0)
	require.True(t, ok)
	require.Len(t, children, 1)
	assert.Equal(t, tree.NodeID(7), children[0].ChildID)
}

func TestApplyIsIdempotent(t *testing.T) {
	s := newStoreWithRoot()
	m := NewMerger()
	entries := Log{NewNode(7, 0, "a")}
	require.NoError(t, m.Apply(s, entries))
	require.NoError(t, m.Apply(s, entries))

	children, _ := s.Children(0)
	assert.Len(t, children, 1, "re-applying the same entry must not duplicate the edge")
}

func TestApplyDefersUnknownParentThenCatchesUp(t *testing.T) {
	s := newStoreWithRoot()
	m := NewMerger()

	// Child of a not-yet-known grandchild arrives before its parent.
	require.NoError(t, m.Apply(s, Log{NewNode(99, 7, "b")}))
	_, ok := s.Lookup(99)
	assert.False(t, ok, "entry with unknown parent must be deferred, not applied")

	// Now the parent arrives; the deferred entry should be retried and succeed.
	require.NoError(t, m.Apply(s, Log{NewNode(7, 0, "a")}))
	_, ok = s.Lookup(99)
	assert.True(t, ok, "deferred entry must be applied once its parent is known")
}

func TestApplyIgnoresWalkResultAndTakeAction(t *testing.T) {
	s := newStoreWithRoot()
	m := NewMerger()
	require.NoError(t, m.Apply(s, Log{
		TakeAction("x"),
		WalkResult(map[string]float64{"x": 1}),
	}))
	root, _ := s.Lookup(tree.RootID)
	assert.Equal(t, uint64(0), root.Visits, "remote walk-result must not mutate local visit counts")
}

func TestApplyCommutativeOrdering(t *testing.T) {
	s1 := newStoreWithRoot()
	s2 := newStoreWithRoot()

	l1 := Log{NewNode(1, 0, "a")}
	l2 := Log{NewNode(2, 0, "b")}

	m1 := NewMerger()
	require.NoError(t, m1.Apply(s1, l1))
	require.NoError(t, m1.Apply(s1, l2))

	m2 := NewMerger()
	require.NoError(t, m2.Apply(s2, l2))
	require.NoError(t, m2.Apply(s2, l1))

	c1, _ := s1.Children(0)
	c2, _ := s2.Children(0)
	ids1 := map[tree.NodeID]bool{c1[0].ChildID: true, c1[1].ChildID: true}
	ids2 := map[tree.NodeID]bool{c2[0].ChildID: true, c2[1].ChildID: true}
	assert.Equal(t, ids1, ids2)
}

func TestMergedNodeScoresUnderPreVisitWithoutPanicking(t *testing.T) {
	s := newStoreWithRoot()
	m := NewMerger()
	require.NoError(t, m.Apply(s, Log{NewNode(7, 0, "a")}))

	child, ok := s.Lookup(7)
	require.True(t, ok)
	child.Visits = 1
	child.Score = game.ScoreVector{"x": 1}
	parent, _ := s.Lookup(0)
	parent.Visits = 5

	scorer := ucb.NewScorer(ucb.PreVisit, ucb.DefaultExplorationConstant)
	assert.NotPanics(t, func() {
		scorer.Score(parent, child, "x", 1)
	}, "a node created by a peer's new-node entry carries no Heuristic seed and must degrade to basic UCB")
}
