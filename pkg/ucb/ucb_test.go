package ucb

import (
	"math"
	"testing"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/distmcts/distmcts/pkg/tree"
	"github.com/stretchr/testify/assert"
)

const perspective = game.Player("x")

func TestBasicUnvisitedChildIsInfinite(t *testing.T) {
	s := NewScorer(Basic, DefaultExplorationConstant)
	parent := &tree.Node{Visits: 10}
	unvisited := &tree.Node{Visits: 0, Score: game.ScoreVector{perspective: 0}}
	assert.True(t, math.IsInf(s.Score(parent, unvisited, perspective, 1), 1))
}

func TestBasicPrefersUnvisitedOverVisited(t *testing.T) {
	s := NewScorer(Basic, DefaultExplorationConstant)
	parent := &tree.Node{Visits: 100}
	visited := &tree.Node{Visits: 50, Score: game.ScoreVector{perspective: 40}}
	unvisited := &tree.Node{Visits: 0, Score: game.ScoreVector{perspective: 0}}

	best := SelectBest(s, parent, []*tree.Node{visited, unvisited}, perspective)
	assert.Equal(t, 1, best, "unvisited child must be selected before any visited child")
}

func TestSelectBestTieBreaksByInsertionOrder(t *testing.T) {
	s := NewScorer(Basic, DefaultExplorationConstant)
	parent := &tree.Node{Visits: 10}
	a := &tree.Node{Visits: 5, Score: game.ScoreVector{perspective: 2.5}}
	b := &tree.Node{Visits: 5, Score: game.ScoreVector{perspective: 2.5}}
	best := SelectBest(s, parent, []*tree.Node{a, b}, perspective)
	assert.Equal(t, 0, best)
}

func TestPreVisitFallsBackToBasicWithoutSeed(t *testing.T) {
	s := NewScorer(PreVisit, DefaultExplorationConstant)
	parent := &tree.Node{Visits: 10}
	child := &tree.Node{Visits: 3, Score: game.ScoreVector{perspective: 1.5}}
	got := s.Score(parent, child, perspective, 2)
	want := s.scoreBasic(parent, child, perspective)
	assert.Equal(t, want, got, "a node with no heuristic seed (e.g. one merged in from a peer's new-node entry) must degrade to basic UCB rather than panic")
}

func TestPreVisitScoreFormula(t *testing.T) {
	s := NewScorer(PreVisit, 1.0)
	parent := &tree.Node{Visits: 20}
	child := &tree.Node{
		Visits:    3,
		Score:     game.ScoreVector{perspective: 1.5},
		Heuristic: &tree.HeuristicSeed{K: 2, N: 5},
	}
	got := s.Score(parent, child, perspective, 2)
	wantExploit := (1.5 + 2) / (3 + 5)
	wantExplore := 1.0 * math.Sqrt(math.Log(20+5*2)/(3+5))
	assert.InDelta(t, wantExploit+wantExplore, got, 1e-9)
}

func TestSimpleAddsHeuristicBias(t *testing.T) {
	s := NewScorer(Simple, 0)
	parent := &tree.Node{Visits: 10}
	child := &tree.Node{
		Visits:    2,
		Score:     game.ScoreVector{perspective: 1},
		Heuristic: &tree.HeuristicSeed{K: 3, N: 5},
	}
	got := s.Score(parent, child, perspective, 0)
	want := 1.0/2.0 + 3.0/5.0
	assert.InDelta(t, want, got, 1e-9)
}
