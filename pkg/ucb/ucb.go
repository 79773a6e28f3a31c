// Package ucb scores a parent node's children under one of three UCB
// variants, grounded in a UCB1.Select scoring loop (wins/visits +
// exploration term) generalized to two heuristic-seeded variants.
package ucb

import (
	"math"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/distmcts/distmcts/pkg/tree"
)

// Variant selects which of the three formulas Score applies.
type Variant int

const (
	// Basic is plain UCB1: exploitation plus a visit-count exploration term.
	Basic Variant = iota
	// PreVisit seeds exploitation and exploration with a (k, n) heuristic
	// pair before any real visits occur.
	PreVisit
	// Simple is Basic plus an additive heuristic bias.
	Simple
)

// DefaultExplorationConstant is the conventional C = 1/√2.
var DefaultExplorationConstant = 1.0 / math.Sqrt2

// Scorer scores children of a parent node under a fixed Variant and
// exploration constant C.
type Scorer struct {
	Variant Variant
	C       float64
}

// NewScorer returns a Scorer for variant with exploration constant c.
func NewScorer(variant Variant, c float64) *Scorer {
	return &Scorer{Variant: variant, C: c}
}

// Score returns child's UCB value from perspective's point of view, given
// its parent and the number of siblings child has. Under Basic and Simple,
// and under PreVisit for a child without a valid seed, unvisited children
// score +Inf so they are chosen before any visited child; PreVisit gives a
// seeded unvisited child a finite score.
func (s *Scorer) Score(parent, child *tree.Node, perspective game.Player, siblings int) float64 {
	switch s.Variant {
	case PreVisit:
		return s.scorePreVisit(parent, child, perspective, siblings)
	case Simple:
		return s.scoreSimple(parent, child, perspective)
	default:
		return s.scoreBasic(parent, child, perspective)
	}
}

func (s *Scorer) scoreBasic(parent, child *tree.Node, perspective game.Player) float64 {
	if child.Visits == 0 {
		return math.Inf(1)
	}
	exploit := child.Score[perspective] / float64(child.Visits)
	explore := s.C * math.Sqrt(math.Log(float64(parent.Visits))/float64(child.Visits))
	return exploit + explore
}

func (s *Scorer) scorePreVisit(parent, child *tree.Node, perspective game.Player, siblings int) float64 {
	seed := child.Heuristic
	if seed == nil || seed.N <= 0 || seed.K < 0 || seed.K > seed.N {
		return s.scoreBasic(parent, child, perspective)
	}
	k, n := seed.K, seed.N
	exploit := (child.Score[perspective] + k) / (float64(child.Visits) + n)
	explore := s.C * math.Sqrt(math.Log(float64(parent.Visits)+n*float64(siblings))/(float64(child.Visits)+n))
	return exploit + explore
}

func (s *Scorer) scoreSimple(parent, child *tree.Node, perspective game.Player) float64 {
	basic := s.scoreBasic(parent, child, perspective)
	if child.Heuristic == nil || child.Heuristic.N == 0 {
		return basic
	}
	bias := child.Heuristic.K / child.Heuristic.N
	return basic + bias
}

// SelectBest returns the index into edges (parallel to children) of the
// child maximizing Score, ties broken in insertion order.
func SelectBest(scorer *Scorer, parent *tree.Node, children []*tree.Node, perspective game.Player) int {
	best := -1
	bestScore := math.Inf(-1)
	siblings := len(children) - 1
	for i, c := range children {
		score := scorer.Score(parent, c, perspective, siblings)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}
