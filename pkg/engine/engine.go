// Package engine provides the facade that owns a root gamestate and its
// search tree, runs walk batches against it, and selects a final action
// from the accumulated statistics.
package engine

import (
	"math/rand"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/distmcts/distmcts/pkg/tree"
	"github.com/distmcts/distmcts/pkg/ucb"
	"github.com/distmcts/distmcts/pkg/walk"
	"github.com/distmcts/distmcts/pkg/walklog"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Config configures a new Engine.
type Config struct {
	Variant          ucb.Variant
	ExplorationConst float64
	RestoreMode      walk.RestoreMode
	HeuristicEnabled bool
	Rand             *rand.Rand
}

// DefaultConfig returns the package defaults: basic UCB, copy-mode
// restoration, no heuristic.
func DefaultConfig() Config {
	return Config{
		Variant:          ucb.Basic,
		ExplorationConst: ucb.DefaultExplorationConstant,
		RestoreMode:      walk.Copy,
	}
}

// Engine is rooted at one gamestate and accumulates statistics into one
// tree.Store across repeated walks. It is not safe for concurrent use.
type Engine struct {
	adapter game.Adapter
	store   *tree.Store
	walker  *walk.Walker
	rootGS  game.Gamestate
	players []game.Player
}

// New builds an Engine rooted at rootGS, using CanUndo to silently fall
// back to copy-mode restoration when the adapter does not support undo
// and the caller asked for it.
func New(adapter game.Adapter, rootGS game.Gamestate, cfg Config) *Engine {
	if cfg.RestoreMode == walk.Undo && !adapter.CanUndo() {
		klog.V(1).Infof("engine: adapter does not implement undo, falling back to copy-mode restoration")
		cfg.RestoreMode = walk.Copy
	}

	players := adapter.Players()
	store := tree.NewStore()
	if err := store.InsertNode(&tree.Node{
		ID:       tree.RootID,
		ParentID: tree.NoParent,
		Score:    game.ZeroScoreVector(players),
	}); err != nil {
		panic(errors.Wrap(err, "engine: inserting root node"))
	}

	scorer := ucb.NewScorer(cfg.Variant, cfg.ExplorationConst)
	walker := walk.NewWalker(store, adapter, rootGS, walk.Config{
		Scorer:           scorer,
		RestoreMode:      cfg.RestoreMode,
		HeuristicEnabled: cfg.HeuristicEnabled,
		Rand:             cfg.Rand,
	})

	return &Engine{
		adapter: adapter,
		store:   store,
		walker:  walker,
		rootGS:  adapter.Clone(rootGS),
		players: players,
	}
}

// Store exposes the underlying tree store, primarily so a worker loop can
// apply remote walk logs to it between batches.
func (e *Engine) Store() *tree.Store { return e.store }

// RunWalks executes n walks and returns the concatenation of their walk
// logs, in order.
func (e *Engine) RunWalks(n int) (walklog.Log, error) {
	var batch walklog.Log
	for i := 0; i < n; i++ {
		log, err := e.walker.Walk()
		if err != nil {
			return batch, errors.Wrapf(err, "engine: walk %d/%d", i+1, n)
		}
		batch = append(batch, log...)
	}
	return batch, nil
}

// RootVisits returns the root node's visit count.
func (e *Engine) RootVisits() uint64 {
	return e.store.MustLookup(tree.RootID).Visits
}

// BestAction returns the action of the root's child maximizing
// child.Score[rootMover]/child.Visits among children with Visits > 0,
// ties broken in insertion order. ok is false if no root child has been
// visited yet.
func (e *Engine) BestAction() (action game.Action, ok bool) {
	rootMover := e.adapter.CurrentMover(e.rootGS)
	edges, has := e.store.Children(tree.RootID)
	if !has {
		return nil, false
	}

	best := -1
	bestScore := -1.0
	for i, edge := range edges {
		child := e.store.MustLookup(edge.ChildID)
		if child.Visits == 0 {
			continue
		}
		score := child.Score[rootMover] / float64(child.Visits)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}

	action, err := e.adapter.DecodeAction(edges[best].Action)
	if err != nil {
		panic(errors.Wrap(err, "engine: decoding a previously-encoded action"))
	}
	return action, true
}

// ApplyRemoteLog merges a peer's walk log into this engine's tree.
func (e *Engine) ApplyRemoteLog(merger *walklog.Merger, log walklog.Log) error {
	return merger.Apply(e.store, log)
}
