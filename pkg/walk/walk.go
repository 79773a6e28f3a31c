// Package walk implements one selection→expansion→rollout→backup walk,
// grounded in a Search/Selection loop shape but reworked for a
// single-threaded-per-worker model: no virtual loss, no atomics, one
// walker owns one tree.Store exclusively and emits a walklog.Log per call
// instead of mutating shared counters under contention.
package walk

import (
	"crypto/md5"
	"encoding/binary"
	"math/rand"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/distmcts/distmcts/pkg/tree"
	"github.com/distmcts/distmcts/pkg/ucb"
	"github.com/distmcts/distmcts/pkg/walklog"
	"github.com/pkg/errors"
)

// MaxSteps bounds selection and simulation loops. Exceeding it is a fatal
// invariant failure: it means the adapter's rules are looping, not that
// the search ran long.
const MaxSteps = 10_000

// RestoreMode selects how the working gamestate is returned to equal the
// root after each walk.
type RestoreMode int

const (
	// Copy discards the working gamestate and deep-copies the root again.
	Copy RestoreMode = iota
	// Undo replays take-action entries in reverse via the adapter's
	// UndoAction. Requires Adapter.CanUndo().
	Undo
)

// Config configures a Walker.
type Config struct {
	Scorer           *ucb.Scorer
	RestoreMode      RestoreMode
	HeuristicEnabled bool
	Rand             *rand.Rand
}

// Walker executes walks against a shared tree.Store for one fixed root
// gamestate.
type Walker struct {
	store   *tree.Store
	adapter game.Adapter
	players []game.Player
	cfg     Config

	rootGS  game.Gamestate
	working game.Gamestate
}

// NewWalker returns a Walker rooted at rootGS. rootGS is cloned internally;
// the caller's copy is never mutated.
func NewWalker(store *tree.Store, adapter game.Adapter, rootGS game.Gamestate, cfg Config) *Walker {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	if cfg.RestoreMode == Undo && !adapter.CanUndo() {
		panic("walk: undo mode requested but adapter does not implement UndoAction")
	}
	return &Walker{
		store:   store,
		adapter: adapter,
		players: adapter.Players(),
		cfg:     cfg,
		rootGS:  adapter.Clone(rootGS),
		working: adapter.Clone(rootGS),
	}
}

// Working returns the walker's current working gamestate, which always
// equals the root gamestate between calls to Walk.
func (w *Walker) Working() game.Gamestate {
	return w.working
}

// Walk runs one full selection→expansion→rollout→backup cycle and returns
// its walk log.
func (w *Walker) Walk() (walklog.Log, error) {
	var log walklog.Log

	leaf, err := w.selectAndExpand(&log)
	if err != nil {
		return nil, err
	}

	sv, err := w.rollout(&log)
	if err != nil {
		return nil, err
	}

	if err := w.backup(leaf, sv); err != nil {
		return nil, err
	}

	if err := w.restore(log); err != nil {
		return nil, err
	}

	return log, nil
}

// selectAndExpand implements the selection phase, including the inline
// expansion call it makes when it reaches an unexpanded node.
func (w *Walker) selectAndExpand(log *walklog.Log) (tree.NodeID, error) {
	node := tree.NodeID(tree.RootID)

	for steps := 0; ; steps++ {
		if steps > MaxSteps {
			panic("walk: selection exceeded MAX_STEPS")
		}

		if !w.store.HasEdges(node) {
			newChildren, err := w.expand(node, log)
			if err != nil {
				return 0, err
			}
			if len(newChildren) == 0 {
				return node, nil // terminal or no legal actions: leaf is node itself
			}
			chosen := newChildren[w.cfg.Rand.Intn(len(newChildren))]
			if err := w.descendTo(node, chosen, log); err != nil {
				return 0, err
			}
			return chosen, nil
		}

		edges, _ := w.store.Children(node)
		if len(edges) == 0 {
			return node, nil // known terminal, no children
		}

		next, err := w.chooseChild(node, edges)
		if err != nil {
			return 0, err
		}
		if err := w.descendTo(node, next, log); err != nil {
			return 0, err
		}
		node = next
	}
}

// chooseChild picks the next child to descend into: uniform random at an
// environment node, else the UCB-maximizing child from the current
// mover's perspective.
func (w *Walker) chooseChild(parent tree.NodeID, edges []tree.Edge) (tree.NodeID, error) {
	mover := w.adapter.CurrentMover(w.working)
	if mover == game.Environment {
		return edges[w.cfg.Rand.Intn(len(edges))].ChildID, nil
	}

	parentNode := w.store.MustLookup(parent)
	children := make([]*tree.Node, len(edges))
	for i, e := range edges {
		children[i] = w.store.MustLookup(e.ChildID)
	}
	idx := ucb.SelectBest(w.cfg.Scorer, parentNode, children, mover)
	if idx < 0 {
		return 0, errors.New("walk: UCB selection found no candidate child")
	}
	return edges[idx].ChildID, nil
}

// descendTo applies the action labeling the edge parent→child to the
// working gamestate and logs it as a take-action entry.
func (w *Walker) descendTo(parent, child tree.NodeID, log *walklog.Log) error {
	edges, _ := w.store.Children(parent)
	var encoded string
	found := false
	for _, e := range edges {
		if e.ChildID == child {
			encoded = e.Action
			found = true
			break
		}
	}
	if !found {
		return errors.Errorf("walk: child %d not found among parent %d's edges", child, parent)
	}
	return w.applyEncodedAction(encoded, log)
}

func (w *Walker) applyEncodedAction(encoded string, log *walklog.Log) error {
	action, err := w.adapter.DecodeAction(encoded)
	if err != nil {
		return errors.Wrap(err, "walk: decode action")
	}
	next, ok := w.adapter.TakeActionMut(w.working, action)
	if !ok {
		panic("walk: TakeActionMut rejected an action that came from AllActions/an existing edge")
	}
	w.working = next
	*log = append(*log, walklog.TakeAction(encoded))
	return nil
}

// expand implements the expansion phase. It tolerates a pre-existing
// (possibly remote-populated) edges[parent] entry, appending only
// children not already present.
func (w *Walker) expand(parent tree.NodeID, log *walklog.Log) ([]tree.NodeID, error) {
	w.store.EnsureExpanding(parent)

	if _, over := w.adapter.IsOver(w.working); over {
		return nil, nil
	}

	actions := w.adapter.AllActions(w.working)
	existing, _ := w.store.Children(parent)
	existingIDs := make(map[tree.NodeID]bool, len(existing))
	for _, e := range existing {
		existingIDs[e.ChildID] = true
	}

	var created []tree.NodeID
	for _, a := range actions {
		encoded := w.adapter.EncodeAction(a)
		childID := contentAddress(parent, encoded)
		if existingIDs[childID] {
			continue
		}

		var seed *tree.HeuristicSeed
		if w.cfg.HeuristicEnabled {
			if h, ok := w.adapter.Heuristic(w.working); ok {
				seed = &tree.HeuristicSeed{K: 5 * h, N: 5}
			}
		}

		node := &tree.Node{
			ID:        childID,
			ParentID:  int64(parent),
			Score:     game.ZeroScoreVector(w.players),
			Heuristic: seed,
		}
		if err := w.store.InsertNode(node); err != nil {
			return nil, err
		}
		w.store.AppendEdge(parent, childID, encoded)
		*log = append(*log, walklog.NewNode(childID, int64(parent), encoded))
		created = append(created, childID)
	}

	return created, nil
}

// contentAddress derives a child id from its parent id and encoded action:
// md5(parent_id_bytes ‖ action_bytes) truncated to 4 bytes.
func contentAddress(parent tree.NodeID, encodedAction string) tree.NodeID {
	var parentBytes [4]byte
	binary.BigEndian.PutUint32(parentBytes[:], parent)
	sum := md5.Sum(append(parentBytes[:], []byte(encodedAction)...))
	return binary.BigEndian.Uint32(sum[:4])
}

// rollout runs a simulation from the working gamestate to a terminal
// state, or defers to the adapter's own rollout policy when it has one.
func (w *Walker) rollout(log *walklog.Log) (game.ScoreVector, error) {
	if sv, ok := w.adapter.RolloutPolicy(w.working); ok {
		*log = append(*log, walklog.WalkResult(toStringMap(sv)))
		return sv, nil
	}

	for steps := 0; ; steps++ {
		if _, over := w.adapter.IsOver(w.working); over {
			break
		}
		if steps > MaxSteps {
			panic("walk: simulation exceeded MAX_STEPS")
		}
		a, ok := w.adapter.RandomAction(w.working)
		if !ok {
			break
		}
		if err := w.applyEncodedAction(w.adapter.EncodeAction(a), log); err != nil {
			return nil, err
		}
	}

	sv, ok := w.adapter.FinalScore(w.working)
	if !ok {
		winner, _ := w.adapter.IsOver(w.working)
		sv = game.ScoreVectorFromWinner(w.players, winner)
	}
	*log = append(*log, walklog.WalkResult(toStringMap(sv)))
	return sv, nil
}

func toStringMap(sv game.ScoreVector) map[string]float64 {
	m := make(map[string]float64, len(sv))
	for p, v := range sv {
		m[string(p)] = v
	}
	return m
}

// backup walks from leaf to root, incrementing visits and adding the
// score delta component-wise.
func (w *Walker) backup(leaf tree.NodeID, delta game.ScoreVector) error {
	for _, p := range w.players {
		v := delta[p]
		if v < 0 || v > 1 {
			panic("walk: score-vector component out of [0, 1]")
		}
	}
	if len(delta) != len(w.players) {
		panic("walk: score-vector keys do not match the player set")
	}

	id := leaf
	for {
		node := w.store.MustLookup(id)
		node.Visits++
		for p, v := range delta {
			node.Score[p] += v
		}
		if node.ParentID == tree.NoParent {
			return nil
		}
		id = tree.NodeID(node.ParentID)
	}
}

// restore returns the working gamestate to equal the root gamestate,
// either by replaying take-action entries in reverse or by re-cloning.
func (w *Walker) restore(log walklog.Log) error {
	switch w.cfg.RestoreMode {
	case Undo:
		for i := len(log) - 1; i >= 0; i-- {
			e := log[i]
			if e.Kind != walklog.KindTakeAction {
				continue
			}
			action, err := w.adapter.DecodeAction(e.Action)
			if err != nil {
				return errors.Wrap(err, "walk: decode action during undo")
			}
			w.working = w.adapter.UndoAction(w.working, action)
		}
	default:
		w.working = w.adapter.Clone(w.rootGS)
	}

	if !w.adapter.Equal(w.working, w.rootGS) {
		panic("walk: working gamestate did not restore to equal the root gamestate")
	}
	return nil
}
