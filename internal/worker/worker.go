// Package worker implements the single-threaded cooperative engine-server
// loop: command intake from a broker, walk-batch execution, broadcast of
// this worker's walk log, consumption of peers' walk logs, and periodic
// publication of the current best action.
package worker

import (
	"context"
	"encoding/json"

	"github.com/distmcts/distmcts/internal/broker"
	"github.com/distmcts/distmcts/pkg/engine"
	"github.com/distmcts/distmcts/pkg/game"
	"github.com/distmcts/distmcts/pkg/ucb"
	"github.com/distmcts/distmcts/pkg/walklog"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultWalkBatch is N_WALK_BATCH: the number of walks run per loop
// iteration while a gamestate is active. Kept small so a worker never
// blocks for long inside a batch and a fresh NewGamestate command is
// picked up promptly.
const DefaultWalkBatch = 25

// ConfigOverride is the payload of a NewConfig command: any zero field is
// left at the worker's current setting.
type ConfigOverride struct {
	Variant          string   `json:"variant,omitempty"`
	ExplorationConst *float64 `json:"exploration_const,omitempty"`
	HeuristicEnabled *bool    `json:"heuristic_enabled,omitempty"`
	WalkBatch        *int     `json:"walk_batch,omitempty"`
}

type activeGame struct {
	gamestateID uint64
	adapter     game.Adapter
	eng         *engine.Engine
	merger      *walklog.Merger
	streamCh    <-chan broker.WalkLogEnvelope
	streamSub   broker.Subscription
}

// Worker owns exactly one engine at a time and drives the loop described
// in the package doc comment.
type Worker struct {
	ID        uint32
	Registry  *game.Registry
	Broker    broker.Broker
	WalkBatch int
	EngineCfg engine.Config

	current *activeGame
}

// New returns a Worker identified by id, looking game types up in
// registry and talking to br.
func New(id uint32, registry *game.Registry, br broker.Broker) *Worker {
	return &Worker{
		ID:        id,
		Registry:  registry,
		Broker:    br,
		WalkBatch: DefaultWalkBatch,
		EngineCfg: engine.DefaultConfig(),
	}
}

// Run drives the loop until ctx is cancelled. It never returns an error
// for recoverable per-gamestate failures (those are logged and the
// current game is dropped); it returns non-nil only for broker
// subscription setup failures.
func (w *Worker) Run(ctx context.Context) error {
	cmdCh, cmdSub, err := w.Broker.SubscribeCommands()
	if err != nil {
		return errors.Wrap(err, "worker: subscribe commands")
	}
	defer cmdSub.Unsubscribe()

	for {
		if ctx.Err() != nil {
			w.stopCurrent()
			return nil
		}

		if w.current == nil {
			select {
			case <-ctx.Done():
				return nil
			case cmd := <-cmdCh:
				w.dispatch(cmd)
			}
			continue
		}

		select {
		case cmd := <-cmdCh:
			w.dispatch(cmd)
		default:
		}

		if w.current != nil {
			w.stepBatch()
		}
	}
}

func (w *Worker) dispatch(cmd broker.Command) {
	switch cmd.Kind {
	case broker.CommandNewGamestate:
		w.startGamestate(cmd)
	case broker.CommandNewConfig:
		w.applyConfigOverride(cmd.ConfigJSON)
	case broker.CommandStop:
		w.stopCurrent()
	default:
		klog.V(1).Infof("worker %d: ignoring unknown command kind %q", w.ID, cmd.Kind)
	}
}

func (w *Worker) startGamestate(cmd broker.Command) {
	w.stopCurrent()

	adapter, err := w.Registry.New(cmd.GameType)
	if err != nil {
		klog.Errorf("worker %d: new-gamestate %d: %v", w.ID, cmd.GamestateID, err)
		return
	}
	gs, err := adapter.DecodeGamestate(cmd.EncodedState)
	if err != nil {
		klog.Errorf("worker %d: new-gamestate %d: decode state: %v", w.ID, cmd.GamestateID, err)
		return
	}

	streamCh, streamSub, err := w.Broker.SubscribeWalkLog(cmd.GamestateID)
	if err != nil {
		klog.Errorf("worker %d: new-gamestate %d: subscribe stream: %v", w.ID, cmd.GamestateID, err)
		return
	}

	w.current = &activeGame{
		gamestateID: cmd.GamestateID,
		adapter:     adapter,
		eng:         engine.New(adapter, gs, w.EngineCfg),
		merger:      walklog.NewMerger(),
		streamCh:    streamCh,
		streamSub:   streamSub,
	}
	klog.V(0).Infof("worker %d: new gamestate %d (%s)", w.ID, cmd.GamestateID, cmd.GameType)
}

func (w *Worker) applyConfigOverride(payload []byte) {
	if len(payload) == 0 {
		return
	}
	var override ConfigOverride
	if err := json.Unmarshal(payload, &override); err != nil {
		klog.Errorf("worker %d: new-config: %v", w.ID, err)
		return
	}
	if override.ExplorationConst != nil {
		w.EngineCfg.ExplorationConst = *override.ExplorationConst
	}
	if override.HeuristicEnabled != nil {
		w.EngineCfg.HeuristicEnabled = *override.HeuristicEnabled
	}
	if override.WalkBatch != nil {
		w.WalkBatch = *override.WalkBatch
	}
	switch override.Variant {
	case "pre-visit":
		w.EngineCfg.Variant = ucb.PreVisit
	case "simple":
		w.EngineCfg.Variant = ucb.Simple
	case "basic":
		w.EngineCfg.Variant = ucb.Basic
	}
}

func (w *Worker) stopCurrent() {
	if w.current == nil {
		return
	}
	w.current.streamSub.Unsubscribe()
	w.current = nil
}

// stepBatch runs one walk batch, broadcasts it, drains peer entries, and
// publishes the current best action. A walk-batch failure drops the
// current gamestate: the search is aborted and the client is expected to
// reissue. Broker publish failures are logged and the gamestate stays
// active.
func (w *Worker) stepBatch() {
	g := w.current

	log, err := g.eng.RunWalks(w.WalkBatch)
	if err != nil {
		klog.Errorf("worker %d: gamestate %d: walk batch: %v", w.ID, g.gamestateID, err)
		w.stopCurrent()
		return
	}

	if len(log) > 0 {
		if err := w.Broker.PublishWalkLog(broker.WalkLogEnvelope{
			GamestateID:    g.gamestateID,
			EngineServerID: w.ID,
			Entries:        log,
		}); err != nil {
			klog.Errorf("worker %d: gamestate %d: publish walk log: %v", w.ID, g.gamestateID, err)
		}
	}

	w.drainPeerEntries(g)

	if action, ok := g.eng.BestAction(); ok {
		if err := w.Broker.PublishAction(broker.ActionMessage{
			GamestateID:    g.gamestateID,
			BestMove:       g.adapter.EncodeAction(action),
			EngineServerID: w.ID,
		}); err != nil {
			klog.Errorf("worker %d: gamestate %d: publish action: %v", w.ID, g.gamestateID, err)
		}
	}
}

func (w *Worker) drainPeerEntries(g *activeGame) {
	for {
		select {
		case env := <-g.streamCh:
			if env.EngineServerID == w.ID {
				continue // our own echo
			}
			if err := g.eng.ApplyRemoteLog(g.merger, env.Entries); err != nil {
				klog.V(1).Infof("worker %d: gamestate %d: merge from peer %d: %v", w.ID, g.gamestateID, env.EngineServerID, err)
			}
		default:
			return
		}
	}
}
