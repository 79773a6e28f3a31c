// Package game defines the capability record that the MCTS core calls into
// for everything it does not know how to do itself: applying moves, testing
// for termination, scoring a finished game. Concrete game rules are treated
// as external collaborators; this package only describes the contract, the
// same way a Player/Module interface describes a capability without
// knowing about any particular game.
package game

// Player identifies one participant in a game's fixed, finite player set.
// The set is known to all workers ahead of time (it comes from the game
// adapter, not the wire protocol).
type Player string

// Environment is the sentinel mover for stochastic, non-player moves (e.g.
// a tile spawn in a game like 2048).
const Environment Player = "environment"

// Draw is the sentinel winner value IsOver returns for a drawn game.
const Draw Player = "draw"

// ScoreVector maps every player in the game's player set to a value in
// [0, 1] representing that player's share of a walk's outcome.
type ScoreVector map[Player]float64

// Gamestate and Action are opaque to the core. They are carried as `any`
// rather than Go generics because the worker and client farm must be able
// to construct an Adapter by a runtime game-type string; a generically-typed
// Adapter could not be looked up this way without reflection at every call
// site. Within a single Adapter implementation, callers are free to use
// concrete types internally and only box at the interface boundary.
type Gamestate = any
type Action = any

// Adapter is the capability record the core calls into for one game type:
// a v-table of function pointers, with no inheritance.
type Adapter interface {
	// InitGame returns a fresh starting gamestate.
	InitGame() Gamestate

	// Players returns the game's fixed, finite player set (never includes
	// Environment).
	Players() []Player

	// CurrentMover returns the player (or Environment) to move in gs.
	CurrentMover(gs Gamestate) Player

	// Clone returns a deep copy of gs sharing no mutable state with it.
	Clone(gs Gamestate) Gamestate

	// Equal reports structural equality of two gamestates.
	Equal(a, b Gamestate) bool

	// TakeActionMut applies a to gs and returns the resulting gamestate.
	// ok is false if a was not a legal action in gs (an invariant
	// violation when a came from AllActions/RandomAction).
	TakeActionMut(gs Gamestate, a Action) (next Gamestate, ok bool)

	// CanUndo reports whether UndoAction is implemented for this game,
	// gating whether the walk engine may run in undo mode.
	CanUndo() bool

	// UndoAction reverses the application of a to gs, returning the
	// gamestate as it was before a was taken. Only called when CanUndo
	// is true.
	UndoAction(gs Gamestate, a Action) Gamestate

	// AllActions enumerates every legal action in gs. Empty iff IsOver
	// reports the game over, or no legal moves remain for the mover.
	AllActions(gs Gamestate) []Action

	// RandomAction returns a uniformly-random legal action in gs, or
	// ok=false if none exist.
	RandomAction(gs Gamestate) (a Action, ok bool)

	// IsOver reports whether gs is terminal, and if so, the winner (or
	// Draw). The returned player is meaningless when over is false.
	IsOver(gs Gamestate) (winner Player, over bool)

	// FinalScore optionally computes a continuous score vector for a
	// terminal gamestate. If not implemented (ok=false), the walk engine
	// derives a vector from the IsOver winner instead.
	FinalScore(gs Gamestate) (sv ScoreVector, ok bool)

	// Heuristic optionally evaluates gs (before an action is applied) in
	// [0, 1], seeding the pre-visit/simple heuristic UCB variants.
	Heuristic(gs Gamestate) (h float64, ok bool)

	// RolloutPolicy optionally replaces random simulation with a direct
	// score vector estimate for the leaf gamestate gs.
	RolloutPolicy(gs Gamestate) (sv ScoreVector, ok bool)

	// EncodeAction/DecodeAction losslessly round-trip an action through a
	// short string, used for node-id derivation and the wire protocol.
	EncodeAction(a Action) string
	DecodeAction(s string) (Action, error)

	// EncodeGamestate/DecodeGamestate round-trip a gamestate through bytes
	// for the NewGamestate command.
	EncodeGamestate(gs Gamestate) ([]byte, error)
	DecodeGamestate(b []byte) (Gamestate, error)
}

// ZeroScoreVector returns a score vector with every player in players
// mapped to 0.
func ZeroScoreVector(players []Player) ScoreVector {
	sv := make(ScoreVector, len(players))
	for _, p := range players {
		sv[p] = 0
	}
	return sv
}

// ScoreVectorFromWinner derives a win/loss/draw score vector the way the
// rollout fallback does when a game has no FinalScore: the winner gets 1,
// a draw splits 0.5 to everyone, everyone else gets 0.
func ScoreVectorFromWinner(players []Player, winner Player) ScoreVector {
	sv := make(ScoreVector, len(players))
	for _, p := range players {
		switch {
		case winner == Draw:
			sv[p] = 0.5
		case p == winner:
			sv[p] = 1
		default:
			sv[p] = 0
		}
	}
	return sv
}
