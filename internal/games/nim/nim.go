// Package nim implements a small misère-free Nim variant that alternates
// between two players and a stochastic Environment mover, the way a tile
// spawn alternates with a player's move in a game like 2048. It exists to
// exercise the walk engine's environment-mover and rollout-fallback code
// paths in tests; it is not a competitive implementation of any real game
// of Nim.
package nim

import (
	"math/rand"
	"strconv"
	"time"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/pkg/errors"
)

const (
	PlayerA game.Player = "a"
	PlayerB game.Player = "b"
)

const maxTake = 3

// State is a single pile of tokens, whose turn it is, and (only meaningful
// while turn == Environment) which player the environment hands off to
// next. Turn order is PlayerA -> Environment -> PlayerB -> Environment ->
// PlayerA -> ...
type State struct {
	Pile int
	turn game.Player
	next game.Player
}

// Move is the number of tokens a player removes (1..maxTake), or the
// number of tokens the Environment adds back (0 or 1).
type Move int

// Registry is this package's registration point, registered under "nim".
var Registry = game.NewRegistry()

func init() {
	Registry.Register("nim", New)
}

// New returns a fresh Nim adapter starting from a 12-token pile.
func New() game.Adapter {
	return Adapter{StartPile: 12, rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewWithRand returns a Nim adapter with an explicit starting pile and
// random source, for reproducible tests.
func NewWithRand(startPile int, r *rand.Rand) game.Adapter {
	return Adapter{StartPile: startPile, rand: r}
}

// Adapter implements game.Adapter for the Nim-with-environment variant.
type Adapter struct {
	StartPile int
	rand      *rand.Rand
}

func (a Adapter) InitGame() game.Gamestate {
	return State{Pile: a.StartPile, turn: PlayerA}
}

func (Adapter) Players() []game.Player { return []game.Player{PlayerA, PlayerB} }

func (Adapter) CurrentMover(gs game.Gamestate) game.Player { return gs.(State).turn }

func (Adapter) Clone(gs game.Gamestate) game.Gamestate { return gs.(State) }

func (Adapter) Equal(a, b game.Gamestate) bool { return a.(State) == b.(State) }

func (Adapter) TakeActionMut(gs game.Gamestate, act game.Action) (game.Gamestate, bool) {
	s := gs.(State)
	mv := int(act.(Move))

	switch s.turn {
	case PlayerA, PlayerB:
		if mv < 1 || mv > maxTake || mv > s.Pile {
			return nil, false
		}
		s.Pile -= mv
		s.next = other(s.turn)
		s.turn = game.Environment
		return s, true
	case game.Environment:
		if mv != 0 && mv != 1 {
			return nil, false
		}
		s.Pile += mv
		s.turn = s.next
		return s, true
	}
	return nil, false
}

func other(p game.Player) game.Player {
	if p == PlayerA {
		return PlayerB
	}
	return PlayerA
}

func (Adapter) CanUndo() bool { return false }

func (Adapter) UndoAction(game.Gamestate, game.Action) game.Gamestate {
	panic("nim: UndoAction not implemented")
}

func (Adapter) AllActions(gs game.Gamestate) []game.Action {
	s := gs.(State)
	if _, over := isOver(s); over {
		return nil
	}
	if s.turn == game.Environment {
		return []game.Action{Move(0), Move(1)}
	}
	actions := make([]game.Action, 0, maxTake)
	for n := 1; n <= maxTake && n <= s.Pile; n++ {
		actions = append(actions, Move(n))
	}
	return actions
}

func (a Adapter) RandomAction(gs game.Gamestate) (game.Action, bool) {
	actions := a.AllActions(gs)
	if len(actions) == 0 {
		return nil, false
	}
	return actions[a.rand.Intn(len(actions))], true
}

func isOver(s State) (game.Player, bool) {
	if s.Pile > 0 {
		return "", false
	}
	if s.turn == game.Environment {
		return "", false // environment still has a move to make (add 0 or 1)
	}
	// s.turn is the player to move with an empty pile: they cannot move,
	// so the other player (who took the last tokens) wins.
	if s.turn == PlayerA {
		return PlayerB, true
	}
	return PlayerA, true
}

func (Adapter) IsOver(gs game.Gamestate) (game.Player, bool) {
	return isOver(gs.(State))
}

func (Adapter) FinalScore(game.Gamestate) (game.ScoreVector, bool) { return nil, false }

func (Adapter) Heuristic(gs game.Gamestate) (float64, bool) {
	s := gs.(State)
	// Piles that are a multiple of (maxTake+1) are losing for the player
	// to move, under standard Nim theory; bias away from leaving one.
	if s.turn == game.Environment {
		return 0.5, true
	}
	if s.Pile%(maxTake+1) == 0 {
		return 0.25, true
	}
	return 0.75, true
}

func (Adapter) RolloutPolicy(game.Gamestate) (game.ScoreVector, bool) { return nil, false }

func (Adapter) EncodeAction(act game.Action) string {
	return strconv.Itoa(int(act.(Move)))
}

func (Adapter) DecodeAction(s string) (game.Action, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return Move(n), nil
}

// playerByte encodes a, b, or environment as a single wire byte. next is
// always one of PlayerA/PlayerB (never environment), but this is shared by
// both fields for simplicity.
func playerByte(p game.Player) byte {
	switch p {
	case PlayerB:
		return 'b'
	case game.Environment:
		return 'e'
	default:
		return 'a'
	}
}

func byteToTurn(b byte) (game.Player, error) {
	switch b {
	case 'a':
		return PlayerA, nil
	case 'b':
		return PlayerB, nil
	case 'e':
		return game.Environment, nil
	default:
		return "", errors.New("nim: invalid turn byte")
	}
}

// EncodeGamestate writes Pile, turn, and next (the player the environment
// will hand off to; meaningful only while turn == Environment, but encoded
// unconditionally so decode never has to guess).
func (Adapter) EncodeGamestate(gs game.Gamestate) ([]byte, error) {
	s := gs.(State)
	return []byte{byte(s.Pile), playerByte(s.turn), playerByte(s.next)}, nil
}

func (Adapter) DecodeGamestate(b []byte) (game.Gamestate, error) {
	if len(b) != 3 {
		return nil, errors.New("nim: invalid gamestate encoding")
	}
	turn, err := byteToTurn(b[1])
	if err != nil {
		return nil, err
	}
	next, err := byteToTurn(b[2])
	if err != nil {
		return nil, err
	}
	return State{Pile: int(b[0]), turn: turn, next: next}, nil
}
