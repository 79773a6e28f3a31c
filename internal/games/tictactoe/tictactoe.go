// Package tictactoe is a reference game.Adapter implementation used by the
// core's tests and the CLI's "tictactoe" game type. Concrete game rules
// are not the core's concern, but its engine and walk-correctness tests
// need a real adapter to exercise, so this one is adapted from the
// tic-tac-toe example's bitboard representation (two uint16 occupancy
// boards plus the 8 winning line patterns), ported from a mutate-in-place
// Position to the value-semantics Gamestate the core's Adapter contract
// requires (TakeActionMut returns the next state rather than mutating a
// pointer receiver, so two engines searching in parallel never alias each
// other's board).
package tictactoe

import (
	"math/bits"
	"math/rand"
	"strconv"
	"time"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/pkg/errors"
)

var errInvalidEncoding = errors.New("tictactoe: invalid gamestate encoding")

const (
	PlayerX game.Player = "x"
	PlayerO game.Player = "o"
)

const fullBoard uint16 = 0b111111111

// winning line bitboard patterns, identical to ttt's
// _winningBitboardPatterns.
var winLines = [8]uint16{
	0b111000000, 0b000111000, 0b000000111,
	0b100100100, 0b010010010, 0b001001001,
	0b100010001, 0b001010100,
}

// State is a 3x3 tic-tac-toe position: one occupancy bitboard per player
// plus whose turn it is.
type State struct {
	boards [2]uint16 // index 0 = X, index 1 = O
	turn   game.Player
}

// Cell is a move: the board square (0-8) to mark.
type Cell int

func boardIndex(p game.Player) int {
	if p == PlayerX {
		return 0
	}
	return 1
}

// Adapter implements game.Adapter for tic-tac-toe.
type Adapter struct {
	rand *rand.Rand
}

// New returns a fresh tic-tac-toe Adapter, registered under "tictactoe",
// seeded from the current time.
func New() game.Adapter {
	return Adapter{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewWithRand returns a tic-tac-toe Adapter using r for RandomAction,
// giving tests and a worker's seeded search reproducible behavior.
func NewWithRand(r *rand.Rand) game.Adapter {
	return Adapter{rand: r}
}

func init() {
	Registry.Register("tictactoe", New)
}

// Registry is the package-level registry entry point; cmd/ binaries import
// this package for its init() side effect and look games up by name here,
// or compose their own registry from it.
var Registry = game.NewRegistry()

func (Adapter) InitGame() game.Gamestate {
	return State{turn: PlayerX}
}

func (Adapter) Players() []game.Player { return []game.Player{PlayerX, PlayerO} }

func (Adapter) CurrentMover(gs game.Gamestate) game.Player {
	return gs.(State).turn
}

func (Adapter) Clone(gs game.Gamestate) game.Gamestate {
	return gs.(State) // State has only value fields: a copy is a deep copy.
}

func (Adapter) Equal(a, b game.Gamestate) bool {
	return a.(State) == b.(State)
}

func (Adapter) TakeActionMut(gs game.Gamestate, act game.Action) (game.Gamestate, bool) {
	s := gs.(State)
	cell := act.(Cell)
	occupied := s.boards[0] | s.boards[1]
	if cell < 0 || cell > 8 || occupied&(1<<uint(cell)) != 0 {
		return nil, false
	}
	idx := boardIndex(s.turn)
	s.boards[idx] |= 1 << uint(cell)
	s.turn = other(s.turn)
	return s, true
}

func (Adapter) CanUndo() bool { return true }

func (Adapter) UndoAction(gs game.Gamestate, act game.Action) game.Gamestate {
	s := gs.(State)
	cell := act.(Cell)
	prevTurn := other(s.turn)
	idx := boardIndex(prevTurn)
	s.boards[idx] &^= 1 << uint(cell)
	s.turn = prevTurn
	return s
}

func (Adapter) AllActions(gs game.Gamestate) []game.Action {
	s := gs.(State)
	if _, over := winnerOf(s); over {
		return nil
	}
	free := fullBoard &^ (s.boards[0] | s.boards[1])
	actions := make([]game.Action, 0, 9)
	for free != 0 {
		cell := bits.TrailingZeros16(free)
		actions = append(actions, Cell(cell))
		free &= free - 1
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

func (Adapter) IsOver(gs game.Gamestate) (game.Player, bool) {
	return winnerOf(gs.(State))
}

func winnerOf(s State) (game.Player, bool) {
	for _, line := range winLines {
		if s.boards[0]&line == line {
			return PlayerX, true
		}
		if s.boards[1]&line == line {
			return PlayerO, true
		}
	}
	if s.boards[0]|s.boards[1] == fullBoard {
		return game.Draw, true
	}
	return "", false
}

// FinalScore is intentionally unimplemented: the walk engine derives the
// score vector from IsOver's winner instead, exercising that fallback path.
func (Adapter) FinalScore(game.Gamestate) (game.ScoreVector, bool) { return nil, false }

// Heuristic sums the mover's marks over every line the opponent has not
// blocked, normalized to [0, 1]. Seeds the pre-visit/simple UCB variants.
func (Adapter) Heuristic(gs game.Gamestate) (float64, bool) {
	s := gs.(State)
	mine := s.boards[boardIndex(s.turn)]
	theirs := s.boards[boardIndex(other(s.turn))]
	score := 0
	for _, line := range winLines {
		if theirs&line != 0 {
			continue // blocked line
		}
		score += bits.OnesCount16(mine & line)
	}
	return float64(score) / float64(len(winLines)*2), true
}

// RolloutPolicy is intentionally unimplemented: the walk engine falls back
// to random simulation, exercising that path.
func (Adapter) RolloutPolicy(game.Gamestate) (game.ScoreVector, bool) { return nil, false }

func (Adapter) EncodeAction(act game.Action) string {
	return strconv.Itoa(int(act.(Cell)))
}

func (Adapter) DecodeAction(s string) (game.Action, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return Cell(n), nil
}

func (Adapter) EncodeGamestate(gs game.Gamestate) ([]byte, error) {
	s := gs.(State)
	turn := byte('x')
	if s.turn == PlayerO {
		turn = 'o'
	}
	b := make([]byte, 5)
	b[0] = byte(s.boards[0])
	b[1] = byte(s.boards[0] >> 8)
	b[2] = byte(s.boards[1])
	b[3] = byte(s.boards[1] >> 8)
	b[4] = turn
	return b, nil
}

func (Adapter) DecodeGamestate(b []byte) (game.Gamestate, error) {
	if len(b) != 5 {
		return nil, errInvalidEncoding
	}
	turn := PlayerX
	if b[4] == 'o' {
		turn = PlayerO
	}
	return State{
		boards: [2]uint16{
			uint16(b[0]) | uint16(b[1])<<8,
			uint16(b[2]) | uint16(b[3])<<8,
		},
		turn: turn,
	}, nil
}

func other(p game.Player) game.Player {
	if p == PlayerX {
		return PlayerO
	}
	return PlayerX
}
