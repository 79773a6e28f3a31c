package tictactoe

import (
	"math/rand"
	"testing"

	"github.com/distmcts/distmcts/pkg/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinDetection(t *testing.T) {
	a := NewWithRand(rand.New(rand.NewSource(1)))
	gs := a.InitGame()
	moves := []Cell{0, 3, 1, 4, 2} // X takes top row
	var ok bool
	for _, m := range moves {
		gs, ok = a.TakeActionMut(gs, m)
		require.True(t, ok)
	}
	winner, over := a.IsOver(gs)
	require.True(t, over)
	assert.Equal(t, PlayerX, winner)
}

func TestDrawDetection(t *testing.T) {
	a := NewWithRand(rand.New(rand.NewSource(1)))
	gs := a.InitGame()
	// X O X / X O O / O X X -> draw
	moves := []Cell{0, 1, 2, 4, 3, 5, 7, 6, 8}
	var ok bool
	for _, m := range moves {
		gs, ok = a.TakeActionMut(gs, m)
		require.True(t, ok)
	}
	winner, over := a.IsOver(gs)
	require.True(t, over)
	assert.Equal(t, game.Draw, winner)
}

func TestEncodeDecodeGamestateRoundTrip(t *testing.T) {
	a := NewWithRand(rand.New(rand.NewSource(1)))
	gs := a.InitGame()
	gs, _ = a.TakeActionMut(gs, Cell(4))
	b, err := a.EncodeGamestate(gs)
	require.NoError(t, err)
	back, err := a.DecodeGamestate(b)
	require.NoError(t, err)
	assert.True(t, a.Equal(gs, back))
}

func TestUndoIsInverseOfTakeAction(t *testing.T) {
	a := NewWithRand(rand.New(rand.NewSource(1)))
	gs := a.InitGame()
	next, ok := a.TakeActionMut(gs, Cell(4))
	require.True(t, ok)
	back := a.UndoAction(next, Cell(4))
	assert.True(t, a.Equal(gs, back))
}

func TestIllegalActionRejected(t *testing.T) {
	a := NewWithRand(rand.New(rand.NewSource(1)))
	gs := a.InitGame()
	gs, _ = a.TakeActionMut(gs, Cell(0))
	_, ok := a.TakeActionMut(gs, Cell(0))
	assert.False(t, ok, "re-occupying a cell must be rejected")
}
