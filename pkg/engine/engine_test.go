package engine

import (
	"math/rand"
	"testing"

	"github.com/distmcts/distmcts/internal/games/tictactoe"
	"github.com/distmcts/distmcts/pkg/walklog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestActionPrefersForcedWin(t *testing.T) {
	adapter := tictactoe.NewWithRand(rand.New(rand.NewSource(1)))
	gs := adapter.InitGame()
	// X has two in a row (cells 0, 1); O occupies elsewhere. X to move,
	// cell 2 wins immediately.
	var ok bool
	for _, mv := range []tictactoe.Cell{0, 3, 1, 4} {
		gs, ok = adapter.TakeActionMut(gs, mv)
		require.True(t, ok)
	}

	cfg := DefaultConfig()
	cfg.Rand = rand.New(rand.NewSource(1))
	e := New(adapter, gs, cfg)

	_, err := e.RunWalks(300)
	require.NoError(t, err)

	action, ok := e.BestAction()
	require.True(t, ok)
	assert.Equal(t, tictactoe.Cell(2), action)
}

func TestTwoEngineConvergenceViaWalkLogMerge(t *testing.T) {
	adapter1 := tictactoe.NewWithRand(rand.New(rand.NewSource(2)))
	adapter2 := tictactoe.NewWithRand(rand.New(rand.NewSource(3)))
	gs := adapter1.InitGame()

	cfg1 := DefaultConfig()
	cfg1.Rand = rand.New(rand.NewSource(2))
	cfg2 := DefaultConfig()
	cfg2.Rand = rand.New(rand.NewSource(3))

	e1 := New(adapter1, gs, cfg1)
	e2 := New(adapter2, gs, cfg2)

	log1, err := e1.RunWalks(50)
	require.NoError(t, err)
	log2, err := e2.RunWalks(50)
	require.NoError(t, err)

	merger1 := walklog.NewMerger()
	merger2 := walklog.NewMerger()
	require.NoError(t, e1.ApplyRemoteLog(merger1, log2))
	require.NoError(t, e2.ApplyRemoteLog(merger2, log1))

	assert.EqualValues(t, 50, e1.RootVisits())
	assert.EqualValues(t, 50, e2.RootVisits())
	assert.Equal(t, e1.Store().Size(), e2.Store().Size(), "both trees hold the union of the two engines' nodes")
}

func TestRunWalksAccumulatesRootVisits(t *testing.T) {
	adapter := tictactoe.NewWithRand(rand.New(rand.NewSource(4)))
	cfg := DefaultConfig()
	cfg.Rand = rand.New(rand.NewSource(4))
	e := New(adapter, adapter.InitGame(), cfg)

	_, err := e.RunWalks(25)
	require.NoError(t, err)
	assert.EqualValues(t, 25, e.RootVisits())
}
