package inproc

import (
	"testing"
	"time"

	"github.com/distmcts/distmcts/internal/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsFanOutToAllSubscribers(t *testing.T) {
	b := New()
	ch1, sub1, err := b.SubscribeCommands()
	require.NoError(t, err)
	defer sub1.Unsubscribe()
	ch2, sub2, err := b.SubscribeCommands()
	require.NoError(t, err)
	defer sub2.Unsubscribe()

	require.NoError(t, b.PublishCommand(broker.StopCommand()))

	select {
	case cmd := <-ch1:
		assert.Equal(t, broker.CommandStop, cmd.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on subscriber 1")
	}
	select {
	case cmd := <-ch2:
		assert.Equal(t, broker.CommandStop, cmd.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on subscriber 2")
	}
}

func TestWalkLogStreamsAreScopedByGamestateID(t *testing.T) {
	b := New()
	chA, subA, err := b.SubscribeWalkLog(1)
	require.NoError(t, err)
	defer subA.Unsubscribe()
	chB, subB, err := b.SubscribeWalkLog(2)
	require.NoError(t, err)
	defer subB.Unsubscribe()

	require.NoError(t, b.PublishWalkLog(broker.WalkLogEnvelope{GamestateID: 1, EngineServerID: 7}))

	select {
	case env := <-chA:
		assert.EqualValues(t, 1, env.GamestateID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on stream 1")
	}
	select {
	case <-chB:
		t.Fatal("stream 2 should not receive stream 1's entries")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, sub, err := b.SubscribeActions()
	require.NoError(t, err)
	sub.Unsubscribe()

	require.NoError(t, b.PublishAction(broker.ActionMessage{GamestateID: 1}))

	_, open := <-ch
	assert.False(t, open, "channel should be closed after Unsubscribe")
}
