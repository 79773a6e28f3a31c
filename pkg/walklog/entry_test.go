package walklog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	log := Log{
		TakeAction("3"),
		NewNode(42, 0, "3"),
		WalkResult(map[string]float64{"x": 1, "o": 0}),
	}
	b, err := Encode(log)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, KindTakeAction, got[0].Kind)
	assert.Equal(t, "walklog", got[0].DCModule)
	assert.Equal(t, uint32(42), got[1].NodeID)
	assert.Equal(t, 1.0, got[2].ScoreVec["x"])
}

func TestDecodeMalformedEnvelopeErrors(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}
