package datagram

import (
	"testing"

	"github.com/fenwicklabs/ticknet/pkg/tick"
	"gotest.tools/v3/assert"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		LastReceivedSnapshotTick: 1000,
		ReceivedSnapshotMask:     0xFFFF0000,
		LocalTimestampMS:         123456,
		EchoedRemoteTime:         654321,
		InterpolationDelayTicks:  -3,
		NumLoadedPrefabs:         12,
		InputTargetTick:          1005,
	}
	wire := h.Marshal(nil)
	assert.Equal(t, len(wire), HeaderSize)

	got, n, err := Unmarshal(wire)
	assert.NilError(t, err)
	assert.Equal(t, n, HeaderSize)
	assert.DeepEqual(t, got, h)
}

func TestUnmarshalRejectsWrongProtocolByte(t *testing.T) {
	h := Header{LastReceivedSnapshotTick: tick.Tick(1)}
	wire := h.Marshal(nil)
	wire[0] = 0xFE
	_, _, err := Unmarshal(wire)
	assert.ErrorIs(t, err, ErrNotCommand)
}

func TestUnmarshalShortBuffer(t *testing.T) {
	_, _, err := Unmarshal(make([]byte, HeaderSize-1))
	assert.ErrorContains(t, err, "29-byte")
}
