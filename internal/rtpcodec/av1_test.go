package rtpcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketizeAV1_SinglePacketKeyframe(t *testing.T) {
	frame := make([]byte, 100)
	seq := NewSequencer(0)
	pkts, err := PacketizeAV1(frame, 1, 1, seq, true)
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	pkt := unmarshal(t, pkts[0])
	assert.True(t, pkt.Marker)
	header := pkt.Payload[0]
	assert.Equal(t, byte(0), header&av1BitZ)
	assert.Equal(t, byte(0), header&av1BitY)
	assert.Equal(t, byte(av1W1), header&0x30)
	assert.Equal(t, byte(av1BitN), header&av1BitN)
}

func TestPacketizeAV1_SinglePacketNonKeyframe(t *testing.T) {
	frame := make([]byte, 100)
	seq := NewSequencer(0)
	pkts, err := PacketizeAV1(frame, 1, 1, seq, false)
	require.NoError(t, err)
	require.Len(t, pkts, 1)

	pkt := unmarshal(t, pkts[0])
	assert.Equal(t, byte(0), pkt.Payload[0]&av1BitN)
}

func TestPacketizeAV1_FragmentedKeyframe(t *testing.T) {
	frame := make([]byte, (MaxPayload-av1HeaderOverhead)*2+10)
	seq := NewSequencer(0)
	pkts, err := PacketizeAV1(frame, 1, 1, seq, true)
	require.NoError(t, err)
	require.Len(t, pkts, 3)

	first := unmarshal(t, pkts[0])
	mid := unmarshal(t, pkts[1])
	last := unmarshal(t, pkts[2])

	assert.Equal(t, byte(0), first.Payload[0]&av1BitZ)
	assert.NotEqual(t, byte(0), first.Payload[0]&av1BitY)
	assert.NotEqual(t, byte(0), first.Payload[0]&av1BitN)
	assert.False(t, first.Marker)

	assert.NotEqual(t, byte(0), mid.Payload[0]&av1BitZ)
	assert.NotEqual(t, byte(0), mid.Payload[0]&av1BitY)
	assert.Equal(t, byte(0), mid.Payload[0]&av1BitN)
	assert.False(t, mid.Marker)

	assert.NotEqual(t, byte(0), last.Payload[0]&av1BitZ)
	assert.Equal(t, byte(0), last.Payload[0]&av1BitY)
	assert.True(t, last.Marker)
}

func TestPacketizeAV1_EmptyFrameIsMalformed(t *testing.T) {
	seq := NewSequencer(0)
	_, err := PacketizeAV1(nil, 1, 1, seq, false)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
