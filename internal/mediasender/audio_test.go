package mediasender

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/streamfab/gamestream-sfu/internal/media"
)

func TestAudioSender_BroadcastsOnePacketPerFrame(t *testing.T) {
	q := media.NewQueue(4)
	bc := &fakeBroadcaster{connectedCount: 1}
	sender := NewAudioSender(q, bc, 99, zerolog.Nop())

	go sender.Run()
	q.Push(media.EncodedFrame{Data: []byte{1, 2, 3, 4}, FrameIndex: 0})
	q.Push(media.EncodedFrame{Data: []byte{5, 6, 7, 8}, FrameIndex: 1})

	require.Eventually(t, func() bool {
		bc.mu.Lock()
		defer bc.mu.Unlock()
		return len(bc.audioPackets) == 2
	}, time.Second, 5*time.Millisecond)

	sender.Stop()
}
