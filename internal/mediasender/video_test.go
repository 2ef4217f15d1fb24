package mediasender

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamfab/gamestream-sfu/internal/media"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
)

type fakeBroadcaster struct {
	mu             sync.Mutex
	videoPackets   [][]byte
	audioPackets   [][]byte
	connectedCount int
}

func (f *fakeBroadcaster) BroadcastVideo(b []byte) {
	f.mu.Lock()
	f.videoPackets = append(f.videoPackets, b)
	f.mu.Unlock()
}

func (f *fakeBroadcaster) BroadcastAudio(b []byte) {
	f.mu.Lock()
	f.audioPackets = append(f.audioPackets, b)
	f.mu.Unlock()
}

func (f *fakeBroadcaster) ConnectedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectedCount
}

func (f *fakeBroadcaster) videoLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.videoPackets)
}

func annexB(nal []byte) []byte {
	return append([]byte{0, 0, 0, 1}, nal...)
}

func TestVideoSender_DiscardsWhenNoPeerConnected(t *testing.T) {
	q := media.NewQueue(4)
	bc := &fakeBroadcaster{connectedCount: 0}
	sender := NewVideoSender(q, bc, rtpcodec.CodecH264, 55, nil, zerolog.Nop())

	go sender.Run()
	q.Push(media.EncodedFrame{Data: annexB([]byte{0x41, 1, 2, 3}), FrameIndex: 0})

	time.Sleep(50 * time.Millisecond)
	sender.Stop()

	assert.Equal(t, 0, bc.videoLen())
}

func TestVideoSender_BroadcastsPacketsForConnectedPeers(t *testing.T) {
	q := media.NewQueue(4)
	bc := &fakeBroadcaster{connectedCount: 1}
	sender := NewVideoSender(q, bc, rtpcodec.CodecH264, 55, nil, zerolog.Nop())

	go sender.Run()
	q.Push(media.EncodedFrame{Data: annexB([]byte{0x41, 1, 2, 3}), FrameIndex: 0, IsKeyframe: true})

	require.Eventually(t, func() bool { return bc.videoLen() > 0 }, time.Second, 5*time.Millisecond)
	sender.Stop()
}

func TestVideoSender_MalformedFrameIncrementsCounter(t *testing.T) {
	q := media.NewQueue(4)
	bc := &fakeBroadcaster{connectedCount: 1}

	var malformed int
	sender := NewVideoSender(q, bc, rtpcodec.CodecH264, 55, func() { malformed++ }, zerolog.Nop())

	go sender.Run()
	q.Push(media.EncodedFrame{Data: []byte{1, 2, 3}, FrameIndex: 0}) // no start code

	require.Eventually(t, func() bool { return malformed > 0 }, time.Second, 5*time.Millisecond)
	sender.Stop()

	assert.Equal(t, 0, bc.videoLen())
}
