package mediasender

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/streamfab/gamestream-sfu/internal/media"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
)

// audioTimestampIncrement is 480 samples per Opus frame (10ms @
// 48kHz), regardless of wall-clock (spec.md §4.8).
const audioTimestampIncrement = rtpcodec.OpusFrameSamples

// AudioSender is the single thread consuming Opus packets (spec.md
// §4.8). Opus is always one packet per frame; its SSRC is independent
// from the Video Sender's.
type AudioSender struct {
	queue    *media.Queue
	registry Broadcaster
	ssrc     uint32
	seq      *rtpcodec.Sequencer
	ts       uint32
	logger   zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

func NewAudioSender(queue *media.Queue, registry Broadcaster, ssrc uint32, logger zerolog.Logger) *AudioSender {
	return &AudioSender{
		queue:    queue,
		registry: registry,
		ssrc:     ssrc,
		seq:      rtpcodec.NewSequencer(0),
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SSRC returns the sender's fixed SSRC.
func (s *AudioSender) SSRC() uint32 { return s.ssrc }

// Run consumes Opus frames until Stop is called.
func (s *AudioSender) Run() {
	defer close(s.done)

	timer := time.NewTimer(popTimeout)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(popTimeout)

		select {
		case <-s.stop:
			return
		case frame := <-s.queue.C():
			s.send(frame)
		case <-timer.C:
		}
	}
}

func (s *AudioSender) send(frame media.EncodedFrame) {
	if s.registry.ConnectedCount() == 0 {
		s.ts += audioTimestampIncrement
		return
	}

	pkt, err := rtpcodec.PacketizeOpus(frame.Data, s.ssrc, s.ts, s.seq)
	s.ts += audioTimestampIncrement
	if err != nil {
		s.logger.Warn().Err(err).Msg("malformed audio frame, dropped")
		return
	}

	s.registry.BroadcastAudio(pkt)
}

// Stop halts the producer loop and waits for it to exit.
func (s *AudioSender) Stop() {
	close(s.stop)
	<-s.done
}
