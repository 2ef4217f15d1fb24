// Package mediasender drains the encoded-video and encoded-audio
// queues, packetizes frames with internal/rtpcodec, and fans them out
// through the Peer Registry (spec.md §4.7, §4.8).
package mediasender

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/streamfab/gamestream-sfu/internal/media"
	"github.com/streamfab/gamestream-sfu/internal/rtpcodec"
)

// popTimeout is the Video/Audio Sender's timed-pop interval (spec.md
// §4.7/§4.8: "100 ms timed pop").
const popTimeout = 100 * time.Millisecond

// Broadcaster is the subset of *peer.Registry the senders need.
type Broadcaster interface {
	BroadcastVideo(rtpBytes []byte)
	BroadcastAudio(rtpBytes []byte)
	ConnectedCount() int
}

// defaultTimestampIncrement is the per-frame RTP timestamp step for a
// 30fps source at the standard 90kHz video clock rate (90000/30).
const defaultTimestampIncrement = rtpcodec.VideoClockRate / 30

// VideoSender is the single producer thread consuming the encoded
// video queue (spec.md §4.7). Its SSRC is generated at init time and
// exposed so peers add matching tracks.
type VideoSender struct {
	queue     *media.Queue
	registry  Broadcaster
	codec     rtpcodec.VideoCodec
	ssrc      uint32
	tsStep    uint32
	seq       *rtpcodec.Sequencer
	logger    zerolog.Logger
	malformed func()

	stop chan struct{}
	done chan struct{}
}

// NewVideoSender builds a sender that advances the RTP timestamp by
// defaultTimestampIncrement per frame (spec.md §4.1/§9 Open Question:
// "caller-supplied clock-rate hint"). Use WithTimestampIncrement to
// override it for a non-30fps source.
func NewVideoSender(queue *media.Queue, registry Broadcaster, codec rtpcodec.VideoCodec, ssrc uint32, malformedCounter func(), logger zerolog.Logger) *VideoSender {
	return &VideoSender{
		queue:     queue,
		registry:  registry,
		codec:     codec,
		ssrc:      ssrc,
		tsStep:    defaultTimestampIncrement,
		seq:       rtpcodec.NewSequencer(0),
		logger:    logger,
		malformed: malformedCounter,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// WithTimestampIncrement overrides the per-frame RTP timestamp step,
// e.g. for a capture source running at a framerate other than 30fps.
func (s *VideoSender) WithTimestampIncrement(clockRate, framerate int) *VideoSender {
	if framerate > 0 {
		s.tsStep = uint32(clockRate / framerate)
	}
	return s
}

// SSRC returns the sender's fixed SSRC.
func (s *VideoSender) SSRC() uint32 { return s.ssrc }

// Codec returns the active codec name for add_video_track (spec.md
// §4.9).
func (s *VideoSender) Codec() rtpcodec.VideoCodec { return s.codec }

// Run consumes frames until Stop is called. If no peer is CONNECTED,
// the frame is still dequeued (to avoid queue build-up) and discarded
// (spec.md §4.7).
func (s *VideoSender) Run() {
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
			// timed pop with nothing ready; loop again
		}
	}
}

func (s *VideoSender) send(frame media.EncodedFrame) {
	if s.registry.ConnectedCount() == 0 {
		return
	}

	ts := uint32(frame.FrameIndex) * s.tsStep
	packets, err := rtpcodec.PacketizeVideo(s.codec, frame.Data, s.ssrc, ts, s.seq, frame.IsKeyframe)
	if err != nil {
		if s.malformed != nil {
			s.malformed()
		}
		s.logger.Warn().Err(err).Msg("malformed video frame, dropped")
		return
	}

	for _, pkt := range packets {
		s.registry.BroadcastVideo(pkt)
	}
}

// Stop halts the producer loop and waits for it to exit.
func (s *VideoSender) Stop() {
	close(s.stop)
	<-s.done
}

// IDRRequester is the external encoder's keyframe-request hook
// (spec.md §1 Out Of Scope: "consumed via ... a request_idr() hook").
// The signaling controller and a peer's PictureLossIndication callback
// both call through this on the CONNECTED transition / RTCP feedback.
type IDRRequester interface {
	RequestIDR()
}
