// Package rtpcodec turns encoded elementary-stream video/audio frames
// into RTP packets: a 12-byte header builder plus NAL/OBU-aware
// fragmenters for H.264, HEVC, and AV1, and a thin Opus wrapper.
//
// The header is delegated to github.com/pion/rtp's Header/Packet
// types for marshaling; the NAL/OBU scanning and FU-A/FU/aggregation
// fragmentation logic that spec.md pins down byte-for-byte is
// hand-written so it stays precisely testable against the wire
// formulas in spec.md §4.1 and the boundary cases in §8.
package rtpcodec

import (
	"github.com/pion/rtp"
)

// Payload type and payload size limits, per spec.md §4.1.
const (
	PayloadTypeVideo uint8 = 96
	PayloadTypeAudio uint8 = 111

	MaxPayload = 1200

	VideoClockRate = 90000
	AudioClockRate = 48000
	// OpusFrameSamples is the RTP timestamp increment per 10ms Opus
	// frame at a 48kHz clock (spec.md §4.1/§4.8).
	OpusFrameSamples = 480
)

// Sequencer hands out a per-codec monotonically increasing,
// wrap-around sequence number. One Sequencer exists per media type
// (video, audio) for the life of the process — spec.md §4.1/§8
// requires sequence numbers be "independent per sender" and strictly
// monotonic modulo 2^16.
type Sequencer struct {
	next uint16
}

// NewSequencer starts the sequence counter at start. The Video and
// Audio Senders both start their sequencers at 0.
func NewSequencer(start uint16) *Sequencer {
	return &Sequencer{next: start}
}

func (s *Sequencer) Next() uint16 {
	v := s.next
	s.next++
	return v
}

// buildPacket marshals one RTP packet with the given header fields
// and payload via pion/rtp, matching the 12-byte fixed header spec.md
// §4.1 describes (version 2, no padding/extension/CSRC).
func buildPacket(pt uint8, seq uint16, ts, ssrc uint32, marker bool, payload []byte) ([]byte, error) {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Padding:        false,
			Extension:      false,
			Marker:         marker,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	return pkt.Marshal()
}
