package rtpcodec

import "fmt"

// VideoCodec names the active video codec, matching the strings the
// signaling controller passes to Peer.AddVideoTrack (spec.md §4.9).
type VideoCodec string

const (
	CodecH264 VideoCodec = "H264"
	CodecHEVC VideoCodec = "HEVC"
	CodecAV1  VideoCodec = "AV1"
)

// PacketizeVideo dispatches to the fragmenter for the active codec.
func PacketizeVideo(codec VideoCodec, frame []byte, ssrc, ts uint32, seq *Sequencer, keyframe bool) ([][]byte, error) {
	switch codec {
	case CodecH264:
		return PacketizeH264(frame, ssrc, ts, seq)
	case CodecHEVC:
		return PacketizeHEVC(frame, ssrc, ts, seq)
	case CodecAV1:
		return PacketizeAV1(frame, ssrc, ts, seq, keyframe)
	default:
		return nil, fmt.Errorf("rtpcodec: unsupported video codec %q", codec)
	}
}
