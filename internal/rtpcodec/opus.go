package rtpcodec

// PacketizeOpus wraps one Opus frame in a single RTP packet.
// spec.md §4.8: "Opus is always one packet per frame" — there is no
// fragmentation path for audio.
func PacketizeOpus(frame []byte, ssrc, ts uint32, seq *Sequencer) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrMalformedFrame
	}
	return buildPacket(PayloadTypeAudio, seq.Next(), ts, ssrc, true, frame)
}
