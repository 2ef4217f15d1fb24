package rtpcodec

// AV1 RTP aggregation header is a single byte:
//
//	Z(1) Y(1) W(2) N(1) reserved(3)
//
// Z: this is a continuation of a fragmented OBU element.
// Y: more fragments of this OBU element follow in a later packet.
// W: number of OBU elements in the packet (this packetizer always
//    carries exactly one aggregation unit per packet, W=1).
// N: set on the first packet of a coded (temporal-unit) keyframe.
//
// spec.md §4.1 describes a frame that fits whole as Z=0 Y=0 W=1
// N=(keyframe), and a split frame as fixed-size chunks each carrying
// Z=1 on continuations, Y=1 while more remain, N=1 only on the first
// fragment of a keyframe.
const (
	av1HeaderOverhead = 1

	av1BitZ = 0x80
	av1BitY = 0x40
	av1W1   = 0x10 // W field (bits 5-4) value 1, left-shifted into place
	av1BitN = 0x08
)

// PacketizeAV1 converts one AV1 encoded temporal unit into RTP
// packets per spec.md §4.1.
func PacketizeAV1(frame []byte, ssrc, ts uint32, seq *Sequencer, keyframe bool) ([][]byte, error) {
	if len(frame) == 0 {
		return nil, ErrMalformedFrame
	}

	if len(frame) <= MaxPayload-av1HeaderOverhead {
		header := av1W1
		if keyframe {
			header |= av1BitN
		}
		payload := make([]byte, 0, 1+len(frame))
		payload = append(payload, byte(header))
		payload = append(payload, frame...)

		pkt, err := buildPacket(PayloadTypeVideo, seq.Next(), ts, ssrc, true, payload)
		if err != nil {
			return nil, err
		}
		return [][]byte{pkt}, nil
	}

	chunkSize := MaxPayload - av1HeaderOverhead
	numChunks := (len(frame) + chunkSize - 1) / chunkSize

	packets := make([][]byte, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(frame) {
			end = len(frame)
		}
		chunk := frame[start:end]

		isFirst := i == 0
		isLast := i == numChunks-1

		header := av1W1
		if !isFirst {
			header |= av1BitZ
		}
		if !isLast {
			header |= av1BitY
		}
		if isFirst && keyframe {
			header |= av1BitN
		}

		payload := make([]byte, 0, 1+len(chunk))
		payload = append(payload, byte(header))
		payload = append(payload, chunk...)

		pkt, err := buildPacket(PayloadTypeVideo, seq.Next(), ts, ssrc, isLast, payload)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}
