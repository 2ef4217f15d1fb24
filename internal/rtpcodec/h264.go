package rtpcodec

// H.264 FU-A overhead: 1 FU indicator byte + 1 FU header byte.
const h264FUOverhead = 2

const (
	h264NALTypeMask = 0x1F
	h264NALRefMask  = 0x60
	h264FUAType     = 28

	h264FUStartBit = 0x80
	h264FUEndBit   = 0x40
)

// PacketizeH264 converts one Annex-B H.264 access unit into RTP
// packets per spec.md §4.1: each NAL is emitted as a single-NAL
// packet when it fits within MaxPayload, else fragmented with FU-A
// (RFC 6184 §5.8), preserving F/NRI/type across fragments. The marker
// bit is set only on the very last RTP packet of the very last NAL of
// the frame.
func PacketizeH264(frame []byte, ssrc, ts uint32, seq *Sequencer) ([][]byte, error) {
	nals, err := ScanNALs(frame)
	if err != nil {
		return nil, err
	}

	var packets [][]byte
	for nalIdx, nal := range nals {
		isLastNAL := nalIdx == len(nals)-1
		pkts, err := fragmentH264NAL(nal, ssrc, ts, seq, isLastNAL)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkts...)
	}
	return packets, nil
}

func fragmentH264NAL(nal []byte, ssrc, ts uint32, seq *Sequencer, isLastNAL bool) ([][]byte, error) {
	if len(nal) == 0 {
		return nil, ErrMalformedFrame
	}

	if len(nal) <= MaxPayload {
		marker := isLastNAL
		pkt, err := buildPacket(PayloadTypeVideo, seq.Next(), ts, ssrc, marker, nal)
		if err != nil {
			return nil, err
		}
		return [][]byte{pkt}, nil
	}

	header := nal[0]
	nalType := header & h264NALTypeMask
	indicator := (header & h264NALRefMask) | h264FUAType

	body := nal[1:]
	chunkSize := MaxPayload - h264FUOverhead
	numChunks := (len(body) + chunkSize - 1) / chunkSize

	packets := make([][]byte, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(body) {
			end = len(body)
		}
		chunk := body[start:end]

		fuHeader := nalType
		isFirst := i == 0
		isLast := i == numChunks-1
		if isFirst {
			fuHeader |= h264FUStartBit
		}
		if isLast {
			fuHeader |= h264FUEndBit
		}

		payload := make([]byte, 0, 2+len(chunk))
		payload = append(payload, indicator, fuHeader)
		payload = append(payload, chunk...)

		marker := isLast && isLastNAL
		pkt, err := buildPacket(PayloadTypeVideo, seq.Next(), ts, ssrc, marker, payload)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}
