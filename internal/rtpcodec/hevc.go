package rtpcodec

// HEVC (H.265) NAL unit header is 2 bytes:
//
//	byte0: forbidden_zero_bit(1) nal_unit_type(6) layer_id_high(1)
//	byte1: layer_id_low(5) tid_plus1(3)
//
// FU overhead is the 2-byte FU indicator (same layout, type=49) plus
// a 1-byte FU header (S(1) E(1) FuType(6)), per RFC 7798 §4.4.3.
const hevcFUOverhead = 3

const (
	hevcNALTypeFU = 49

	hevcFUStartBit = 0x80
	hevcFUEndBit   = 0x40
)

// PacketizeHEVC converts one Annex-B H.265 access unit into RTP
// packets, mirroring PacketizeH264 but using the HEVC FU layout
// (RFC 7798) which preserves layer-id and tid across fragments per
// spec.md §4.1.
func PacketizeHEVC(frame []byte, ssrc, ts uint32, seq *Sequencer) ([][]byte, error) {
	nals, err := ScanNALs(frame)
	if err != nil {
		return nil, err
	}

	var packets [][]byte
	for nalIdx, nal := range nals {
		isLastNAL := nalIdx == len(nals)-1
		pkts, err := fragmentHEVCNAL(nal, ssrc, ts, seq, isLastNAL)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkts...)
	}
	return packets, nil
}

func fragmentHEVCNAL(nal []byte, ssrc, ts uint32, seq *Sequencer, isLastNAL bool) ([][]byte, error) {
	if len(nal) < 2 {
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

	byte0, byte1 := nal[0], nal[1]
	nalType := (byte0 >> 1) & 0x3F

	fuIndicatorByte0 := (byte0 & 0x81) | (hevcNALTypeFU << 1)
	fuIndicatorByte1 := byte1

	body := nal[2:]
	chunkSize := MaxPayload - hevcFUOverhead
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
			fuHeader |= hevcFUStartBit
		}
		if isLast {
			fuHeader |= hevcFUEndBit
		}

		payload := make([]byte, 0, 3+len(chunk))
		payload = append(payload, fuIndicatorByte0, fuIndicatorByte1, fuHeader)
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
