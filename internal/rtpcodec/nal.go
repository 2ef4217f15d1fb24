package rtpcodec

import "errors"

// ErrMalformedFrame is returned when an Annex-B buffer carries no
// start code, or a parsed NAL unit has zero length (spec.md §4.1
// "Failure semantics", §7 MalformedFrame).
var ErrMalformedFrame = errors.New("rtpcodec: malformed frame (no start code or empty NAL)")

// ScanNALs splits an Annex-B elementary stream into NAL units,
// stripping the 3- or 4-byte start codes. Each returned slice runs
// from just after its start code to the byte before the next start
// code, or to the end of the buffer for the last NAL.
//
// spec.md §9 flags that a naive "i < size-3" scan can miss a start
// code near the very end of the buffer. This implementation instead
// walks every offset up to len(data), checking for both 3- and 4-byte
// start codes without shortening the scan range, so a start code
// beginning at the last 3 or 4 bytes of the buffer is still found —
// the "more thorough two-pointer scan" spec.md leaves as a choice.
func ScanNALs(data []byte) ([][]byte, error) {
	starts := scanStartCodes(data)
	if len(starts) == 0 {
		return nil, ErrMalformedFrame
	}

	nals := make([][]byte, 0, len(starts))
	for i, s := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1].codeOffset
		}
		nal := data[s.nalOffset:end]
		if len(nal) == 0 {
			return nil, ErrMalformedFrame
		}
		nals = append(nals, nal)
	}
	return nals, nil
}

type startCode struct {
	codeOffset int // offset of the 00 00 01 (or 00 00 00 01) sequence
	nalOffset  int // offset of the first byte of the NAL unit itself
}

// scanStartCodes finds every Annex-B start code in data, preferring
// the 4-byte form when both a 3-byte and 4-byte start code would
// match at the same position (i.e. 00 00 00 01 is reported once, not
// as a 00 00 01 match at offset+1 too).
func scanStartCodes(data []byte) []startCode {
	var out []startCode
	n := len(data)
	for i := 0; i+2 < n; i++ {
		if data[i] != 0x00 || data[i+1] != 0x00 {
			continue
		}
		if data[i+2] == 0x01 {
			out = append(out, startCode{codeOffset: i, nalOffset: i + 3})
			i += 2
			continue
		}
		if i+3 < n && data[i+2] == 0x00 && data[i+3] == 0x01 {
			out = append(out, startCode{codeOffset: i, nalOffset: i + 4})
			i += 3
			continue
		}
	}
	return out
}
