package payload

import (
	"bytes"
	"encoding/base64"
	"strings"
)

const (
	naluTypeIDR = 5
	naluTypeSPS = 7
	naluTypePPS = 8
)

var startCode = []byte{0, 0, 0, 1}

// parameterSets re-inserts SPS and PPS in front of every IDR access unit that
// does not already carry them, so late joiners can start decoding at the next
// keyframe.
type parameterSets struct {
	sps, pps []byte
}

// process takes an Annex-B access unit and returns it, with the cached SPS
// and PPS prepended when it holds an IDR slice but no parameter sets.
func (ps *parameterSets) process(au []byte) []byte {
	nalus := splitAnnexB(au)
	if len(nalus) == 0 {
		return au
	}

	hasIDR, hasPS := false, false
	for _, nalu := range nalus {
		switch nalu[0] & 0x1F {
		case naluTypeSPS:
			ps.sps = bytes.Clone(nalu)
			hasPS = true
		case naluTypePPS:
			ps.pps = bytes.Clone(nalu)
			hasPS = true
		case naluTypeIDR:
			hasIDR = true
		}
	}
	if !hasIDR || hasPS || len(ps.sps) == 0 || len(ps.pps) == 0 {
		return au
	}

	out := make([]byte, 0, len(au)+len(ps.sps)+len(ps.pps)+2*len(startCode))
	out = append(out, startCode...)
	out = append(out, ps.sps...)
	out = append(out, startCode...)
	out = append(out, ps.pps...)
	return append(out, au...)
}

// seed fills the cache from an fmtp sprop-parameter-sets attribute.
func (ps *parameterSets) seed(fmtpLine string) {
	sps, pps := parseSpsPps(fmtpLine)
	if len(sps) > 0 && len(pps) > 0 {
		ps.sps, ps.pps = sps, pps
	}
}

// parseSpsPps extracts SPS and PPS from the codec's fmtp line.
func parseSpsPps(fmtpLine string) (sps, pps []byte) {
	const prefix = "sprop-parameter-sets="

	idx := strings.Index(fmtpLine, prefix)
	if idx < 0 {
		return nil, nil
	}

	value := fmtpLine[idx+len(prefix):]
	if semi := strings.Index(value, ";"); semi >= 0 {
		value = value[:semi]
	}

	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return nil, nil
	}

	sps, _ = base64.StdEncoding.DecodeString(parts[0])
	pps, _ = base64.StdEncoding.DecodeString(parts[1])
	return sps, pps
}

// splitAnnexB returns the NAL units of b without their start codes. Empty
// units are skipped.
func splitAnnexB(b []byte) [][]byte {
	var nalus [][]byte
	start := -1
	for i := 0; i+2 < len(b); {
		if b[i] == 0 && b[i+1] == 0 && b[i+2] == 1 {
			if start >= 0 {
				nalus = appendNALU(nalus, b[start:i])
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 {
		nalus = appendNALU(nalus, b[start:])
	}
	return nalus
}

func appendNALU(nalus [][]byte, nalu []byte) [][]byte {
	// A four byte start code leaves a trailing zero on the previous unit.
	for len(nalu) > 0 && nalu[len(nalu)-1] == 0 {
		nalu = nalu[:len(nalu)-1]
	}
	if len(nalu) == 0 {
		return nalus
	}
	return append(nalus, nalu)
}
