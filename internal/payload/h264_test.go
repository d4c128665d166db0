package payload

import (
	"bytes"
	"testing"
)

var (
	testSPS = []byte{0x67, 0x42, 0x00, 0x1F}
	testPPS = []byte{0x68, 0xCE, 0x3C, 0x80}
	testIDR = []byte{0x65, 0x88, 0x84, 0x21}
	testP   = []byte{0x41, 0x9A, 0x02, 0x03}
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, startCode...)
		out = append(out, n...)
	}
	return out
}

func TestSplitAnnexB(t *testing.T) {
	mixed := append([]byte{0, 0, 1}, testSPS...)
	mixed = append(mixed, annexB(testPPS, testIDR)...)

	nalus := splitAnnexB(mixed)
	if len(nalus) != 3 {
		t.Fatalf("got %d nalus, want 3", len(nalus))
	}
	for i, want := range [][]byte{testSPS, testPPS, testIDR} {
		if !bytes.Equal(nalus[i], want) {
			t.Errorf("nalu %d = %x, want %x", i, nalus[i], want)
		}
	}
	if got := splitAnnexB([]byte{0x65, 0x88}); len(got) != 0 {
		t.Errorf("no start code should yield nothing, got %d", len(got))
	}
}

func TestParameterSets_InjectBeforeIDR(t *testing.T) {
	ps := &parameterSets{}

	first := annexB(testSPS, testPPS, testIDR)
	if got := ps.process(first); !bytes.Equal(got, first) {
		t.Error("access unit carrying parameter sets must pass unchanged")
	}

	delta := annexB(testP)
	if got := ps.process(delta); !bytes.Equal(got, delta) {
		t.Error("non-IDR access unit must pass unchanged")
	}

	idr := annexB(testIDR)
	want := annexB(testSPS, testPPS, testIDR)
	if got := ps.process(idr); !bytes.Equal(got, want) {
		t.Errorf("IDR without parameter sets = %x, want %x", got, want)
	}
}

func TestParameterSets_NothingCached(t *testing.T) {
	ps := &parameterSets{}
	idr := annexB(testIDR)
	if got := ps.process(idr); !bytes.Equal(got, idr) {
		t.Error("nothing to inject before the first parameter sets are seen")
	}
}

func TestParameterSets_Seed(t *testing.T) {
	ps := &parameterSets{}
	ps.seed("packetization-mode=1;sprop-parameter-sets=Z0IAKeKQFAe2AtwEBAaQeJEV,aM48gA==;profile-level-id=42e01f")
	if len(ps.sps) == 0 || ps.sps[0]&0x1F != naluTypeSPS {
		t.Errorf("sps = %x", ps.sps)
	}
	if len(ps.pps) == 0 || ps.pps[0]&0x1F != naluTypePPS {
		t.Errorf("pps = %x", ps.pps)
	}

	empty := &parameterSets{}
	empty.seed("packetization-mode=1")
	if empty.sps != nil || empty.pps != nil {
		t.Error("fmtp without sprop-parameter-sets must not seed")
	}
}
