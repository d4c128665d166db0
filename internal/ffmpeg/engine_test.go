package ffmpeg

import (
	"testing"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/media"
	"github.com/smazurov/mediagraph/internal/renderer"
)

func TestNewEngineInstallsAvailableFactories(t *testing.T) {
	eng := NewEngine(probeFixture(t))

	tests := []struct {
		factory string
		want    bool
	}{
		{capability.FactoryX264Enc, true},
		{capability.FactoryVP8Enc, true},
		{capability.FactoryOpusEnc, true},
		{capability.FactoryMulawEnc, true},
		{capability.FactoryOpenH264Enc, false},
		{capability.FactoryVP9Enc, false},
		{capability.FactoryAVDecH264, true},
		{capability.FactoryVP9Dec, false},
		{capability.FactoryH264Parse, true},
		{renderer.FactoryUpload, true},
		{renderer.FactoryColorConvert, true},
		{renderer.FactoryColorBalance, true},
		{renderer.FactoryFlip, true},
		{renderer.FactorySink, true},
		{"rtpvp8pay", true},
		{"rtph264depay", true},
	}
	for _, tt := range tests {
		if got := eng.Has(tt.factory); got != tt.want {
			t.Errorf("Has(%s) = %v, want %v", tt.factory, got, tt.want)
		}
	}
}

func TestNewEngineFlipNeedsAllFilters(t *testing.T) {
	inv := probeFixture(t)
	inv.Filters = slicesWithout(inv.Filters, "vflip")
	if NewEngine(inv).Has(renderer.FactoryFlip) {
		t.Error("flip installed without vflip")
	}
}

func slicesWithout(list []Component, name string) []Component {
	var out []Component
	for _, c := range list {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}

func TestEngineAnswersCapabilityQueries(t *testing.T) {
	q := capability.NewQuery(NewEngine(probeFixture(t)), capability.Platform{OS: "linux"})

	if enc, ok := q.ProbeEncoder(media.CodecH264); !ok || enc != capability.FactoryX264Enc {
		t.Errorf("ProbeEncoder(H264) = %q, %v", enc, ok)
	}
	if _, ok := q.ProbeEncoder(media.CodecVP9); ok {
		t.Error("VP9 encoder should be unavailable")
	}
	if dec, ok := q.ProbeDecoder(media.CodecOpus); !ok || dec != capability.FactoryOpusDec {
		t.Errorf("ProbeDecoder(Opus) = %q, %v", dec, ok)
	}
}

func TestEngineBalanceChannels(t *testing.T) {
	eng := NewEngine(probeFixture(t))
	stage, ok := eng.Instantiate(renderer.FactoryColorBalance, "balance")
	if !ok {
		t.Fatal("no balance stage")
	}
	cb := stage.(engine.ColorBalance)
	for _, ch := range cb.BalanceChannels() {
		v, _ := cb.Balance(ch.Label)
		if v != ch.Midpoint() {
			t.Errorf("%s starts at %d, want neutral %d", ch.Label, v, ch.Midpoint())
		}
	}
	sink, _ := eng.Instantiate(renderer.FactorySink, "sink")
	if _, ok := sink.(engine.Overlay); !ok {
		t.Error("sink must accept a window handle")
	}
}
