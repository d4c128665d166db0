package engine

import (
	"errors"
	"testing"
)

func TestMemoryInstantiateUnknownFactory(t *testing.T) {
	m := NewMemory()
	if s, ok := m.Instantiate("x264enc", "enc"); ok || s != nil {
		t.Fatalf("Instantiate of an uninstalled factory = %v, %v", s, ok)
	}
	if m.Live() != 0 {
		t.Errorf("Live() = %d, want 0", m.Live())
	}
}

func TestMemoryReleaseAccounting(t *testing.T) {
	m := NewMemory(
		FactorySpec{Name: "glupload"},
		FactorySpec{Name: "sink", Children: []FactorySpec{{Name: "inner", Overlay: true}}},
	)

	up, _ := m.Instantiate("glupload", "up")
	sink, _ := m.Instantiate("sink", "sink")
	if got := m.Live(); got != 3 {
		t.Fatalf("Live() = %d, want 3 (bin counts its child)", got)
	}

	sink.Release()
	sink.Release()
	if got := m.Live(); got != 1 {
		t.Errorf("Live() after releasing bin = %d, want 1", got)
	}
	up.Release()
	if got := m.Live(); got != 0 {
		t.Errorf("Live() = %d, want 0", got)
	}
	if got := m.Instantiated("glupload"); got != 1 {
		t.Errorf("Instantiated(glupload) = %d, want 1", got)
	}
}

func TestMemoryStrictProperties(t *testing.T) {
	m := NewMemory(FactorySpec{
		Name:       "rtph264pay",
		Properties: map[string]any{"mtu": uint32(1400), "config-interval": 0},
	})
	pay, _ := m.Instantiate("rtph264pay", "pay")

	if v, _ := pay.Get("mtu"); v != uint32(1400) {
		t.Errorf("default mtu = %v, want 1400", v)
	}
	if err := pay.Set("config-interval", 1); err != nil {
		t.Fatalf("Set(config-interval): %v", err)
	}
	if err := pay.Set("bitrate", 1); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("Set(bitrate) error = %v, want ErrUnknownProperty", err)
	}

	pay.Release()
	if err := pay.Set("mtu", uint32(1200)); !errors.Is(err, ErrReleased) {
		t.Errorf("Set after Release = %v, want ErrReleased", err)
	}
}

func TestMemoryLink(t *testing.T) {
	m := NewMemory(
		FactorySpec{Name: "a"},
		FactorySpec{Name: "b"},
		FactorySpec{Name: "stubborn", RefuseLinks: true},
	)
	a, _ := m.Instantiate("a", "a0")
	b, _ := m.Instantiate("b", "b0")
	c, _ := m.Instantiate("stubborn", "c0")

	if err := m.Link(a, b); err != nil {
		t.Fatalf("Link(a, b): %v", err)
	}
	if err := m.Link(b, c); !errors.Is(err, ErrLinkRefused) {
		t.Errorf("Link(b, stubborn) = %v, want ErrLinkRefused", err)
	}

	links := m.Links()
	if len(links) != 1 || links[0] != (Link{Upstream: "a0", Downstream: "b0"}) {
		t.Errorf("Links() = %+v", links)
	}

	b.Release()
	if err := m.Link(a, b); !errors.Is(err, ErrReleased) {
		t.Errorf("Link to released stage = %v, want ErrReleased", err)
	}
	if links := m.Links(); len(links) != 0 {
		t.Errorf("Links() after release = %+v, want none", links)
	}
}

func TestMemoryReleaseDropsLinks(t *testing.T) {
	m := NewMemory(FactorySpec{Name: "a"}, FactorySpec{Name: "b"}, FactorySpec{Name: "c"})

	for i := 0; i < 100; i++ {
		a, _ := m.Instantiate("a", "a0")
		b, _ := m.Instantiate("b", "b0")
		c, _ := m.Instantiate("c", "c0")
		if err := m.Link(a, b); err != nil {
			t.Fatal(err)
		}
		if err := m.Link(b, c); err != nil {
			t.Fatal(err)
		}
		if got := len(m.Links()); got != 2 {
			t.Fatalf("iteration %d: %d links while live, want 2", i, got)
		}
		a.Release()
		b.Release()
		c.Release()
	}
	if got := len(m.Links()); got != 0 {
		t.Errorf("Links() after release = %d, want 0", got)
	}
	if got := m.Live(); got != 0 {
		t.Errorf("Live() = %d, want 0", got)
	}
}

func TestMemoryColorBalance(t *testing.T) {
	m := NewMemory(FactorySpec{
		Name: "glcolorbalance",
		Balance: []BalanceChannel{
			{Label: "SATURATION", Min: -1000, Max: 1000},
			{Label: "BRIGHTNESS", Min: 0, Max: 200},
		},
	})
	s, _ := m.Instantiate("glcolorbalance", "balance")
	cb, ok := s.(ColorBalance)
	if !ok {
		t.Fatal("balance stage does not implement ColorBalance")
	}
	if v, _ := cb.Balance("BRIGHTNESS"); v != 100 {
		t.Errorf("initial BRIGHTNESS = %d, want midpoint 100", v)
	}
	if err := cb.SetBalance("HUE", 1); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("SetBalance(HUE) = %v, want ErrUnknownChannel", err)
	}
}

func TestFindHelpers(t *testing.T) {
	m := NewMemory(FactorySpec{
		Name: "source-bin",
		Children: []FactorySpec{
			{Name: "video-source", Properties: map[string]any{"orientation": 0}},
			{Name: "nested", Children: []FactorySpec{
				{Name: "camera-balance", Balance: []BalanceChannel{{Label: "SATURATION", Min: 0, Max: 10}}},
				{Name: "window", Overlay: true},
			}},
		},
	})
	s, _ := m.Instantiate("source-bin", "source")
	bin := s.(Bin)

	if vs, ok := bin.ByName("video-source"); !ok || vs.Factory() != "video-source" {
		t.Errorf("ByName(video-source) = %v, %v", vs, ok)
	}
	if _, ok := bin.ByName("camera-balance"); !ok {
		t.Error("ByName should search nested bins")
	}
	if _, ok := FindColorBalance(s); !ok {
		t.Error("FindColorBalance did not find the nested balance")
	}
	ov, ok := FindOverlay(s)
	if !ok {
		t.Fatal("FindOverlay did not find the nested overlay")
	}
	ov.SetWindowHandle(0xbeef)
	if ov.WindowHandle() != 0xbeef {
		t.Errorf("WindowHandle() = %#x", ov.WindowHandle())
	}
}

func TestNamer(t *testing.T) {
	var n Namer
	if got := n.Next("renderer-bin-"); got != "renderer-bin-0" {
		t.Errorf("first name = %q", got)
	}
	if got := n.Next("pay_rtpvp8pay_"); got != "pay_rtpvp8pay_1" {
		t.Errorf("second name = %q", got)
	}
}
