package payload

import (
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/smazurov/mediagraph/internal/events"
)

func TestKeyframeRequests(t *testing.T) {
	packets := []rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: 1111},
		&rtcp.ReceiverReport{SSRC: 5},
		&rtcp.FullIntraRequest{FIR: []rtcp.FIREntry{{SSRC: 2222}, {SSRC: 3333}}},
	}
	got := keyframeRequests(packets)
	want := []events.KeyframeRequestEvent{
		{SSRC: 1111, Kind: KeyframePLI},
		{SSRC: 2222, Kind: KeyframeFIR},
		{SSRC: 3333, Kind: KeyframeFIR},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d requests, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestKeyframeReaderPublishes(t *testing.T) {
	bus := events.New()
	received := make(chan events.KeyframeRequestEvent, 1)
	defer bus.Subscribe(func(e events.KeyframeRequestEvent) { received <- e })()

	raw, err := rtcp.Marshal([]rtcp.Packet{&rtcp.PictureLossIndication{SenderSSRC: 1, MediaSSRC: 4242}})
	if err != nil {
		t.Fatal(err)
	}

	factory := &keyframeInterceptorFactory{bus: bus}
	ic, err := factory.NewInterceptor("")
	if err != nil {
		t.Fatal(err)
	}
	reader := ic.BindRTCPReader(interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		return copy(b, raw), a, nil
	}))

	buf := make([]byte, 1500)
	n, _, err := reader.Read(buf, interceptor.Attributes{})
	if err != nil || n != len(raw) {
		t.Fatalf("Read = %d, %v", n, err)
	}

	select {
	case e := <-received:
		if e.SSRC != 4242 || e.Kind != KeyframePLI {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no KeyframeRequestEvent")
	}
}
