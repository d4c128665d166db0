package payload

import (
	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/smazurov/mediagraph/internal/events"
)

// Keyframe request kinds.
const (
	KeyframePLI = "pli"
	KeyframeFIR = "fir"
)

// keyframeInterceptorFactory publishes a KeyframeRequestEvent for every PLI
// and FIR the remote peer sends.
type keyframeInterceptorFactory struct {
	bus *events.Bus
}

func (f *keyframeInterceptorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return &keyframeInterceptor{bus: f.bus}, nil
}

type keyframeInterceptor struct {
	interceptor.NoOp
	bus *events.Bus
}

func (k *keyframeInterceptor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return &keyframeReader{reader: reader, bus: k.bus}
}

type keyframeReader struct {
	reader interceptor.RTCPReader
	bus    *events.Bus
}

func (r *keyframeReader) Read(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
	n, attr, err := r.reader.Read(b, a)
	if err != nil {
		return n, attr, err
	}

	packets, parseErr := rtcp.Unmarshal(b[:n])
	if parseErr != nil {
		return n, attr, err
	}
	for _, ev := range keyframeRequests(packets) {
		r.bus.Publish(ev)
	}
	return n, attr, err
}

// keyframeRequests extracts the keyframe requests from a compound RTCP packet.
func keyframeRequests(packets []rtcp.Packet) []events.KeyframeRequestEvent {
	var out []events.KeyframeRequestEvent
	for _, pkt := range packets {
		switch p := pkt.(type) {
		case *rtcp.PictureLossIndication:
			out = append(out, events.KeyframeRequestEvent{SSRC: p.MediaSSRC, Kind: KeyframePLI})
		case *rtcp.FullIntraRequest:
			for _, entry := range p.FIR {
				out = append(out, events.KeyframeRequestEvent{SSRC: entry.SSRC, Kind: KeyframeFIR})
			}
		}
	}
	return out
}
