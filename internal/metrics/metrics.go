// Package metrics exports Prometheus counters for graph rebuilds, encoder
// selection and context requests, fed from the event bus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smazurov/mediagraph/internal/events"
)

var (
	rendererRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediagraph",
		Subsystem: "renderer",
		Name:      "rebuilds_total",
		Help:      "Render graph rebuilds by result",
	}, []string{"result"})

	rendererDowngrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediagraph",
		Subsystem: "renderer",
		Name:      "downgrades_total",
		Help:      "Optional render stages that could not be inserted",
	}, []string{"stage"})

	encoderSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediagraph",
		Subsystem: "encoder",
		Name:      "selections_total",
		Help:      "Encoders selected per codec and implementation",
	}, []string{"codec", "implementation"})

	encoderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediagraph",
		Subsystem: "encoder",
		Name:      "failures_total",
		Help:      "Encoder selections that found no instantiable candidate",
	}, []string{"codec"})

	contextRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediagraph",
		Subsystem: "context",
		Name:      "requests_total",
		Help:      "Context requests from render graphs by result",
	}, []string{"result"})

	keyframeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediagraph",
		Subsystem: "rtcp",
		Name:      "keyframe_requests_total",
		Help:      "PLI and FIR keyframe requests received",
	}, []string{"kind"})

	// Local mirror for the stats endpoint.
	snapshot   Snapshot
	snapshotMu sync.RWMutex
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Rebuilds          uint64 `json:"rebuilds" doc:"Successful render graph rebuilds"`
	RebuildFailures   uint64 `json:"rebuild_failures" doc:"Failed render graph rebuilds"`
	Downgrades        uint64 `json:"downgrades" doc:"Optional stages skipped"`
	EncoderSelections uint64 `json:"encoder_selections" doc:"Encoders selected"`
	EncoderFailures   uint64 `json:"encoder_failures" doc:"Selections with no encoder available"`
	ContextResolved   uint64 `json:"context_resolved" doc:"Context requests answered by a resolver"`
	ContextPassed     uint64 `json:"context_passed" doc:"Context requests passed to the parent scope"`
	KeyframeRequests  uint64 `json:"keyframe_requests" doc:"PLI and FIR requests received"`
}

// RecordRebuild counts one graph rebuild.
func RecordRebuild(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	rendererRebuilds.WithLabelValues(result).Inc()
	update(func(s *Snapshot) {
		if ok {
			s.Rebuilds++
		} else {
			s.RebuildFailures++
		}
	})
}

// RecordDowngrade counts one skipped optional stage.
func RecordDowngrade(stage string) {
	rendererDowngrades.WithLabelValues(stage).Inc()
	update(func(s *Snapshot) { s.Downgrades++ })
}

// RecordEncoderSelection counts one selected encoder.
func RecordEncoderSelection(codec, implementation string) {
	encoderSelections.WithLabelValues(codec, implementation).Inc()
	update(func(s *Snapshot) { s.EncoderSelections++ })
}

// RecordEncoderFailure counts one selection without an available encoder.
func RecordEncoderFailure(codec string) {
	encoderFailures.WithLabelValues(codec).Inc()
	update(func(s *Snapshot) { s.EncoderFailures++ })
}

// RecordContextRequest counts one context request.
func RecordContextRequest(resolved bool) {
	result := "passed"
	if resolved {
		result = "resolved"
	}
	contextRequests.WithLabelValues(result).Inc()
	update(func(s *Snapshot) {
		if resolved {
			s.ContextResolved++
		} else {
			s.ContextPassed++
		}
	})
}

// RecordKeyframeRequest counts one PLI or FIR.
func RecordKeyframeRequest(kind string) {
	keyframeRequests.WithLabelValues(kind).Inc()
	update(func(s *Snapshot) { s.KeyframeRequests++ })
}

// Current returns a copy of the counters.
func Current() Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

func update(fn func(*Snapshot)) {
	snapshotMu.Lock()
	fn(&snapshot)
	snapshotMu.Unlock()
}

// Subscribe feeds the counters from bus and returns a function that stops it.
func Subscribe(bus *events.Bus) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.GraphRebuiltEvent) { RecordRebuild(e.Error == "") }),
		bus.Subscribe(func(e events.CapabilityDowngradeEvent) { RecordDowngrade(e.Stage) }),
		bus.Subscribe(func(e events.EncoderSelectedEvent) { RecordEncoderSelection(e.Codec, e.Implementation) }),
		bus.Subscribe(func(e events.EncoderUnavailableEvent) { RecordEncoderFailure(e.Codec) }),
		bus.Subscribe(func(e events.ContextRequestEvent) { RecordContextRequest(e.Resolved) }),
		bus.Subscribe(func(e events.KeyframeRequestEvent) { RecordKeyframeRequest(e.Kind) }),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
