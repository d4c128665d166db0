package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/mediagraph/internal/api/models"
	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/metrics"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Window handles, graph rebuilds, downgrades, context requests, encoder selection and keyframe requests",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"window-handle":        events.WindowHandleEvent{},
		"graph-rebuilt":        events.GraphRebuiltEvent{},
		"capability-downgrade": events.CapabilityDowngradeEvent{},
		"context-request":      events.ContextRequestEvent{},
		"encoder-selected":     events.EncoderSelectedEvent{},
		"encoder-unavailable":  events.EncoderUnavailableEvent{},
		"keyframe-request":     events.KeyframeRequestEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.WindowHandleEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.GraphRebuiltEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CapabilityDowngradeEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ContextRequestEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderSelectedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.EncoderUnavailableEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.KeyframeRequestEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

func (s *Server) registerStatsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Stats",
		Description: "Counters of rebuilds, downgrades, encoder selections and context requests",
		Tags:        []string{"metrics"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatsResponse, error) {
		return &models.StatsResponse{Body: metrics.Current()}, nil
	})
}
