package events

// Event type constants for kelindar/event.
const (
	TypeWindowHandle uint32 = iota + 1
	TypeGraphRebuilt
	TypeCapabilityDowngrade
	TypeContextRequest
	TypeEncoderSelected
	TypeEncoderUnavailable
	TypeKeyframeRequest
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// WindowHandleEvent announces that the window for a display tag became
// available (Handle != 0) or was revoked (Handle == 0).
type WindowHandleEvent struct {
	Tag    string  `json:"tag" example:"main-preview" doc:"Display tag"`
	Handle uintptr `json:"handle" doc:"Native window handle, 0 when revoked"`
}

// Type returns the event type identifier for WindowHandleEvent.
func (e WindowHandleEvent) Type() uint32 { return TypeWindowHandle }

// GraphRebuiltEvent reports the outcome of a renderer graph rebuild.
type GraphRebuiltEvent struct {
	RendererID string   `json:"renderer_id" doc:"Renderer instance identifier"`
	Tag        string   `json:"tag,omitempty" doc:"Display tag of the renderer"`
	Stages     []string `json:"stages,omitempty" doc:"Factory names in link order"`
	Error      string   `json:"error,omitempty" doc:"Failure description when the rebuild failed"`
}

// Type returns the event type identifier for GraphRebuiltEvent.
func (e GraphRebuiltEvent) Type() uint32 { return TypeGraphRebuilt }

// CapabilityDowngradeEvent reports an optional stage that could not be inserted.
type CapabilityDowngradeEvent struct {
	RendererID string `json:"renderer_id" doc:"Renderer instance identifier"`
	Stage      string `json:"stage" example:"orientation" doc:"Logical stage"`
	Factory    string `json:"factory" example:"glvideoflip" doc:"Factory that was unavailable"`
}

// Type returns the event type identifier for CapabilityDowngradeEvent.
func (e CapabilityDowngradeEvent) Type() uint32 { return TypeCapabilityDowngrade }

// ContextRequestEvent reports how a context request from a render graph was handled.
type ContextRequestEvent struct {
	RendererID  string `json:"renderer_id" doc:"Renderer instance identifier"`
	ContextType string `json:"context_type" example:"gst.gl.GLDisplay" doc:"Requested context type"`
	Resolved    bool   `json:"resolved" doc:"A resolver supplied the context"`
}

// Type returns the event type identifier for ContextRequestEvent.
func (e ContextRequestEvent) Type() uint32 { return TypeContextRequest }

// EncoderSelectedEvent reports the encoder chosen for a payload.
type EncoderSelectedEvent struct {
	Codec          string `json:"codec" example:"VP8" doc:"Codec"`
	Implementation string `json:"implementation" example:"vp8enc" doc:"Encoder implementation"`
	Bitrate        uint32 `json:"bitrate" example:"921600" doc:"Effective bitrate in bits per second"`
}

// Type returns the event type identifier for EncoderSelectedEvent.
func (e EncoderSelectedEvent) Type() uint32 { return TypeEncoderSelected }

// EncoderUnavailableEvent reports that no encoder candidate could be instantiated.
type EncoderUnavailableEvent struct {
	Codec string   `json:"codec" example:"VP9" doc:"Codec"`
	Tried []string `json:"tried" doc:"Candidates tried in order"`
}

// Type returns the event type identifier for EncoderUnavailableEvent.
func (e EncoderUnavailableEvent) Type() uint32 { return TypeEncoderUnavailable }

// KeyframeRequestEvent reports a PLI or FIR received for an outbound stream.
type KeyframeRequestEvent struct {
	SSRC uint32 `json:"ssrc" doc:"Media SSRC the request targets"`
	Kind string `json:"kind" example:"pli" doc:"pli or fir"`
}

// Type returns the event type identifier for KeyframeRequestEvent.
func (e KeyframeRequestEvent) Type() uint32 { return TypeKeyframeRequest }
