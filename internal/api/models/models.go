package models

import (
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/metrics"
	"github.com/smazurov/mediagraph/internal/payload"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	Module    string `json:"module,omitempty" example:"github.com/smazurov/mediagraph" doc:"Main module path"`
	Modified  bool   `json:"modified" doc:"Built from a work tree with uncommitted changes"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Codec models
type CodecsRequest struct {
	Refresh bool `query:"refresh" doc:"Probe again instead of serving the cached report"`
}

type CodecsResponse struct {
	Body capability.Report
}

// Negotiation models
type NegotiateRequest struct {
	Body payload.Settings
}

type EncoderData struct {
	Implementation string         `json:"implementation" example:"vp8enc" doc:"Selected encoder implementation"`
	Stage          string         `json:"stage" example:"encoder_vp8enc_0" doc:"Name of the instantiated stage"`
	Bitrate        uint32         `json:"bitrate" example:"460800" doc:"Effective bitrate in bits per second"`
	Properties     map[string]any `json:"properties" doc:"Tuned encoder properties"`
	FFmpegEncoder  string         `json:"ffmpeg_encoder,omitempty" example:"libvpx" doc:"Matching ffmpeg encoder"`
	FFmpegArgs     []string       `json:"ffmpeg_args,omitempty" doc:"Matching ffmpeg encoder options"`
}

type NegotiateData struct {
	payload.Description
	Encoder *EncoderData `json:"encoder,omitempty" doc:"Encoder chosen for the payload"`
	Warning string       `json:"warning,omitempty" doc:"Why no encoder was chosen"`
}

type NegotiateResponse struct {
	Body NegotiateData
}

// Render graph models
type RenderSourceData struct {
	Codec                string `json:"codec,omitempty" example:"H264" doc:"Codec of the source, empty or raw for unencoded video"`
	HardwareColorBalance bool   `json:"hardware_color_balance,omitempty" doc:"Source adjusts color itself"`
	HardwareOrientation  bool   `json:"hardware_orientation,omitempty" doc:"Source rotates and mirrors itself"`
}

type RenderSettingsData struct {
	Width        uint32  `json:"width,omitempty" example:"1280" doc:"Preferred width"`
	Height       uint32  `json:"height,omitempty" example:"720" doc:"Preferred height"`
	MaxFramerate float64 `json:"max_framerate,omitempty" example:"30" doc:"Maximum framerate"`
	Rotation     uint8   `json:"rotation,omitempty" minimum:"0" maximum:"3" doc:"Clockwise quarter turns"`
	Mirror       bool    `json:"mirror,omitempty" doc:"Mirror horizontally"`
	Disabled     bool    `json:"disabled,omitempty" doc:"Desaturate and darken the picture"`
}

type DowngradeData struct {
	Stage   string `json:"stage" example:"orientation" doc:"Logical stage that was skipped"`
	Factory string `json:"factory" example:"glvideoflip" doc:"Unavailable factory"`
}

type RenderPlanRequest struct {
	Body struct {
		Source   RenderSourceData   `json:"source" doc:"Source capabilities"`
		Settings RenderSettingsData `json:"settings,omitempty" doc:"Renderer settings"`
		Input    string             `json:"input,omitempty" example:"udp://0.0.0.0:5000" doc:"ffmpeg input for the command"`
		Title    string             `json:"title,omitempty" example:"preview" doc:"Window title for the command"`
	}
}

type RenderPlanData struct {
	Name        string          `json:"name" example:"video-renderer-bin-0" doc:"Graph name"`
	Stages      []string        `json:"stages" doc:"Factories in link order"`
	Downgrades  []DowngradeData `json:"downgrades,omitempty" doc:"Optional stages that were skipped"`
	FilterChain string          `json:"filter_chain" example:"format=yuv420p,hflip" doc:"ffmpeg filter chain"`
	Command     string          `json:"command" doc:"ffmpeg command rendering the graph"`
}

type RenderPlanResponse struct {
	Body RenderPlanData
}

// Renderer models
type RendererData struct {
	ID       string             `json:"id" doc:"Renderer identifier"`
	Tag      string             `json:"tag,omitempty" example:"main-preview" doc:"Display tag"`
	Source   RenderSourceData   `json:"source" doc:"Source capabilities"`
	Settings RenderSettingsData `json:"settings" doc:"Current settings"`
	Caps     string             `json:"caps" doc:"Caps the renderer accepts"`
	Stages   []string           `json:"stages,omitempty" doc:"Factories of the live graph"`
}

type RendererResponse struct {
	Body RendererData
}

type RendererListResponse struct {
	Body struct {
		Renderers []RendererData `json:"renderers" doc:"Live renderers"`
		Count     int            `json:"count" doc:"Number of renderers"`
	}
}

type CreateRendererRequest struct {
	Body struct {
		Tag      string             `json:"tag,omitempty" example:"main-preview" doc:"Display tag; empty builds at once"`
		Source   RenderSourceData   `json:"source" doc:"Source capabilities"`
		Settings RenderSettingsData `json:"settings,omitempty" doc:"Initial settings"`
	}
}

type UpdateRendererRequest struct {
	ID   string `path:"id" doc:"Renderer identifier"`
	Body struct {
		Width        *uint32  `json:"width,omitempty" doc:"Preferred width"`
		Height       *uint32  `json:"height,omitempty" doc:"Preferred height"`
		MaxFramerate *float64 `json:"max_framerate,omitempty" doc:"Maximum framerate"`
		Rotation     *uint8   `json:"rotation,omitempty" doc:"Clockwise quarter turns"`
		Mirror       *bool    `json:"mirror,omitempty" doc:"Mirror horizontally"`
		Disabled     *bool    `json:"disabled,omitempty" doc:"Disabled look"`
	}
}

type RendererIDRequest struct {
	ID string `path:"id" doc:"Renderer identifier"`
}

// Window models
type WindowData struct {
	Tag       string   `json:"tag" example:"main-preview" doc:"Display tag"`
	Handle    uint64   `json:"handle" doc:"Native window handle, 0 when none"`
	Renderers []string `json:"renderers" doc:"Renderers waiting on or using the tag"`
}

type WindowListResponse struct {
	Body struct {
		Windows []WindowData `json:"windows" doc:"Known display tags"`
	}
}

type SetWindowRequest struct {
	Tag  string `path:"tag" doc:"Display tag"`
	Body struct {
		Handle uint64 `json:"handle" minimum:"1" doc:"Native window handle"`
	}
}

type WindowTagRequest struct {
	Tag string `path:"tag" doc:"Display tag"`
}

type WindowResponse struct {
	Body WindowData
}

// WebRTC models
type WebRTCOfferRequest struct {
	Codec            string `query:"codec" required:"true" example:"VP8" doc:"Video codec to send"`
	PayloadType      uint32 `query:"payload_type" default:"96" doc:"Video RTP payload type"`
	RTXPayloadType   int    `query:"rtx_payload_type" default:"-1" doc:"RTX payload type, -1 disables retransmission"`
	NackPLI          bool   `query:"nack_pli" doc:"Advertise loss recovery feedback"`
	CCMFIR           bool   `query:"ccm_fir" doc:"Advertise keyframe request feedback"`
	Adaptive         bool   `query:"adaptive" doc:"Enable congestion adaptation"`
	AudioCodec       string `query:"audio" example:"Opus" doc:"Optional audio codec to send"`
	AudioPayloadType uint32 `query:"audio_payload_type" default:"111" doc:"Audio RTP payload type"`
	RawBody          []byte `contentType:"application/sdp" doc:"SDP offer from browser"`
}

type WebRTCAnswerResponse struct {
	ContentType string `header:"Content-Type"`
	Location    string `header:"Location"`
	Ingest      string `header:"X-Ingest-URL" doc:"Where to send RTP for the session"`
	Body        []byte
}

type WebRTCSessionData struct {
	ID        string   `json:"id" doc:"Session identifier"`
	State     string   `json:"state" example:"connected" doc:"Peer connection state"`
	Ingest    string   `json:"ingest" example:"rtp://127.0.0.1:40000" doc:"Where to send RTP for the session"`
	Codecs    []string `json:"codecs" doc:"Codecs the session sends"`
	Forwarded uint64   `json:"forwarded" doc:"RTP packets sent to the peer"`
	Dropped   uint64   `json:"dropped" doc:"Ingested packets that were malformed or unroutable"`
}

type WebRTCSessionListResponse struct {
	Body struct {
		Sessions []WebRTCSessionData `json:"sessions" doc:"Live WebRTC sessions"`
	}
}

type WebRTCSessionIDRequest struct {
	ID string `path:"id" doc:"Session identifier"`
}

// Stats models
type StatsResponse struct {
	Body metrics.Snapshot
}
