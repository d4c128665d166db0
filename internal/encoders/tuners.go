package encoders

import (
	"log/slog"
	"math"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/media"
)

// Keyframe and rate control values shared by the libvpx encoders.
const (
	vpxEndUsageCBR      = 1
	vpxDeadlineRealtime = int64(1)
	vpxKeyframeDisable  = 0

	cpuUsedVP8Desktop = -6
	cpuUsedVP8Mobile  = -12
	cpuUsedVP9        = 3

	vtencQualityIPhone  = 0.0
	vtencQualityDefault = 0.5
)

var vpxTimebase = media.Fraction{Num: 1, Den: 90000}

func tuneNothing(engine.Stage, *media.Payload, capability.Platform, *slog.Logger) *media.Binding {
	return nil
}

func tuneOpenH264(enc engine.Stage, p *media.Payload, _ capability.Platform, logger *slog.Logger) *media.Binding {
	setAll(enc, logger,
		"gop-size", 0,
		"rate-control", "bitrate",
		"complexity", "low",
	)
	return bindBitrate(enc, p, "bitrate", bitsPerSecond, logger)
}

func tuneX264(enc engine.Stage, p *media.Payload, _ capability.Platform, logger *slog.Logger) *media.Binding {
	b := bindBitrate(enc, p, "bitrate", kilobitsPerSecond, logger)
	setAll(enc, logger,
		"speed-preset", "ultrafast",
		"tune", "fastdecode+zerolatency",
	)
	return b
}

func tuneVTEnc(enc engine.Stage, p *media.Payload, platform capability.Platform, logger *slog.Logger) *media.Binding {
	b := bindBitrate(enc, p, "bitrate", kilobitsPerSecond, logger)
	quality := vtencQualityDefault
	if platform.IPhone() {
		quality = vtencQualityIPhone
	}
	setAll(enc, logger,
		"allow-frame-reordering", false,
		"realtime", true,
		"quality", quality,
		"max-keyframe-interval", math.MaxInt32,
	)
	return b
}

// tuneGenericH264 assumes the implementation takes bits per second.
func tuneGenericH264(enc engine.Stage, p *media.Payload, _ capability.Platform, logger *slog.Logger) *media.Binding {
	return bindBitrate(enc, p, "bitrate", bitsPerSecond, logger)
}

func tuneVP8(enc engine.Stage, p *media.Payload, platform capability.Platform, logger *slog.Logger) *media.Binding {
	cpuUsed := cpuUsedVP8Desktop
	if platform.Mobile {
		cpuUsed = cpuUsedVP8Mobile
	}
	setAll(enc, logger,
		"end-usage", vpxEndUsageCBR,
		"deadline", vpxDeadlineRealtime,
		"cpu-used", cpuUsed,
		"min-quantizer", 2,
		"buffer-initial-size", 300,
		"buffer-optimal-size", 300,
		"buffer-size", 400,
		"dropframe-threshold", 30,
		"lag-in-frames", 0,
		"timebase", vpxTimebase,
		"error-resilient", 1,
		"keyframe-mode", vpxKeyframeDisable,
	)
	return bindBitrate(enc, p, "target-bitrate", bitsPerSecond, logger)
}

func tuneVP9(enc engine.Stage, p *media.Payload, _ capability.Platform, logger *slog.Logger) *media.Binding {
	setAll(enc, logger,
		"end-usage", vpxEndUsageCBR,
		"deadline", vpxDeadlineRealtime,
		"cpu-used", cpuUsedVP9,
		"min-quantizer", 2,
		"max-quantizer", 52,
		"buffer-initial-size", 500,
		"buffer-optimal-size", 600,
		"buffer-size", 1000,
		"dropframe-threshold", 30,
		"lag-in-frames", 0,
		"timebase", vpxTimebase,
		"error-resilient", 1,
		"resize-allowed", true,
		"keyframe-mode", vpxKeyframeDisable,
	)
	return bindBitrate(enc, p, "target-bitrate", bitsPerSecond, logger)
}

func bitsPerSecond(bitrate uint32) any { return bitrate }

func kilobitsPerSecond(bitrate uint32) any { return bitrate / 1000 }

// bindBitrate mirrors the payload bitrate onto property, converting units.
func bindBitrate(enc engine.Stage, p *media.Payload, property string, convert func(uint32) any, logger *slog.Logger) *media.Binding {
	return p.BindBitrate(func(bitrate uint32) {
		if err := enc.Set(property, convert(bitrate)); err != nil {
			logger.Warn("Failed to apply bitrate", "encoder", enc.Name(), "property", property, "error", err)
		}
	})
}

// setAll sets alternating property/value pairs, logging failures.
func setAll(enc engine.Stage, logger *slog.Logger, kv ...any) {
	for i := 0; i+1 < len(kv); i += 2 {
		property, _ := kv[i].(string)
		if err := enc.Set(property, kv[i+1]); err != nil {
			logger.Warn("Failed to tune encoder", "encoder", enc.Name(), "property", property, "error", err)
		}
	}
}
