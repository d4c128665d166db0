package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smazurov/mediagraph/internal/config"
	"github.com/smazurov/mediagraph/internal/encoders"
	"github.com/smazurov/mediagraph/internal/ffmpeg"
	"github.com/smazurov/mediagraph/internal/media"
	"github.com/smazurov/mediagraph/internal/payload"
	"github.com/spf13/cobra"
)

// Negotiation is what the negotiate command reports.
type Negotiation struct {
	*payload.Description
	Encoder *NegotiatedEncoder `json:"encoder,omitempty"`
	Warning string             `json:"warning,omitempty"`
}

// NegotiatedEncoder is the encoder picked for the payload.
type NegotiatedEncoder struct {
	Implementation string         `json:"implementation"`
	Bitrate        uint32         `json:"bitrate"`
	Properties     map[string]any `json:"properties"`
	FFmpegEncoder  string         `json:"ffmpeg_encoder,omitempty"`
	FFmpegArgs     []string       `json:"ffmpeg_args,omitempty"`
}

// CreateNegotiateCmd creates the negotiate command.
func CreateNegotiateCmd() *cobra.Command {
	var (
		settings   payload.Settings
		rtx        int
		binary     string
		tuningFile string
		asJSON     bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Negotiate an RTP payload",
		Long: `Builds the RTP, raw and encoded caps of a payload and selects the encoder that would produce it. ` +
			`The matching ffmpeg encoder options are printed alongside.`,
		Example: `  mediagraph negotiate --codec vp8 --payload-type 96 --width 640 --height 480 --framerate 15 --nack-pli`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initLogging(logLevel)

			if rtx >= 0 {
				settings.RTXPayloadType = &rtx
			}
			p, err := settings.Payload()
			if err != nil {
				return err
			}

			query, _, err := NewQuery(cmd.Context(), binary)
			if err != nil {
				return err
			}
			selector := encoders.NewSelector(query, nil, nil)
			if tuningFile != "" {
				tuning, err := config.LoadTuning(tuningFile)
				if err != nil {
					return err
				}
				selector.ApplyTuning(tuning)
			}

			n, err := negotiate(payload.NewNegotiator(query), selector, p)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(n)
			}
			printNegotiation(cmd.OutOrStdout(), n)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&settings.Codec, "codec", "", "Codec (PCMU, PCMA, Opus, H264, VP8, VP9)")
	f.Uint32Var(&settings.PayloadType, "payload-type", 96, "RTP payload type")
	f.Uint32Var(&settings.ClockRate, "clock-rate", 0, "RTP clock rate, 0 for the codec default")
	f.Uint32Var(&settings.MTU, "mtu", 0, "Maximum RTP packet size")
	f.Uint32Var(&settings.Bitrate, "bitrate", 0, "Target bitrate in bits per second, 0 estimates one")
	f.IntVar(&rtx, "rtx-payload-type", -1, "RTX payload type (96-127), -1 disables")
	f.BoolVar(&settings.Adaptive, "adaptive", false, "Enable congestion adaptation")
	f.Uint32Var(&settings.Width, "width", 0, "Video width")
	f.Uint32Var(&settings.Height, "height", 0, "Video height")
	f.Float64Var(&settings.Framerate, "framerate", 0, "Video framerate")
	f.BoolVar(&settings.CCMFIR, "ccm-fir", false, "Advertise keyframe request feedback")
	f.BoolVar(&settings.NackPLI, "nack-pli", false, "Advertise loss recovery feedback")
	f.Uint32Var(&settings.Channels, "channels", 0, "Audio channels")
	f.Uint32Var(&settings.PTime, "ptime", 0, "Audio packetization time in milliseconds")
	f.StringVar(&binary, "binary", "ffmpeg", "ffmpeg binary to probe")
	f.StringVar(&tuningFile, "tuning", "", "Encoder tuning overrides file")
	f.BoolVar(&asJSON, "json", false, "Print JSON")
	f.StringVar(&logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("codec")
	return cmd
}

func negotiate(n *payload.Negotiator, selector *encoders.Selector, p *media.Payload) (*Negotiation, error) {
	desc, err := n.Describe(p)
	if err != nil {
		return nil, err
	}
	out := &Negotiation{Description: desc}

	enc, err := selector.SelectEncoder(p)
	if errors.Is(err, media.ErrNoEncoderAvailable) {
		out.Warning = err.Error()
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	defer enc.Release()

	out.Encoder = &NegotiatedEncoder{
		Implementation: enc.Implementation,
		Bitrate:        p.Bitrate(),
		Properties:     enc.Stage.Properties(),
	}
	if name, args, err := ffmpeg.EncoderArgs(enc.Stage); err == nil {
		out.Encoder.FFmpegEncoder = name
		out.Encoder.FFmpegArgs = args
	}
	return out, nil
}

func printNegotiation(w io.Writer, n *Negotiation) {
	fmt.Fprintf(w, "Codec:        %s (supported: %s)\n", n.Codec, yesNo(n.Supported))
	fmt.Fprintf(w, "RTP caps:     %s\n", n.RTPCaps)
	fmt.Fprintf(w, "Raw caps:     %s\n", n.RawCaps)
	fmt.Fprintf(w, "Encoded caps: %s\n", n.EncodedCaps)
	fmt.Fprintf(w, "WebRTC:       %s/%d", n.WebRTC.MimeType, n.WebRTC.ClockRate)
	if n.WebRTC.SDPFmtpLine != "" {
		fmt.Fprintf(w, " fmtp %s", n.WebRTC.SDPFmtpLine)
	}
	if len(n.WebRTC.Feedback) > 0 {
		fmt.Fprintf(w, " rtcp-fb [%s]", strings.Join(n.WebRTC.Feedback, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stream:       %s %s %s/%d pt %d\n", n.Stream.Kind, n.Stream.Direction, n.Stream.Codec, n.Stream.ClockRate, n.Stream.PayloadType)

	if n.Encoder == nil {
		fmt.Fprintf(w, "Encoder:      none (%s)\n", n.Warning)
		return
	}
	fmt.Fprintf(w, "Encoder:      %s at %d bps\n", n.Encoder.Implementation, n.Encoder.Bitrate)
	if n.Encoder.FFmpegEncoder != "" {
		fmt.Fprintf(w, "ffmpeg:       %s %s\n", n.Encoder.FFmpegEncoder, strings.Join(n.Encoder.FFmpegArgs, " "))
	}
}
