package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/config"
	"github.com/smazurov/mediagraph/internal/ffmpeg"
	"github.com/smazurov/mediagraph/internal/logging"
	"github.com/smazurov/mediagraph/internal/media"
	"github.com/smazurov/mediagraph/internal/process"
	"github.com/smazurov/mediagraph/internal/renderer"
	"github.com/spf13/cobra"
)

// renderFile is the TOML form of renderer settings.
//
//	width = 1280
//	rotation = 1
//	disabled = false
type renderFile struct {
	Width        uint32  `toml:"width"`
	Height       uint32  `toml:"height"`
	MaxFramerate float64 `toml:"max_framerate"`
	Rotation     uint8   `toml:"rotation"`
	Mirror       bool    `toml:"mirror"`
	Disabled     bool    `toml:"disabled"`
}

// loadRenderSettings reads renderer settings from a TOML file.
func loadRenderSettings(path string) (media.RendererSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return media.RendererSettings{}, fmt.Errorf("failed to read render settings %s: %w", path, err)
	}
	var f renderFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return media.RendererSettings{}, fmt.Errorf("failed to parse render settings %s: %w", path, err)
	}
	s := media.RendererSettings{
		Width:        f.Width,
		Height:       f.Height,
		MaxFramerate: f.MaxFramerate,
		Rotation:     f.Rotation,
		Mirror:       f.Mirror,
		Disabled:     f.Disabled,
	}
	return s, s.Validate()
}

// renderPlan is a built render graph and the ffmpeg command that runs it.
type renderPlan struct {
	graph  *renderer.Graph
	params *ffmpeg.Params
}

func (rp *renderPlan) command() string {
	return ffmpeg.BuildCommand(rp.params)
}

type planner struct {
	builder  *renderer.Builder
	source   capability.Source
	binary   string
	logLevel string
	input    string
	title    string
}

// plan builds the graph for settings and renders it as a command. The graph
// stages are released before returning; only their description is kept.
func (p *planner) plan(settings media.RendererSettings) (*renderPlan, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	g, err := p.builder.Build(p.builder.Query().Capabilities(p.source), settings)
	if err != nil {
		return nil, err
	}
	defer g.Release()

	title := p.title
	if title == "" {
		title = g.Name
	}
	params, err := ffmpeg.RenderPlan(g.Stages, p.input, title)
	if err != nil {
		return nil, err
	}
	params.Binary = p.binary
	params.LogLevel = p.logLevel
	return &renderPlan{graph: g, params: params}, nil
}

func printPlan(w io.Writer, rp *renderPlan) {
	fmt.Fprintf(w, "Graph:   %s\n", rp.graph.Name)
	fmt.Fprintf(w, "Stages:  %s\n", strings.Join(rp.graph.Factories(), " ! "))
	for _, d := range rp.graph.Downgrades {
		fmt.Fprintf(w, "Skipped: %s (%s unavailable)\n", d.Stage, d.Factory)
	}
	filters := rp.params.VideoFilters
	if filters == "" {
		filters = "(none)"
	}
	fmt.Fprintf(w, "Filters: %s\n", filters)
	fmt.Fprintf(w, "Command: %s\n", rp.command())
}

// CreateRenderPlanCmd creates the render-plan command.
func CreateRenderPlanCmd() *cobra.Command {
	var (
		settings     media.RendererSettings
		codec        string
		hwBalance    bool
		hwOrient     bool
		binary       string
		input        string
		title        string
		settingsFile string
		run          bool
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:   "render-plan",
		Short: "Plan a render graph",
		Long: `Builds the render graph for a video source on the ffmpeg engine and prints its stages, ` +
			`the ffmpeg filter chain and the command that shows the source in a window. ` +
			`With --run the command is started; with --settings it is restarted whenever the settings file changes.`,
		Example: `  mediagraph render-plan --codec h264 --input udp://0.0.0.0:5000 --rotation 1
  mediagraph render-plan --codec vp8 --input cam.ivf --settings render.toml --run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initLogging(logLevel)
			logger := logging.GetLogger("renderer")

			src, err := capability.VideoSource(codec, hwBalance, hwOrient)
			if err != nil {
				return err
			}
			if settingsFile != "" {
				if settings, err = loadRenderSettings(settingsFile); err != nil {
					return err
				}
			}

			query, _, err := NewQuery(cmd.Context(), binary)
			if err != nil {
				return err
			}
			pl := &planner{
				builder: renderer.NewBuilder(query, nil),
				source:  src,
				binary:  binary,
				input:   input,
				title:   title,
			}
			if run {
				pl.logLevel = "level+info"
			}

			rp, err := pl.plan(settings)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), rp)
			if !run {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			proc := process.New("render", rp.command(), logger,
				process.WithLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLine))

			if settingsFile != "" {
				watcher := config.NewWatcher(settingsFile, loadRenderSettings, logger)
				watcher.OnReload(func(s media.RendererSettings) {
					next, err := pl.plan(s)
					if err != nil {
						logger.Warn("Keeping current render graph", "error", err)
						return
					}
					logger.Info("Render settings changed", "graph", next.graph.Name, "filters", next.params.VideoFilters)
					proc.Restart(next.command())
				})
				if err := watcher.Start(); err != nil {
					return fmt.Errorf("failed to watch %s: %w", settingsFile, err)
				}
				defer watcher.Stop()
			}

			if code := proc.Run(ctx); code != 0 && ctx.Err() == nil {
				return fmt.Errorf("ffmpeg exited with code %d", code)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&codec, "codec", "", "Source codec (H264, VP8, VP9), empty for raw video")
	f.BoolVar(&hwBalance, "hw-color-balance", false, "Source adjusts color itself")
	f.BoolVar(&hwOrient, "hw-orientation", false, "Source rotates and mirrors itself")
	f.Uint32Var(&settings.Width, "width", 0, "Preferred width")
	f.Uint32Var(&settings.Height, "height", 0, "Preferred height")
	f.Float64Var(&settings.MaxFramerate, "max-framerate", 0, "Maximum framerate")
	f.Uint8Var(&settings.Rotation, "rotation", 0, "Clockwise quarter turns (0-3)")
	f.BoolVar(&settings.Mirror, "mirror", false, "Mirror horizontally")
	f.BoolVar(&settings.Disabled, "disabled", false, "Desaturate and darken the picture")
	f.StringVar(&settingsFile, "settings", "", "TOML render settings, replaces the settings flags and is watched with --run")
	f.StringVar(&binary, "binary", "ffmpeg", "ffmpeg binary to probe and run")
	f.StringVarP(&input, "input", "i", "-", "ffmpeg input")
	f.StringVar(&title, "title", "", "Window title, defaults to the graph name")
	f.BoolVar(&run, "run", false, "Run the command")
	f.StringVar(&logLevel, "log-level", "warn", "Logging level (debug, info, warn, error)")
	return cmd
}
