package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/mediagraph/cmd"
	"github.com/smazurov/mediagraph/internal/api"
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/config"
	"github.com/smazurov/mediagraph/internal/encoders"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/logging"
	"github.com/smazurov/mediagraph/internal/metrics"
	"github.com/smazurov/mediagraph/internal/payload"
	"github.com/smazurov/mediagraph/internal/systemd"
	"github.com/smazurov/mediagraph/internal/windows"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Engine settings
	EngineBinary string `help:"ffmpeg binary probed for codec support" default:"ffmpeg" toml:"engine.binary" env:"ENGINE_BINARY"`

	// Capability settings
	CapabilityCacheFile string `help:"Codec probe cache" default:"codecs.toml" toml:"capability.cache_file" env:"CAPABILITY_CACHE_FILE"`

	// Encoder settings
	EncodersTuningFile string `help:"Encoder tuning overrides, reloaded on change" default:"tuning.toml" toml:"encoders.tuning_file" env:"ENCODERS_TUNING_FILE"`

	// WebRTC settings
	WebRTCIngestAddr string   `help:"UDP address each WebRTC session reads RTP from, port 0 picks one" default:"127.0.0.1:0" toml:"webrtc.ingest_addr" env:"WEBRTC_INGEST_ADDR"`
	WebRTCICEServers []string `help:"STUN or TURN URLs offered to WebRTC peers" toml:"webrtc.ice_servers" env:"WEBRTC_ICE_SERVERS"`

	// Observability settings
	MetricsPrometheusEnabled bool `help:"Enable Prometheus" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingCapability string `help:"Capability probing logging level" default:"info" toml:"logging.capability" env:"LOGGING_CAPABILITY"`
	LoggingEncoders   string `help:"Encoders logging level" default:"info" toml:"logging.encoders" env:"LOGGING_ENCODERS"`
	LoggingPayload    string `help:"Payload negotiation logging level" default:"info" toml:"logging.payload" env:"LOGGING_PAYLOAD"`
	LoggingRenderer   string `help:"Renderer logging level" default:"info" toml:"logging.renderer" env:"LOGGING_RENDERER"`
	LoggingWindows    string `help:"Window registry logging level" default:"info" toml:"logging.windows" env:"LOGGING_WINDOWS"`
	LoggingEngine     string `help:"ffmpeg engine and process output logging level" default:"info" toml:"logging.engine" env:"LOGGING_ENGINE"`
}

// newQuery answers capability questions from the probed ffmpeg, or from an
// empty in-memory engine when ffmpeg cannot be probed.
func newQuery(binary string, logger *slog.Logger) *capability.Query {
	query, _, err := cmd.NewQuery(context.Background(), binary)
	if err == nil {
		return query
	}
	logger.Warn("No usable ffmpeg, every codec will report unsupported", "error", err)
	return capability.NewQuery(engine.NewMemory(), capability.DetectPlatform())
}

func main() {
	var cli humacli.CLI

	// Create Huma CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingAPI,
				"capability": opts.LoggingCapability,
				"encoders":   opts.LoggingEncoders,
				"payload":    opts.LoggingPayload,
				"renderer":   opts.LoggingRenderer,
				"windows":    opts.LoggingWindows,
				"ffmpeg":     opts.LoggingEngine,
			},
		})

		logger := logging.GetLogger("main")

		var (
			server             *api.Server
			tuningWatcher      *config.Watcher[config.Tuning]
			unsubscribeMetrics func()
		)
		notifier := systemd.NewNotifier(logger)
		watchdogCtx, stopWatchdog := context.WithCancel(context.Background())

		// Subcommands share this hook, so probing waits until the server starts.
		hooks.OnStart(func() {
			// Create event bus for in-process event handling
			eventBus := events.New()
			unsubscribeMetrics = metrics.Subscribe(eventBus)

			query := newQuery(opts.EngineBinary, logger)
			cache := capability.NewCache(query, capability.NewFileStore(opts.CapabilityCacheFile))
			// Warm the probe cache so the first request is served from it
			if _, reportErr := cache.Report(); reportErr != nil {
				logger.Warn("Failed to store probe report", "error", reportErr)
			}

			selector := encoders.NewSelector(query, nil, eventBus)
			tuning, tuningErr := config.LoadTuning(opts.EncodersTuningFile)
			if tuningErr != nil {
				logger.Warn("Failed to load encoder tuning", "error", tuningErr)
			}
			selector.ApplyTuning(tuning)

			if _, statErr := os.Stat(opts.EncodersTuningFile); statErr == nil {
				tuningWatcher = config.NewWatcher(opts.EncodersTuningFile, config.LoadTuning, logging.GetLogger("encoders"))
				selector.WatchTuning(tuningWatcher)
				if startErr := tuningWatcher.Start(); startErr != nil {
					logger.Warn("Failed to watch encoder tuning", "error", startErr)
					tuningWatcher = nil
				}
			}

			apiOpts := &api.Options{
				AuthUsername: opts.AuthUsername,
				AuthPassword: opts.AuthPassword,
				Query:        query,
				Cache:        cache,
				Selector:     selector,
				Registry:     windows.NewRegistry(eventBus),
				EventBus:     eventBus,
				WebRTC: payload.SessionConfig{
					IngestAddr: opts.WebRTCIngestAddr,
					ICEServers: opts.WebRTCICEServers,
				},
			}
			if opts.MetricsPrometheusEnabled {
				apiOpts.PrometheusHandler = promhttp.Handler()
			}
			server = api.NewServer(apiOpts)

			logger.Info("Starting HTTP server", "port", opts.Port)
			notifier.Ready("listening on " + opts.Port)
			go notifier.Watchdog(watchdogCtx)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			stopWatchdog()
			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			if tuningWatcher != nil {
				if stopErr := tuningWatcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping tuning watcher", "error", stopErr)
				}
			}
			if unsubscribeMetrics != nil {
				unsubscribeMetrics()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateNegotiateCmd())
	cli.Root().AddCommand(cmd.CreateRenderPlanCmd())

	// Run the CLI
	cli.Run()
}
