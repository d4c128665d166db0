// Package api exposes codec probing, payload negotiation, render graph
// planning and window handles over HTTP.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/mediagraph/internal/api/models"
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/encoders"
	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/logging"
	"github.com/smazurov/mediagraph/internal/media"
	"github.com/smazurov/mediagraph/internal/payload"
	"github.com/smazurov/mediagraph/internal/renderer"
	"github.com/smazurov/mediagraph/internal/version"
	"github.com/smazurov/mediagraph/internal/windows"
)

const authRealm = `Basic realm="mediagraph"`

// Options configures the API server. Query is required; the rest are
// created when nil.
type Options struct {
	AuthUsername      string
	AuthPassword      string
	Query             *capability.Query
	Cache             *capability.Cache
	Selector          *encoders.Selector
	Registry          *windows.Registry
	EventBus          *events.Bus
	WebRTC            payload.SessionConfig
	PrometheusHandler http.Handler // optional
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    *Options
	logger     *slog.Logger

	eventBus   *events.Bus
	cache      *capability.Cache
	selector   *encoders.Selector
	negotiator *payload.Negotiator
	builder    *renderer.Builder
	registry   *windows.Registry
	renderers  *rendererSet
	sessions   *sessionSet
}

// basicAuthMiddleware checks credentials on operations that declare security.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var encoded string
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
			encoded = header[len(prefix):]
		} else {
			// EventSource cannot set headers.
			encoded = ctx.Query("auth")
		}
		if encoded == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.unauthorized(ctx, "Invalid credentials format", err)
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok {
			s.unauthorized(ctx, "Invalid credentials format")
			return
		}
		if user != username || pass != password {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}
		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, msg string, errs ...error) {
	ctx.SetHeader("WWW-Authenticate", authRealm)
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
}

// NewServer creates the API server on a Go 1.22+ ServeMux.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	config := huma.DefaultConfig("mediagraph API", version.String())
	config.Info.Description = "Codec capability probing, RTP payload negotiation and render graph planning"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	if opts.EventBus == nil {
		opts.EventBus = events.New()
	}
	s := &Server{
		api:        api,
		mux:        mux,
		options:    opts,
		logger:     logging.GetLogger("api"),
		eventBus:   opts.EventBus,
		cache:      opts.Cache,
		selector:   opts.Selector,
		negotiator: payload.NewNegotiator(opts.Query),
		builder:    renderer.NewBuilder(opts.Query, nil),
		registry:   opts.Registry,
	}
	if s.cache == nil {
		s.cache = capability.NewCache(opts.Query, nil)
	}
	if s.selector == nil {
		s.selector = encoders.NewSelector(opts.Query, nil, opts.EventBus)
	}
	if s.registry == nil {
		s.registry = windows.NewRegistry(opts.EventBus)
	}
	s.renderers = newRendererSet()
	s.sessions = newSessionSet()

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// API returns the Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting mediagraph API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes live renderers and sessions, then the listener.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	s.renderers.closeAll()
	s.sessions.closeAll()
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				Module:    info.Module,
				Modified:  info.Modified,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerCodecRoutes()
	s.registerRenderRoutes()
	s.registerWindowRoutes()
	s.registerWebRTCRoutes()
	s.registerSSERoutes()
	s.registerStatsRoutes()
}

// withAuth returns the basic auth security requirement.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}

// mediaError maps coded media errors to HTTP errors.
func mediaError(msg string, err error) error {
	var me *media.Error
	if !errors.As(err, &me) {
		return huma.Error500InternalServerError(msg, err)
	}
	switch me.Code {
	case media.ErrCodeInvalidSetting, media.ErrCodeUnsupported:
		return huma.Error400BadRequest(msg, err)
	case media.ErrCodeNoEncoder, media.ErrCodeGraphLink:
		return huma.Error422UnprocessableEntity(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}
