package api

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediagraph/internal/api/models"
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/ffmpeg"
	"github.com/smazurov/mediagraph/internal/media"
	"github.com/smazurov/mediagraph/internal/renderer"
)

// rendererSet holds the renderers created through the API.
type rendererSet struct {
	mu    sync.Mutex
	byID  map[string]*renderer.Renderer
	specs map[string]models.RenderSourceData
}

func newRendererSet() *rendererSet {
	return &rendererSet{
		byID:  make(map[string]*renderer.Renderer),
		specs: make(map[string]models.RenderSourceData),
	}
}

func (rs *rendererSet) add(r *renderer.Renderer, src models.RenderSourceData) {
	rs.mu.Lock()
	rs.byID[r.ID()] = r
	rs.specs[r.ID()] = src
	rs.mu.Unlock()
}

func (rs *rendererSet) get(id string) (*renderer.Renderer, models.RenderSourceData, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.byID[id]
	return r, rs.specs[id], ok
}

func (rs *rendererSet) remove(id string) (*renderer.Renderer, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.byID[id]
	delete(rs.byID, id)
	delete(rs.specs, id)
	return r, ok
}

func (rs *rendererSet) ids() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	ids := make([]string, 0, len(rs.byID))
	for id := range rs.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (rs *rendererSet) closeAll() {
	for _, id := range rs.ids() {
		if r, ok := rs.remove(id); ok {
			r.Close()
		}
	}
}

func sourceFrom(d models.RenderSourceData) (capability.StaticSource, error) {
	return capability.VideoSource(d.Codec, d.HardwareColorBalance, d.HardwareOrientation)
}

func settingsFrom(d models.RenderSettingsData) media.RendererSettings {
	return media.RendererSettings{
		Width:        d.Width,
		Height:       d.Height,
		MaxFramerate: d.MaxFramerate,
		Rotation:     d.Rotation,
		Mirror:       d.Mirror,
		Disabled:     d.Disabled,
	}
}

func settingsData(s media.RendererSettings) models.RenderSettingsData {
	return models.RenderSettingsData{
		Width:        s.Width,
		Height:       s.Height,
		MaxFramerate: s.MaxFramerate,
		Rotation:     s.Rotation,
		Mirror:       s.Mirror,
		Disabled:     s.Disabled,
	}
}

func rendererData(r *renderer.Renderer, src models.RenderSourceData) models.RendererData {
	d := models.RendererData{
		ID:       r.ID(),
		Tag:      r.Tag(),
		Source:   src,
		Settings: settingsData(r.Settings()),
		Caps:     r.Caps().String(),
	}
	if g := r.Graph(); g != nil {
		d.Stages = g.Factories()
	}
	return d
}

func (s *Server) registerRenderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "render-plan",
		Method:      http.MethodPost,
		Path:        "/api/render-plan",
		Summary:     "Plan Render Graph",
		Description: "Build a render graph for a source and show it as an ffmpeg command",
		Tags:        []string{"render"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.RenderPlanRequest) (*models.RenderPlanResponse, error) {
		src, err := sourceFrom(input.Body.Source)
		if err != nil {
			return nil, mediaError("Invalid source", err)
		}
		settings := settingsFrom(input.Body.Settings)
		if err := settings.Validate(); err != nil {
			return nil, mediaError("Invalid settings", err)
		}

		g, err := s.builder.Build(s.builder.Query().Capabilities(src), settings)
		if err != nil {
			return nil, mediaError("Render graph failed", err)
		}
		defer g.Release()

		input.Body.Input = valueOr(input.Body.Input, "-")
		input.Body.Title = valueOr(input.Body.Title, g.Name)
		params, err := ffmpeg.RenderPlan(g.Stages, input.Body.Input, input.Body.Title)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("Graph cannot be rendered by ffmpeg", err)
		}

		data := models.RenderPlanData{
			Name:        g.Name,
			Stages:      g.Factories(),
			FilterChain: params.VideoFilters,
			Command:     ffmpeg.BuildCommand(params),
		}
		for _, d := range g.Downgrades {
			data.Downgrades = append(data.Downgrades, models.DowngradeData{Stage: d.Stage, Factory: d.Factory})
		}
		return &models.RenderPlanResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-renderers",
		Method:      http.MethodGet,
		Path:        "/api/renderers",
		Summary:     "List Renderers",
		Tags:        []string{"render"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.RendererListResponse, error) {
		resp := &models.RendererListResponse{}
		resp.Body.Renderers = []models.RendererData{}
		for _, id := range s.renderers.ids() {
			if r, src, ok := s.renderers.get(id); ok {
				resp.Body.Renderers = append(resp.Body.Renderers, rendererData(r, src))
			}
		}
		resp.Body.Count = len(resp.Body.Renderers)
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "create-renderer",
		Method:        http.MethodPost,
		Path:          "/api/renderers",
		Summary:       "Create Renderer",
		Description:   "Create a renderer; tagged renderers wait for the window of their tag",
		Tags:          []string{"render"},
		Security:      withAuth(),
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 422},
	}, func(_ context.Context, input *models.CreateRendererRequest) (*models.RendererResponse, error) {
		src, err := sourceFrom(input.Body.Source)
		if err != nil {
			return nil, mediaError("Invalid source", err)
		}
		settings := settingsFrom(input.Body.Settings)
		settings.Tag = input.Body.Tag

		r, err := renderer.New(s.builder, src, settings,
			renderer.WithRegistry(s.registry),
			renderer.WithEvents(s.eventBus))
		if err != nil {
			return nil, mediaError("Failed to create renderer", err)
		}
		s.renderers.add(r, input.Body.Source)
		return &models.RendererResponse{Body: rendererData(r, input.Body.Source)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-renderer",
		Method:      http.MethodPatch,
		Path:        "/api/renderers/{id}",
		Summary:     "Update Renderer",
		Description: "Change renderer settings; rotation, mirror and disabled apply to the live graph",
		Tags:        []string{"render"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 404},
	}, func(_ context.Context, input *models.UpdateRendererRequest) (*models.RendererResponse, error) {
		r, src, ok := s.renderers.get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("Renderer not found")
		}
		b := input.Body
		if b.Rotation != nil {
			if err := r.SetRotation(*b.Rotation); err != nil {
				return nil, mediaError("Invalid rotation", err)
			}
		}
		if b.Mirror != nil {
			r.SetMirror(*b.Mirror)
		}
		if b.Disabled != nil {
			r.SetDisabled(*b.Disabled)
		}
		if b.Width != nil {
			r.SetWidth(*b.Width)
		}
		if b.Height != nil {
			r.SetHeight(*b.Height)
		}
		if b.MaxFramerate != nil {
			if err := r.SetMaxFramerate(*b.MaxFramerate); err != nil {
				return nil, mediaError("Invalid max framerate", err)
			}
		}
		return &models.RendererResponse{Body: rendererData(r, src)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-renderer",
		Method:        http.MethodDelete,
		Path:          "/api/renderers/{id}",
		Summary:       "Delete Renderer",
		Tags:          []string{"render"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
	}, func(_ context.Context, input *models.RendererIDRequest) (*struct{}, error) {
		r, ok := s.renderers.remove(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("Renderer not found")
		}
		r.Close()
		return nil, nil
	})
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

