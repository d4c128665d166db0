package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediagraph/internal/api/models"
)

func (s *Server) windowData(tag string) models.WindowData {
	handle, _ := s.registry.Handle(tag)
	renderers := s.registry.Renderers(tag)
	if renderers == nil {
		renderers = []string{}
	}
	return models.WindowData{
		Tag:       tag,
		Handle:    uint64(handle),
		Renderers: renderers,
	}
}

func (s *Server) registerWindowRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-windows",
		Method:      http.MethodGet,
		Path:        "/api/windows",
		Summary:     "List Windows",
		Description: "Display tags with their window handle and renderers",
		Tags:        []string{"windows"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.WindowListResponse, error) {
		resp := &models.WindowListResponse{}
		resp.Body.Windows = []models.WindowData{}
		for _, tag := range s.registry.Tags() {
			resp.Body.Windows = append(resp.Body.Windows, s.windowData(tag))
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-window",
		Method:      http.MethodPut,
		Path:        "/api/windows/{tag}",
		Summary:     "Set Window Handle",
		Description: "Announce the native window for a display tag; renderers waiting on it rebuild",
		Tags:        []string{"windows"},
		Security:    withAuth(),
		Errors:      []int{400, 401},
	}, func(_ context.Context, input *models.SetWindowRequest) (*models.WindowResponse, error) {
		s.registry.SetHandle(input.Tag, uintptr(input.Body.Handle))
		return &models.WindowResponse{Body: s.windowData(input.Tag)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "revoke-window",
		Method:        http.MethodDelete,
		Path:          "/api/windows/{tag}",
		Summary:       "Revoke Window Handle",
		Description:   "Withdraw the window of a display tag; its renderers tear down their graphs",
		Tags:          []string{"windows"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
	}, func(_ context.Context, input *models.WindowTagRequest) (*struct{}, error) {
		if _, ok := s.registry.Handle(input.Tag); !ok {
			return nil, huma.Error404NotFound("No window for tag " + input.Tag)
		}
		s.registry.Revoke(input.Tag)
		return nil, nil
	})
}
