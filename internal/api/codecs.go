package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediagraph/internal/api/models"
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/encoders"
	"github.com/smazurov/mediagraph/internal/ffmpeg"
	"github.com/smazurov/mediagraph/internal/media"
)

func (s *Server) registerCodecRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-codecs",
		Method:      http.MethodGet,
		Path:        "/api/codecs",
		Summary:     "List Codecs",
		Description: "Codec support table with the encoder, decoder and parser chosen for each codec",
		Tags:        []string{"codecs"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, input *models.CodecsRequest) (*models.CodecsResponse, error) {
		var (
			report capability.Report
			err    error
		)
		if input.Refresh {
			report, err = s.cache.Refresh()
		} else {
			report, err = s.cache.Report()
		}
		if err != nil {
			// The report is still valid when only persisting it failed.
			s.logger.Warn("Failed to store probe report", "error", err)
		}
		return &models.CodecsResponse{Body: report}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "negotiate-payload",
		Method:      http.MethodPost,
		Path:        "/api/negotiate",
		Summary:     "Negotiate Payload",
		Description: "Build the RTP, raw and encoded caps of a payload and select its encoder",
		Tags:        []string{"codecs"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422, 500},
	}, func(_ context.Context, input *models.NegotiateRequest) (*models.NegotiateResponse, error) {
		data, err := s.negotiate(input.Body.Payload)
		if err != nil {
			return nil, err
		}
		return &models.NegotiateResponse{Body: *data}, nil
	})
}

func (s *Server) negotiate(build func() (*media.Payload, error)) (*models.NegotiateData, error) {
	p, err := build()
	if err != nil {
		return nil, mediaError("Invalid payload", err)
	}

	desc, err := s.negotiator.Describe(p)
	if err != nil {
		return nil, mediaError("Negotiation failed", err)
	}
	data := &models.NegotiateData{Description: *desc}

	enc, err := s.selector.SelectEncoder(p)
	if errors.Is(err, media.ErrNoEncoderAvailable) {
		data.Warning = err.Error()
		return data, nil
	}
	if err != nil {
		return nil, mediaError("Encoder selection failed", err)
	}
	// The stage only backs this answer.
	defer enc.Release()

	data.Encoder = encoderData(enc, p)
	return data, nil
}

func encoderData(enc *encoders.Encoder, p *media.Payload) *models.EncoderData {
	d := &models.EncoderData{
		Implementation: enc.Implementation,
		Stage:          enc.Stage.Name(),
		Bitrate:        p.Bitrate(),
		Properties:     enc.Stage.Properties(),
	}
	if name, args, err := ffmpeg.EncoderArgs(enc.Stage); err == nil {
		d.FFmpegEncoder = name
		d.FFmpegArgs = args
	}
	return d
}
