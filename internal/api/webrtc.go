package api

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/mediagraph/internal/api/models"
	"github.com/smazurov/mediagraph/internal/media"
	"github.com/smazurov/mediagraph/internal/payload"
)

// sessionSet holds the WebRTC sessions created through the API.
type sessionSet struct {
	mu   sync.Mutex
	byID map[string]*payload.Session
}

func newSessionSet() *sessionSet {
	return &sessionSet{byID: make(map[string]*payload.Session)}
}

func (ss *sessionSet) add(s *payload.Session) {
	ss.mu.Lock()
	ss.byID[s.ID()] = s
	ss.mu.Unlock()
}

func (ss *sessionSet) remove(id string) (*payload.Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.byID[id]
	delete(ss.byID, id)
	return s, ok
}

func (ss *sessionSet) list() []*payload.Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]*payload.Session, 0, len(ss.byID))
	for _, s := range ss.byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (ss *sessionSet) closeAll() {
	for _, s := range ss.list() {
		_ = s.Close()
	}
}

// offerPayloads builds the video payload and the optional audio payload an
// offer asks for.
func offerPayloads(in *models.WebRTCOfferRequest) ([]*media.Payload, error) {
	video := payload.Settings{
		Codec:       in.Codec,
		PayloadType: in.PayloadType,
		NackPLI:     in.NackPLI,
		CCMFIR:      in.CCMFIR,
		Adaptive:    in.Adaptive,
	}
	if in.RTXPayloadType != media.RTXDisabled {
		rtx := in.RTXPayloadType
		video.RTXPayloadType = &rtx
	}
	v, err := video.Payload()
	if err != nil {
		return nil, err
	}
	if v.MediaType() != media.MediaTypeVideo {
		return nil, media.NewError(media.ErrCodeInvalidSetting, "codec "+in.Codec+" is not a video codec", nil)
	}
	payloads := []*media.Payload{v}

	if in.AudioCodec != "" {
		a, err := payload.Settings{Codec: in.AudioCodec, PayloadType: in.AudioPayloadType}.Payload()
		if err != nil {
			return nil, err
		}
		if a.MediaType() != media.MediaTypeAudio {
			return nil, media.NewError(media.ErrCodeInvalidSetting, "codec "+in.AudioCodec+" is not an audio codec", nil)
		}
		payloads = append(payloads, a)
	}
	return payloads, nil
}

func sessionData(s *payload.Session) models.WebRTCSessionData {
	d := models.WebRTCSessionData{
		ID:        s.ID(),
		State:     s.State(),
		Ingest:    s.IngestURL(),
		Forwarded: s.Forwarded(),
		Dropped:   s.Dropped(),
	}
	for _, p := range s.Payloads() {
		d.Codecs = append(d.Codecs, p.CodecType().String())
	}
	return d
}

func (s *Server) registerWebRTCRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "webrtc-offer",
		Method:        http.MethodPost,
		Path:          "/api/webrtc",
		Summary:       "WebRTC Signaling",
		Description:   "Answer an SDP offer with the negotiated payloads; RTP sent to the returned ingest URL reaches the peer",
		Tags:          []string{"webrtc"},
		Security:      withAuth(),
		DefaultStatus: http.StatusCreated,
		Errors:        []int{400, 401, 500},
	}, func(ctx context.Context, input *models.WebRTCOfferRequest) (*models.WebRTCAnswerResponse, error) {
		payloads, err := offerPayloads(input)
		if err != nil {
			return nil, mediaError("Invalid payload", err)
		}

		sess, err := s.negotiator.NewSession(ctx, payloads, s.eventBus, string(input.RawBody), s.options.WebRTC)
		if err != nil {
			return nil, mediaError("WebRTC negotiation failed", err)
		}
		s.sessions.add(sess)
		sess.OnClose(func() { s.sessions.remove(sess.ID()) })

		return &models.WebRTCAnswerResponse{
			ContentType: "application/sdp",
			Location:    "/api/webrtc/" + sess.ID(),
			Ingest:      sess.IngestURL(),
			Body:        []byte(sess.Answer()),
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-webrtc-sessions",
		Method:      http.MethodGet,
		Path:        "/api/webrtc",
		Summary:     "List WebRTC Sessions",
		Tags:        []string{"webrtc"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.WebRTCSessionListResponse, error) {
		resp := &models.WebRTCSessionListResponse{}
		resp.Body.Sessions = []models.WebRTCSessionData{}
		for _, sess := range s.sessions.list() {
			resp.Body.Sessions = append(resp.Body.Sessions, sessionData(sess))
		}
		return resp, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-webrtc-session",
		Method:        http.MethodDelete,
		Path:          "/api/webrtc/{id}",
		Summary:       "Close WebRTC Session",
		Tags:          []string{"webrtc"},
		Security:      withAuth(),
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{401, 404},
	}, func(_ context.Context, input *models.WebRTCSessionIDRequest) (*struct{}, error) {
		sess, ok := s.sessions.remove(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("Session not found")
		}
		_ = sess.Close()
		return nil, nil
	})
}
