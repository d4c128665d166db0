package api

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/smazurov/mediagraph/internal/api/models"
)

func (s *testServer) offer(t *testing.T, query, sdp string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.ts.URL+"/api/webrtc?"+query, strings.NewReader(sdp))
	if err != nil {
		t.Fatal(err)
	}
	req.SetBasicAuth(testUser, testPass)
	req.Header.Set("Content-Type", "application/sdp")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func videoOffer(t *testing.T) string {
	t.Helper()
	pc, err := pion.NewPeerConnection(pion.Configuration{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	if _, err := pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{Direction: pion.RTPTransceiverDirectionRecvonly}); err != nil {
		t.Fatal(err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	gathered := pion.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatal(err)
	}
	select {
	case <-gathered:
	case <-time.After(5 * time.Second):
	}
	return pc.LocalDescription().SDP
}

func TestWebRTCSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	resp, answer := s.offer(t, "codec=VP8&nack_pli=true", videoOffer(t))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body %s", resp.StatusCode, answer)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/sdp" {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(answer, "VP8/90000") {
		t.Errorf("answer does not carry VP8:\n%s", answer)
	}
	if ingest := resp.Header.Get("X-Ingest-URL"); !strings.HasPrefix(ingest, "rtp://127.0.0.1:") {
		t.Errorf("ingest = %q", ingest)
	}
	location := resp.Header.Get("Location")
	if !strings.HasPrefix(location, "/api/webrtc/") {
		t.Fatalf("location = %q", location)
	}

	var list models.WebRTCSessionListResponse
	if code := s.do(t, http.MethodGet, "/api/webrtc", nil, &list.Body); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Body.Sessions) != 1 {
		t.Fatalf("sessions = %+v, want one", list.Body.Sessions)
	}
	got := list.Body.Sessions[0]
	if "/api/webrtc/"+got.ID != location || len(got.Codecs) != 1 || got.Codecs[0] != "VP8" {
		t.Errorf("session = %+v", got)
	}

	if code := s.do(t, http.MethodDelete, location, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete status = %d", code)
	}
	if code := s.do(t, http.MethodDelete, location, nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", code)
	}
	if code := s.do(t, http.MethodGet, "/api/webrtc", nil, &list.Body); code != http.StatusOK || len(list.Body.Sessions) != 0 {
		t.Errorf("after delete: status %d, sessions %+v", code, list.Body.Sessions)
	}
}

func TestWebRTCOfferRejected(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		query string
		sdp   string
	}{
		{"unknown codec", "codec=h265", "v=0"},
		{"audio as video", "codec=opus", "v=0"},
		{"video as audio", "codec=vp8&audio=vp9", "v=0"},
		{"rtx out of range", "codec=vp8&rtx_payload_type=20", "v=0"},
		{"garbage offer", "codec=vp8", "not an offer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.offer(t, tt.query, tt.sdp)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", resp.StatusCode, body)
			}
		})
	}
}
