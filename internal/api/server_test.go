package api

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/mediagraph/internal/api/models"
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/renderer"
)

const (
	testUser = "admin"
	testPass = "secret"
)

func testEngine() *engine.Memory {
	return engine.NewMemory(
		engine.FactorySpec{Name: capability.FactoryVP8Enc},
		engine.FactorySpec{Name: capability.FactoryVP8Dec},
		engine.FactorySpec{Name: capability.FactoryOpusEnc},
		engine.FactorySpec{Name: capability.FactoryH264Parse},
		engine.FactorySpec{Name: capability.FactoryAVDecH264},
		engine.FactorySpec{Name: renderer.FactoryUpload},
		engine.FactorySpec{Name: renderer.FactoryColorConvert},
		engine.FactorySpec{Name: renderer.FactoryColorBalance, Balance: []engine.BalanceChannel{
			{Label: "SATURATION", Min: 0, Max: 2000},
			{Label: "BRIGHTNESS", Min: -1000, Max: 600},
			{Label: "HUE", Min: -1000, Max: 1000},
		}},
		engine.FactorySpec{Name: renderer.FactoryFlip},
		engine.FactorySpec{Name: renderer.FactorySink, Overlay: true},
	)
}

type testServer struct {
	*Server
	eng *engine.Memory
	ts  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	eng := testEngine()
	s := NewServer(&Options{
		AuthUsername: testUser,
		AuthPassword: testPass,
		Query:        capability.NewQuery(eng, capability.Platform{OS: "linux"}),
		EventBus:     events.New(),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return &testServer{Server: s, eng: eng, ts: ts}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.SetBasicAuth(testUser, testPass)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is public", "/api/health", "", http.StatusOK},
		{"codecs need credentials", "/api/codecs", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/codecs", "Bearer abc", http.StatusUnauthorized},
		{"wrong password", "/api/codecs", "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:nope")), http.StatusUnauthorized},
		{"valid", "/api/codecs", "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret")), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, s.ts.URL+tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want == http.StatusUnauthorized && resp.Header.Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate")
			}
		})
	}
}

func TestListCodecs(t *testing.T) {
	s := newTestServer(t)

	var report capability.Report
	if code := s.do(t, http.MethodGet, "/api/codecs", nil, &report); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if report.Platform != "linux" || len(report.Codecs) != 6 {
		t.Fatalf("report = %+v", report)
	}
	vp8 := report.Codecs[4]
	if vp8.Codec != "VP8" || !vp8.Supported || vp8.Encoder != capability.FactoryVP8Enc {
		t.Errorf("vp8 = %+v", vp8)
	}
	h264 := report.Codecs[3]
	if h264.Supported || h264.Decoder != capability.FactoryAVDecH264 || h264.Parser != capability.FactoryH264Parse {
		t.Errorf("h264 = %+v", h264)
	}

	// Cached until refreshed.
	s.eng.Register(engine.FactorySpec{Name: capability.FactoryX264Enc})
	s.do(t, http.MethodGet, "/api/codecs", nil, &report)
	if report.Codecs[3].Supported {
		t.Error("cached report changed without refresh")
	}
	s.do(t, http.MethodGet, "/api/codecs?refresh=true", nil, &report)
	if !report.Codecs[3].Supported || report.Codecs[3].Encoder != capability.FactoryX264Enc {
		t.Errorf("refreshed h264 = %+v", report.Codecs[3])
	}
}

func TestNegotiate(t *testing.T) {
	s := newTestServer(t)

	var data models.NegotiateData
	code := s.do(t, http.MethodPost, "/api/negotiate", map[string]any{
		"codec":        "VP8",
		"payload_type": 96,
		"width":        640,
		"height":       480,
		"framerate":    15,
		"nack_pli":     true,
	}, &data)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !data.Supported || !strings.HasPrefix(data.RTPCaps, "application/x-rtp, encoding-name=(string)VP8") {
		t.Errorf("description = %+v", data.Description)
	}
	if data.Encoder == nil {
		t.Fatal("no encoder")
	}
	if data.Encoder.Implementation != capability.FactoryVP8Enc || data.Encoder.Bitrate != 460800 {
		t.Errorf("encoder = %+v", data.Encoder)
	}
	if data.Encoder.FFmpegEncoder != "libvpx" {
		t.Errorf("ffmpeg encoder = %q", data.Encoder.FFmpegEncoder)
	}
	if v, ok := data.Encoder.Properties["target-bitrate"].(float64); !ok || v != 460800 {
		t.Errorf("target-bitrate = %v", data.Encoder.Properties["target-bitrate"])
	}

	// The stage backing the answer is gone.
	if live := s.eng.Live(); live != 0 {
		t.Errorf("live stages after negotiate: %v", live)
	}
}

func TestNegotiateWithoutEncoder(t *testing.T) {
	s := newTestServer(t)

	var data models.NegotiateData
	if code := s.do(t, http.MethodPost, "/api/negotiate", map[string]any{"codec": "VP9", "payload_type": 98}, &data); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if data.Encoder != nil || data.Warning == "" || data.Supported {
		t.Errorf("data = %+v", data)
	}
}

func TestNegotiateRejectsBadPayloads(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown codec", map[string]any{"codec": "h265", "payload_type": 96}},
		{"rtx out of range", map[string]any{"codec": "vp8", "payload_type": 96, "rtx_payload_type": 20}},
		{"clock rate", map[string]any{"codec": "vp8", "payload_type": 96, "clock_rate": 100000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := s.do(t, http.MethodPost, "/api/negotiate", tt.body, nil); code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
		})
	}
}

func TestRenderPlan(t *testing.T) {
	s := newTestServer(t)

	var data models.RenderPlanData
	code := s.do(t, http.MethodPost, "/api/render-plan", map[string]any{
		"source":   map[string]any{"codec": "H264"},
		"settings": map[string]any{"rotation": 1, "disabled": true},
		"input":    "udp://0.0.0.0:5000",
		"title":    "preview",
	}, &data)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	wantStages := []string{"h264parse", "avdec_h264", "glupload", "glcolorconvert", "glcolorbalance", "glvideoflip", "glimagesink"}
	if strings.Join(data.Stages, ",") != strings.Join(wantStages, ",") {
		t.Errorf("stages = %v", data.Stages)
	}
	if data.FilterChain != "format=yuv420p,eq=saturation=0:brightness=-1,transpose=clock" {
		t.Errorf("filter chain = %s", data.FilterChain)
	}
	want := `ffmpeg -hide_banner -c:v h264 -i udp://0.0.0.0:5000 -vf "format=yuv420p,eq=saturation=0:brightness=-1,transpose=clock" -f sdl preview`
	if data.Command != want {
		t.Errorf("command =\n%s\nwant\n%s", data.Command, want)
	}
	if live := s.eng.Live(); live != 0 {
		t.Errorf("plan left stages alive: %v", live)
	}
}

func TestRenderPlanDowngrades(t *testing.T) {
	s := newTestServer(t)
	s.eng.Unregister(renderer.FactoryFlip)

	var data models.RenderPlanData
	if code := s.do(t, http.MethodPost, "/api/render-plan", map[string]any{"source": map[string]any{}}, &data); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(data.Downgrades) != 1 || data.Downgrades[0].Stage != renderer.OptionalOrientation {
		t.Errorf("downgrades = %+v", data.Downgrades)
	}

	if code := s.do(t, http.MethodPost, "/api/render-plan", map[string]any{"source": map[string]any{"codec": "opus"}}, nil); code != http.StatusBadRequest {
		t.Errorf("audio source status = %d, want 400", code)
	}
	if code := s.do(t, http.MethodPost, "/api/render-plan", map[string]any{"source": map[string]any{"codec": "VP9"}}, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("missing decoder status = %d, want 422", code)
	}
}

func TestTaggedRendererFollowsWindow(t *testing.T) {
	s := newTestServer(t)

	var created models.RendererData
	code := s.do(t, http.MethodPost, "/api/renderers", map[string]any{
		"tag":    "main",
		"source": map[string]any{},
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if len(created.Stages) != 0 {
		t.Errorf("tagged renderer built before its window: %v", created.Stages)
	}

	var window models.WindowData
	if code := s.do(t, http.MethodPut, "/api/windows/main", map[string]any{"handle": 42}, &window); code != http.StatusOK {
		t.Fatalf("set window status = %d", code)
	}
	if window.Handle != 42 || len(window.Renderers) != 1 || window.Renderers[0] != created.ID {
		t.Errorf("window = %+v", window)
	}

	get := func() models.RendererData {
		var list models.RendererListResponse
		s.do(t, http.MethodGet, "/api/renderers", nil, &list.Body)
		if list.Body.Count != 1 {
			t.Fatalf("renderers = %+v", list.Body)
		}
		return list.Body.Renderers[0]
	}
	waitFor(t, "graph after window", func() bool { return len(get().Stages) == 5 })

	var updated models.RendererData
	if code := s.do(t, http.MethodPatch, "/api/renderers/"+created.ID, map[string]any{"width": 1280, "max_framerate": 30}, &updated); code != http.StatusOK {
		t.Fatalf("patch status = %d", code)
	}
	if updated.Caps != "video/x-raw(ANY), width=(int)1280, framerate=(fraction)30/1" {
		t.Errorf("caps = %s", updated.Caps)
	}
	if code := s.do(t, http.MethodPatch, "/api/renderers/"+created.ID, map[string]any{"rotation": 7}, nil); code != http.StatusBadRequest {
		t.Errorf("rotation 7 status = %d", code)
	}
	if code := s.do(t, http.MethodPatch, "/api/renderers/"+created.ID, map[string]any{"max_framerate": -5}, nil); code != http.StatusBadRequest {
		t.Errorf("max_framerate -5 status = %d", code)
	}

	if code := s.do(t, http.MethodDelete, "/api/windows/main", nil, nil); code != http.StatusNoContent {
		t.Fatalf("revoke status = %d", code)
	}
	waitFor(t, "teardown after revoke", func() bool { return len(get().Stages) == 0 })

	if code := s.do(t, http.MethodDelete, "/api/windows/main", nil, nil); code != http.StatusNotFound {
		t.Errorf("second revoke status = %d", code)
	}
	if code := s.do(t, http.MethodDelete, "/api/renderers/"+created.ID, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d", code)
	}
	if code := s.do(t, http.MethodPatch, "/api/renderers/"+created.ID, map[string]any{"mirror": true}, nil); code != http.StatusNotFound {
		t.Errorf("patch after delete status = %d", code)
	}
	if live := s.eng.Live(); live != 0 {
		t.Errorf("live stages after delete: %v", live)
	}
}

func TestEventStream(t *testing.T) {
	s := newTestServer(t)

	credentials := base64.StdEncoding.EncodeToString([]byte(testUser + ":" + testPass))
	resp, err := http.Get(fmt.Sprintf("%s/api/events?auth=%s", s.ts.URL, credentials))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("content type = %s", resp.Header.Get("Content-Type"))
	}

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	// The subscription is set up after the response headers; keep
	// announcing until one arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				s.registry.SetHandle("preview", 7)
			}
		}
	}()

	timeout := time.After(2 * time.Second)
	var sawEvent bool
	for {
		select {
		case line := <-lines:
			if line == "event: window-handle" {
				sawEvent = true
				continue
			}
			if sawEvent && strings.HasPrefix(line, "data:") {
				if !strings.Contains(line, `"tag":"preview"`) || !strings.Contains(line, `"handle":7`) {
					t.Errorf("data = %s", line)
				}
				return
			}
		case <-timeout:
			t.Fatal("no window-handle event")
		}
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	var stats struct {
		Rebuilds uint64 `json:"rebuilds"`
	}
	if code := s.do(t, http.MethodGet, "/api/stats", nil, &stats); code != http.StatusOK {
		t.Errorf("status = %d", code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, s.ts.URL+"/api/negotiate", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", resp.StatusCode, resp.Header)
	}
}
