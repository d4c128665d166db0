package payload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/media"
)

// Session defaults.
const (
	DefaultIngestAddr    = "127.0.0.1:0"
	DefaultGatherTimeout = 5 * time.Second

	// ingestBufferSize fits any RTP packet ffmpeg sends with its default
	// pkt_size of 1472.
	ingestBufferSize = 2048
)

// ErrNoTrack means an RTP packet matched none of the session's tracks.
var ErrNoTrack = errors.New("no track for payload type")

// SessionConfig configures a WebRTC session.
type SessionConfig struct {
	// ICEServers are STUN or TURN URLs, empty for host candidates only.
	ICEServers []string
	// IngestAddr is the UDP address the session reads RTP from.
	IngestAddr    string
	GatherTimeout time.Duration
}

// Session is one WebRTC peer receiving the negotiated payloads. RTP sent to
// its ingest address is forwarded to the track with the matching payload
// type, so `ffmpeg ... -f rtp rtp://<ingest>` feeds the browser directly.
type Session struct {
	id       string
	pc       *pion.PeerConnection
	tracks   map[uint8]*pion.TrackLocalStaticRTP
	payloads []*media.Payload
	ingest   net.PacketConn
	answer   string
	logger   *slog.Logger

	forwarded atomic.Uint64
	dropped   atomic.Uint64

	mu      sync.Mutex
	onClose []func()
	closed  bool
	done    chan struct{}
}

// NewSession answers offer with a peer connection built by NewAPI, sending
// one track per payload, and starts forwarding RTP from the ingest address.
func (n *Negotiator) NewSession(ctx context.Context, payloads []*media.Payload, bus *events.Bus, offer string, cfg SessionConfig) (*Session, error) {
	if len(payloads) == 0 {
		return nil, media.NewError(media.ErrCodeInvalidSetting, "session needs at least one payload", nil)
	}
	if cfg.IngestAddr == "" {
		cfg.IngestAddr = DefaultIngestAddr
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = DefaultGatherTimeout
	}

	api, err := n.NewAPI(payloads, bus)
	if err != nil {
		return nil, err
	}
	var iceServers []pion.ICEServer
	if len(cfg.ICEServers) > 0 {
		iceServers = []pion.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := api.NewPeerConnection(pion.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	s := &Session{
		id:       core.RandString(8, 10),
		pc:       pc,
		tracks:   make(map[uint8]*pion.TrackLocalStaticRTP, len(payloads)),
		payloads: payloads,
		done:     make(chan struct{}),
	}
	s.logger = n.logger.With("session_id", s.id)

	if err := s.negotiate(ctx, n, offer, cfg.GatherTimeout); err != nil {
		_ = pc.Close()
		return nil, err
	}

	ingest, err := net.ListenPacket("udp", cfg.IngestAddr)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("failed to listen for rtp on %s: %w", cfg.IngestAddr, err)
	}
	s.ingest = ingest

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		s.logger.Debug("Peer connection state changed", "state", state.String())
		switch state {
		case pion.PeerConnectionStateFailed, pion.PeerConnectionStateClosed:
			_ = s.Close()
		}
	})
	go s.forward()

	s.logger.Info("WebRTC session started", "payloads", len(payloads), "ingest", s.IngestURL())
	return s, nil
}

func (s *Session) negotiate(ctx context.Context, n *Negotiator, offer string, gatherTimeout time.Duration) error {
	if err := s.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offer}); err != nil {
		return media.NewError(media.ErrCodeInvalidSetting, "invalid sdp offer", err)
	}

	for _, p := range s.payloads {
		params, err := n.CodecParameters(p)
		if err != nil {
			return err
		}
		track, err := pion.NewTrackLocalStaticRTP(params.RTPCodecCapability, p.MediaType().String(), "mediagraph-"+s.id)
		if err != nil {
			return fmt.Errorf("failed to create %s track: %w", p.CodecType(), err)
		}
		sender, err := s.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("failed to add %s track: %w", p.CodecType(), err)
		}
		s.tracks[uint8(p.PayloadType())] = track
		// Interceptors only see the remote's RTCP while something reads it.
		go drainRTCP(sender)
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	gathered := pion.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set answer: %w", err)
	}

	timer := time.NewTimer(gatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		s.logger.Warn("ICE gathering timed out, answering with the candidates found so far")
	case <-ctx.Done():
		return ctx.Err()
	}
	s.answer = s.pc.LocalDescription().SDP
	return nil
}

func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (s *Session) forward() {
	buf := make([]byte, ingestBufferSize)
	for {
		n, _, err := s.ingest.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("RTP ingest stopped", "error", err)
				_ = s.Close()
			}
			return
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			s.dropped.Add(1)
			continue
		}
		if err := s.WriteRTP(&pkt); err != nil {
			if s.dropped.Add(1) == 1 {
				s.logger.Warn("Dropping ingested RTP", "payload_type", pkt.PayloadType, "error", err)
			}
		}
	}
}

// WriteRTP sends pkt on the track negotiated for its payload type. With a
// single track every packet goes to it.
func (s *Session) WriteRTP(pkt *rtp.Packet) error {
	track, ok := s.track(pkt.PayloadType)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoTrack, pkt.PayloadType)
	}
	if err := track.WriteRTP(pkt); err != nil {
		return err
	}
	s.forwarded.Add(1)
	return nil
}

func (s *Session) track(pt uint8) (*pion.TrackLocalStaticRTP, bool) {
	if len(s.tracks) == 1 {
		for _, t := range s.tracks {
			return t, true
		}
	}
	t, ok := s.tracks[pt]
	return t, ok
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Answer returns the SDP answer with the gathered candidates.
func (s *Session) Answer() string { return s.answer }

// Payloads returns the payloads the session sends.
func (s *Session) Payloads() []*media.Payload { return s.payloads }

// IngestURL is where RTP for this session is accepted.
func (s *Session) IngestURL() string {
	if s.ingest == nil {
		return ""
	}
	return "rtp://" + s.ingest.LocalAddr().String()
}

// State returns the peer connection state.
func (s *Session) State() string { return s.pc.ConnectionState().String() }

// Forwarded returns how many RTP packets reached a track.
func (s *Session) Forwarded() uint64 { return s.forwarded.Load() }

// Dropped returns how many ingested packets were malformed or unroutable.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// OnClose registers fn to run once when the session closes.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		go fn()
		return
	}
	s.onClose = append(s.onClose, fn)
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the ingest and the peer connection. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	callbacks := s.onClose
	s.onClose = nil
	close(s.done)
	s.mu.Unlock()

	var errs []error
	if s.ingest != nil {
		errs = append(errs, s.ingest.Close())
	}
	errs = append(errs, s.pc.Close())
	for _, fn := range callbacks {
		fn()
	}
	s.logger.Info("WebRTC session closed", "forwarded", s.forwarded.Load(), "dropped", s.dropped.Load())
	return errors.Join(errs...)
}
