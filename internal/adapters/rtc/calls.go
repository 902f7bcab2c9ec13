package rtc

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/domain"
)

var (
	ErrNoCall        = errors.New("no call with peer")
	ErrNoSignaler    = errors.New("no signaling channel")
	ErrUnknownSignal = errors.New("unknown signal type")
)

// Signaler carries negotiation steps to a peer through the room.
type Signaler interface {
	SendPeerSignal(to domain.SessionID, sig domain.PeerSignal) error
}

// CallManager keeps one Connection per remote player and feeds their
// audio into the registered sinks.
type CallManager struct {
	cfg webrtc.Configuration
	log zerolog.Logger

	mu       sync.Mutex
	local    webrtc.TrackLocal
	signaler Signaler
	onEnded  func(domain.SessionID)
	calls    map[domain.SessionID]*Connection
	relays   map[domain.SessionID]*Relay
	sinks    map[string]PacketSink
	muted    map[domain.SessionID]bool
}

func NewCallManager(cfg webrtc.Configuration) *CallManager {
	return &CallManager{
		cfg:    cfg,
		log:    log.With().Str("module", "calls").Logger(),
		calls:  make(map[domain.SessionID]*Connection),
		relays: make(map[domain.SessionID]*Relay),
		sinks:  make(map[string]PacketSink),
		muted:  make(map[domain.SessionID]bool),
	}
}

func (m *CallManager) SetSignaler(s Signaler) {
	m.mu.Lock()
	m.signaler = s
	m.mu.Unlock()
}

// SetLocalTrack sets the microphone track attached to calls opened from
// now on.
func (m *CallManager) SetLocalTrack(t webrtc.TrackLocal) {
	m.mu.Lock()
	m.local = t
	m.mu.Unlock()
}

// OnCallEnded is told about calls that died without being closed here.
func (m *CallManager) OnCallEnded(fn func(domain.SessionID)) {
	m.mu.Lock()
	m.onEnded = fn
	m.mu.Unlock()
}

// Open calls sid by sending it an offer.
func (m *CallManager) Open(ctx context.Context, sid domain.SessionID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := m.connect(sid)
	if err != nil {
		return err
	}
	offer, err := conn.Offer()
	if err != nil {
		m.Close(sid)
		return fmt.Errorf("offer to %s: %w", sid, err)
	}
	if err := m.send(sid, domain.PeerSignal{Type: domain.SignalOffer, SDP: offer.SDP}); err != nil {
		m.Close(sid)
		return err
	}
	return nil
}

// Signal applies one negotiation step from a peer. An offer replaces any
// call already running with that peer.
func (m *CallManager) Signal(_ context.Context, from domain.SessionID, sig domain.PeerSignal) error {
	switch sig.Type {
	case domain.SignalOffer:
		conn, err := m.connect(from)
		if err != nil {
			return err
		}
		answer, err := conn.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sig.SDP})
		if err != nil {
			m.Close(from)
			return fmt.Errorf("answer %s: %w", from, err)
		}
		return m.send(from, domain.PeerSignal{Type: domain.SignalAnswer, SDP: answer.SDP})
	case domain.SignalAnswer:
		conn, ok := m.get(from)
		if !ok {
			return ErrNoCall
		}
		return conn.ApplyAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sig.SDP})
	case domain.SignalCandidate:
		conn, ok := m.get(from)
		if !ok {
			return ErrNoCall
		}
		return conn.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     sig.Candidate,
			SDPMid:        sig.SDPMid,
			SDPMLineIndex: sig.SDPMLineIndex,
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSignal, sig.Type)
	}
}

// Close hangs up on sid. Closing an unknown peer does nothing.
func (m *CallManager) Close(sid domain.SessionID) {
	m.mu.Lock()
	conn := m.calls[sid]
	relay := m.relays[sid]
	delete(m.calls, sid)
	delete(m.relays, sid)
	m.mu.Unlock()

	if relay != nil {
		relay.Stop()
	}
	if conn != nil {
		conn.Close()
	}
}

func (m *CallManager) CloseAll() {
	for _, sid := range m.Peers() {
		m.Close(sid)
	}
}

// Peers lists the players with a call, sorted.
func (m *CallManager) Peers() []domain.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.calls))
}

// AddSink routes every peer's audio into s, including calls made later.
func (m *CallManager) AddSink(name string, s PacketSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks[name] = s
	for _, r := range m.relays {
		r.AddSink(name, s)
	}
}

func (m *CallManager) RemoveSink(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sinks, name)
	for _, r := range m.relays {
		r.RemoveSink(name)
	}
}

// Mute silences sid locally. The setting outlives the call.
func (m *CallManager) Mute(sid domain.SessionID, muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if muted {
		m.muted[sid] = true
	} else {
		delete(m.muted, sid)
	}
	if r, ok := m.relays[sid]; ok {
		r.SetMuted(muted)
	}
}

func (m *CallManager) get(sid domain.SessionID) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[sid]
	return c, ok
}

func (m *CallManager) connect(sid domain.SessionID) (*Connection, error) {
	m.mu.Lock()
	local := m.local
	m.mu.Unlock()

	conn, err := NewConnection(m.cfg, sid, local)
	if err != nil {
		return nil, fmt.Errorf("peer connection %s: %w", sid, err)
	}
	conn.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		sig := domain.PeerSignal{
			Type:          domain.SignalCandidate,
			Candidate:     ci.Candidate,
			SDPMid:        ci.SDPMid,
			SDPMLineIndex: ci.SDPMLineIndex,
		}
		if err := m.send(sid, sig); err != nil {
			m.log.Warn().Err(err).Str("sid", string(sid)).Msg("candidate not sent")
		}
	})
	conn.OnTrack(func(t *webrtc.TrackRemote) { m.startRelay(sid, conn, t) })
	conn.OnClosed(func() { m.ended(sid, conn) })

	m.mu.Lock()
	prev, prevRelay := m.calls[sid], m.relays[sid]
	m.calls[sid] = conn
	delete(m.relays, sid)
	m.mu.Unlock()
	if prevRelay != nil {
		prevRelay.Stop()
	}
	if prev != nil {
		m.log.Info().Str("sid", string(sid)).Msg("replacing call")
		prev.Close()
	}
	return conn, nil
}

func (m *CallManager) startRelay(sid domain.SessionID, conn *Connection, t *webrtc.TrackRemote) {
	r := NewRelay(sid, TrackSource(t))

	m.mu.Lock()
	if m.calls[sid] != conn {
		m.mu.Unlock()
		return
	}
	for name, s := range m.sinks {
		r.AddSink(name, s)
	}
	r.SetMuted(m.muted[sid])
	prev := m.relays[sid]
	m.relays[sid] = r
	m.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	r.Start(context.Background())
}

// ended handles a connection that went away. Calls closed through Close
// are already unregistered and are not reported.
func (m *CallManager) ended(sid domain.SessionID, conn *Connection) {
	m.mu.Lock()
	if m.calls[sid] != conn {
		m.mu.Unlock()
		return
	}
	delete(m.calls, sid)
	relay := m.relays[sid]
	delete(m.relays, sid)
	fn := m.onEnded
	m.mu.Unlock()

	if relay != nil {
		relay.Stop()
	}
	m.log.Info().Str("sid", string(sid)).Msg("call ended")
	if fn != nil {
		fn(sid)
	}
}

func (m *CallManager) send(to domain.SessionID, sig domain.PeerSignal) error {
	m.mu.Lock()
	s := m.signaler
	m.mu.Unlock()
	if s == nil {
		return ErrNoSignaler
	}
	return s.SendPeerSignal(to, sig)
}
