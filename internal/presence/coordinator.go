// Package presence tracks which remote participants can be streamed with
// and drives peer-call teardown from membership changes.
package presence

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/events"
	"github.com/dkeye/Lounge/internal/protocol"
)

var (
	ErrNotStreamable = errors.New("peer is not streamable")
	ErrNoRoom        = errors.New("no active room")
)

type Status int

const (
	Absent Status = iota
	Connected
	InCall
)

func (s Status) String() string {
	switch s {
	case Connected:
		return "connected"
	case InCall:
		return "in_call"
	default:
		return "absent"
	}
}

// MediaLayer owns the actual peer connections.
type MediaLayer interface {
	// Open starts an outgoing call to sid.
	Open(ctx context.Context, sid domain.SessionID) error
	// Signal feeds one inbound negotiation step from sid.
	Signal(ctx context.Context, from domain.SessionID, sig domain.PeerSignal) error
	// Close drops the call with sid. Must be safe to call repeatedly.
	Close(sid domain.SessionID)
}

// Outbound is the room session's send surface.
type Outbound interface {
	Send(kind protocol.OutboundKind, payload any)
}

type Coordinator struct {
	media MediaLayer
	log   zerolog.Logger

	mu    sync.Mutex
	peers map[domain.SessionID]Status
	known map[domain.SessionID]bool
	out   Outbound
	offs  []func()
}

func NewCoordinator(bus *eventbus.Bus, media MediaLayer) *Coordinator {
	c := &Coordinator{
		media: media,
		log:   log.With().Str("module", "presence").Logger(),
		peers: make(map[domain.SessionID]Status),
		known: make(map[domain.SessionID]bool),
	}
	c.offs = append(c.offs,
		eventbus.On(bus, c.onPlayerJoined),
		eventbus.On(bus, c.onFieldUpdated),
		eventbus.On(bus, func(e events.PlayerLeft) { c.forget(e.SessionID) }),
		eventbus.On(bus, func(e events.PeerStreamDisconnected) { c.Release(e.SessionID) }),
		eventbus.On(bus, c.onPeerSignal),
		eventbus.On(bus, func(events.RoomDisconnected) { c.Reset() }),
	)
	return c
}

// Bind sets the session used for outbound signals. nil unbinds.
func (c *Coordinator) Bind(out Outbound) {
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
}

func (c *Coordinator) Stop() {
	for _, off := range c.offs {
		off()
	}
	c.Reset()
}

func (c *Coordinator) IsStreamable(sid domain.SessionID) bool {
	s := c.Status(sid)
	return s == Connected || s == InCall
}

func (c *Coordinator) Status(sid domain.SessionID) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers[sid]
}

func (c *Coordinator) onPlayerJoined(e events.PlayerJoined) {
	c.mu.Lock()
	c.known[e.SessionID] = true
	if c.peers[e.SessionID] == Absent {
		c.peers[e.SessionID] = Connected
	}
	c.mu.Unlock()
	c.log.Info().Str("sid", string(e.SessionID)).Msg("peer connected")
}

func (c *Coordinator) forget(sid domain.SessionID) {
	c.mu.Lock()
	delete(c.known, sid)
	c.mu.Unlock()
}

// A peer that dropped its stream becomes streamable again once it
// reports ready.
func (c *Coordinator) onFieldUpdated(e events.PlayerFieldUpdated) {
	rc, ok := e.Change.(domain.ReadyToConnectChanged)
	if !ok || !rc.Ready {
		return
	}
	c.mu.Lock()
	if c.known[e.SessionID] && c.peers[e.SessionID] == Absent {
		c.peers[e.SessionID] = Connected
	}
	c.mu.Unlock()
}

func (c *Coordinator) onPeerSignal(e events.PeerSignalReceived) {
	c.mu.Lock()
	st := c.peers[e.From]
	if st == Connected && e.Signal.Type == domain.SignalOffer {
		c.peers[e.From] = InCall
		st = InCall
	}
	c.mu.Unlock()

	if st == Absent {
		c.log.Warn().Str("sid", string(e.From)).Str("signal", e.Signal.Type).Msg("signal from absent peer dropped")
		return
	}
	if err := c.media.Signal(context.Background(), e.From, e.Signal); err != nil {
		c.log.Error().Err(err).Str("sid", string(e.From)).Str("signal", e.Signal.Type).Msg("apply signal")
	}
}

// Call starts a call with a connected peer.
func (c *Coordinator) Call(ctx context.Context, sid domain.SessionID) error {
	c.mu.Lock()
	switch c.peers[sid] {
	case InCall:
		c.mu.Unlock()
		return nil
	case Absent:
		c.mu.Unlock()
		return ErrNotStreamable
	}
	c.peers[sid] = InCall
	c.mu.Unlock()

	if err := c.media.Open(ctx, sid); err != nil {
		c.mu.Lock()
		if c.peers[sid] == InCall {
			c.peers[sid] = Connected
		}
		c.mu.Unlock()
		return err
	}
	c.log.Info().Str("sid", string(sid)).Msg("call opened")
	return nil
}

// CallEnded is reported by the media layer when a call died on its own.
func (c *Coordinator) CallEnded(sid domain.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peers[sid] == InCall {
		c.peers[sid] = Connected
	}
}

// Release moves sid to Absent and closes its call. Releasing an absent
// peer does nothing.
func (c *Coordinator) Release(sid domain.SessionID) {
	c.mu.Lock()
	prev, ok := c.peers[sid]
	delete(c.peers, sid)
	c.mu.Unlock()
	if !ok || prev == Absent {
		return
	}
	c.media.Close(sid)
	c.log.Info().Str("sid", string(sid)).Str("from", prev.String()).Msg("peer released")
}

// Drop is the local user hanging up on sid. The server is told so the
// peer tears down its side too.
func (c *Coordinator) Drop(sid domain.SessionID) error {
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return ErrNoRoom
	}
	out.Send(protocol.DisconnectStream, protocol.ClientRef{ClientID: sid})
	c.Release(sid)
	return nil
}

// SendPeerSignal relays one negotiation step through the bound room.
func (c *Coordinator) SendPeerSignal(to domain.SessionID, sig domain.PeerSignal) error {
	c.mu.Lock()
	out := c.out
	c.mu.Unlock()
	if out == nil {
		return ErrNoRoom
	}
	out.Send(protocol.SendPeerSignal, protocol.PeerSignalOut{To: to, Signal: sig})
	return nil
}

// Reset releases every peer, used when the room goes away.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	peers := make([]domain.SessionID, 0, len(c.peers))
	for sid, st := range c.peers {
		if st != Absent {
			peers = append(peers, sid)
		}
	}
	c.peers = make(map[domain.SessionID]Status)
	c.known = make(map[domain.SessionID]bool)
	c.mu.Unlock()

	for _, sid := range peers {
		c.media.Close(sid)
	}
}
