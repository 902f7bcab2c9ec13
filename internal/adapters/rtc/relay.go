package rtc

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/domain"
)

// PacketSink consumes remote audio. *webrtc.TrackLocalStaticRTP is one.
type PacketSink interface {
	WriteRTP(p *rtp.Packet) error
}

// PacketSource yields packets until it returns an error.
type PacketSource func() (*rtp.Packet, error)

func TrackSource(t *webrtc.TrackRemote) PacketSource {
	return func() (*rtp.Packet, error) {
		p, _, err := t.ReadRTP()
		return p, err
	}
}

// Relay forwards one peer's audio to every registered sink. A sink that
// fails a write is dropped.
type Relay struct {
	src   PacketSource
	log   zerolog.Logger
	muted atomic.Bool

	mu    sync.RWMutex
	sinks map[string]PacketSink

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(sid domain.SessionID, src PacketSource) *Relay {
	return &Relay{
		src:   src,
		log:   log.With().Str("module", "relay").Str("sid", string(sid)).Logger(),
		sinks: make(map[string]PacketSink),
		done:  make(chan struct{}),
	}
}

func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
}

func (r *Relay) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("relay ctx done")
			return
		default:
		}
		pkt, err := r.src()
		if err != nil {
			r.log.Info().Err(err).Msg("relay source ended")
			return
		}
		if r.muted.Load() {
			continue
		}
		r.forward(pkt)
	}
}

func (r *Relay) forward(pkt *rtp.Packet) {
	r.mu.RLock()
	snapshot := maps.Clone(r.sinks)
	r.mu.RUnlock()

	var dirty []string
	for name, sink := range snapshot {
		if err := sink.WriteRTP(pkt); err != nil {
			r.log.Error().Err(err).Str("sink", name).Msg("relay write RTP error, dropping sink")
			dirty = append(dirty, name)
		}
	}
	if len(dirty) > 0 {
		r.mu.Lock()
		for _, name := range dirty {
			delete(r.sinks, name)
		}
		r.mu.Unlock()
	}
}

func (r *Relay) AddSink(name string, s PacketSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = s
}

func (r *Relay) RemoveSink(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, name)
}

func (r *Relay) SinkCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// SetMuted discards incoming packets while set.
func (r *Relay) SetMuted(m bool) { r.muted.Store(m) }

// Stop ends the loop after the pending read returns.
func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Relay) Done() <-chan struct{} { return r.done }
