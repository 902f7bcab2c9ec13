package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dkeye/Lounge/internal/core"
	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/events"
	"github.com/dkeye/Lounge/internal/lobby"
	"github.com/dkeye/Lounge/internal/protocol"
	"github.com/dkeye/Lounge/internal/state"
	"github.com/dkeye/Lounge/internal/translator"
)

// ErrLeft is the terminal error of a session closed locally.
var ErrLeft = errors.New("left room")

// RoomSession is one joined room. Inbound frames are handled one at a
// time on the session's own goroutine.
type RoomSession struct {
	sessionID domain.SessionID
	roomID    domain.RoomID
	link      core.Link
	st        *state.State
	bus       *eventbus.Bus
	tr        *translator.Translator
	presence  Presence
	limiter   *rateLimiter
	log       zerolog.Logger

	inbound map[protocol.InboundKind]func(any)

	mu     sync.RWMutex
	meta   domain.RoomMetadata
	live   bool
	err    error
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func newRoomSession(link core.Link, joined protocol.JoinedFrame, bus *eventbus.Bus, p Presence, rl *rateLimiter, l zerolog.Logger) *RoomSession {
	return &RoomSession{
		sessionID: joined.SessionID,
		roomID:    joined.RoomID,
		link:      link,
		st:        state.New(),
		bus:       bus,
		presence:  p,
		limiter:   rl,
		log:       l.With().Str("sid", string(joined.SessionID)).Str("room_id", string(joined.RoomID)).Logger(),
		meta:      domain.RoomMetadata{ID: joined.RoomID},
		done:      make(chan struct{}),
	}
}

// activate wires the session in a fixed order before the first inbound
// frame is looked at.
func (rs *RoomSession) activate(h *lobby.Handle, snap protocol.Snapshot) {
	if h != nil {
		h.Leave()
	}

	rs.log.Info().Msg("session id recorded")
	if err := rs.st.Load(snap); err != nil {
		rs.log.Warn().Err(err).Msg("snapshot inconsistencies ignored")
	}

	var releaser translator.Releaser
	if rs.presence != nil {
		releaser = rs.presence
	}
	rs.tr = translator.New(rs.bus, releaser)
	rs.tr.Attach(rs.st, rs.sessionID)

	rs.inbound = rs.inboundHandlers()
	if rs.presence != nil {
		rs.presence.Bind(rs)
	}

	rs.tr.WatchCount(rs.st)

	ctx, cancel := context.WithCancel(context.Background())
	rs.mu.Lock()
	rs.live = true
	rs.cancel = cancel
	rs.mu.Unlock()
	go rs.run(ctx)
}

func (rs *RoomSession) inboundHandlers() map[protocol.InboundKind]func(any) {
	return map[protocol.InboundKind]func(any){
		protocol.RoomMetadataPush: func(v any) {
			m := v.(protocol.RoomMetadataPayload)
			rs.mu.Lock()
			rs.meta = m
			rs.mu.Unlock()
			rs.bus.Publish(events.RoomMetadataUpdated{Metadata: m})
		},
		protocol.ChatBroadcast: func(v any) {
			m := v.(protocol.ChatBroadcastPayload)
			rs.bus.Publish(events.ChatBroadcastReceived{SessionID: m.ClientID, Content: m.Content})
		},
		protocol.DialogBubbleUpdate: func(v any) {
			m := v.(protocol.DialogBubblePayload)
			rs.bus.Publish(events.DialogBubbleUpdated{SessionID: m.ClientID, Content: m.Content})
		},
		protocol.DisconnectStreamNote: func(v any) {
			m := v.(protocol.DisconnectStreamPayload)
			rs.bus.Publish(events.PeerStreamDisconnected{SessionID: m.ClientID})
		},
		protocol.StopTableTalkNote: func(v any) {
			m := v.(protocol.StopTableTalkPayload)
			rs.bus.Publish(events.TableTalkStopped{SessionID: m.ClientID, TableID: m.TableID})
		},
		protocol.PrivateMessageNotice: func(v any) {
			m := v.(protocol.PrivateMessagePayload)
			rs.bus.Publish(events.PrivateMessageReceived{MessageID: m.MessageID, SenderID: m.SenderID, Content: m.Content})
		},
		protocol.ReceivePeerSignal: func(v any) {
			m := v.(protocol.PeerSignalIn)
			rs.bus.Publish(events.PeerSignalReceived{From: m.From, Signal: m.Signal})
		},
	}
}

func (rs *RoomSession) run(ctx context.Context) {
	for {
		f, err := rs.link.Recv(ctx)
		if err != nil {
			rs.terminate(err)
			return
		}
		rs.handleFrame(f)
	}
}

func (rs *RoomSession) handleFrame(data []byte) {
	ft, err := protocol.FrameTypeOf(data)
	if err != nil {
		rs.log.Warn().Err(err).Msg("frame dropped")
		return
	}
	switch ft {
	case protocol.FramePatch:
		pf, err := protocol.Decode[protocol.PatchFrame](data, string(ft))
		if err != nil {
			rs.log.Warn().Err(err).Msg("patch dropped")
			return
		}
		if err := rs.st.Apply(pf.Patches); err != nil {
			rs.log.Warn().Err(err).Msg("state invariant violation ignored")
		}
	case protocol.FrameMessage:
		mf, err := protocol.Decode[protocol.MessageFrame](data, string(ft))
		if err != nil {
			rs.log.Warn().Err(err).Msg("message dropped")
			return
		}
		rs.handleMessage(mf)
	case protocol.FrameError:
		ef, err := protocol.Decode[protocol.ErrorFrame](data, string(ft))
		if err != nil {
			rs.log.Warn().Err(err).Msg("error frame dropped")
			return
		}
		rs.log.Warn().Str("code", ef.Code).Str("message", ef.Message).Msg("server error")
	case protocol.FrameLeave:
		rs.log.Info().Msg("server ended session")
		rs.terminate(errors.New("closed by server"))
	default:
		rs.log.Warn().Str("type", string(ft)).Msg("unknown frame")
	}
}

func (rs *RoomSession) handleMessage(mf protocol.MessageFrame) {
	payload, err := protocol.DecodeInbound(mf)
	if err != nil {
		rs.log.Warn().Err(err).Str("kind", mf.Kind).Msg("message dropped")
		return
	}
	h, ok := rs.inbound[protocol.InboundKind(mf.Kind)]
	if !ok {
		return
	}
	h(payload)
}

// terminate moves the session to its final state. Only the first call
// has an effect.
func (rs *RoomSession) terminate(cause error) {
	rs.once.Do(func() {
		rs.mu.Lock()
		rs.live = false
		rs.err = cause
		cancel := rs.cancel
		rs.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if rs.tr != nil {
			rs.tr.Detach()
		}
		if rs.presence != nil {
			rs.presence.Bind(nil)
		}
		rs.link.Close()
		close(rs.done)

		reason := ""
		if cause != nil {
			reason = cause.Error()
		}
		rs.log.Info().Str("reason", reason).Msg("session disconnected")
		rs.bus.Publish(events.RoomDisconnected{RoomID: rs.roomID, SessionID: rs.sessionID, Reason: reason})
	})
}

// Close leaves the room. Safe to call more than once.
func (rs *RoomSession) Close() {
	if rs.Live() {
		if b, err := json.Marshal(protocol.LeaveFrame{Type: protocol.FrameLeave}); err == nil {
			_ = rs.link.TrySend(b)
		}
	}
	rs.terminate(ErrLeft)
}

func (rs *RoomSession) SessionID() domain.SessionID { return rs.sessionID }
func (rs *RoomSession) RoomID() domain.RoomID       { return rs.roomID }

// Done is closed once the session is disconnected.
func (rs *RoomSession) Done() <-chan struct{} { return rs.done }

func (rs *RoomSession) Live() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.live
}

// Err is why the session ended, nil while it is live.
func (rs *RoomSession) Err() error {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.err
}

func (rs *RoomSession) Metadata() domain.RoomMetadata {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.meta
}

// State is a read-only snapshot of the room collections.
func (rs *RoomSession) State() state.View { return rs.st.View() }

// Self returns the local player as the room currently sees it.
func (rs *RoomSession) Self() (domain.Player, bool) { return rs.st.Player(rs.sessionID) }
