// Package session negotiates and owns the single active room connection.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/core"
	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/lobby"
	"github.com/dkeye/Lounge/internal/presence"
	"github.com/dkeye/Lounge/internal/protocol"
)

// Presence is the call coordinator as seen by a room session.
type Presence interface {
	Release(sid domain.SessionID)
	Drop(sid domain.SessionID) error
	Bind(out presence.Outbound)
}

type Options struct {
	ServerURL        string
	PublicRoomType   string
	CustomRoomType   string
	PlayerName       string
	HandshakeTimeout time.Duration
	// SendLimit caps position updates per SendWindow. Zero disables it.
	SendLimit        int
	SendWindow       time.Duration
}

// Client owns at most one active RoomSession. A join that succeeds while
// a newer one is still in flight waits for it: a newer success discards
// the older join, a newer failure lets it through.
type Client struct {
	dialer   core.Dialer
	lobbies  *lobby.Connector
	bus      *eventbus.Bus
	presence Presence
	opts     Options

	mu        sync.Mutex
	gen       uint64
	committed uint64
	inflight  map[uint64]struct{}
	settled   chan struct{}
	userID    domain.UserID
	active    *RoomSession
	lobby     *lobby.Handle
}

// NewClient wires a client. lobbies may be nil when no directory is used.
func NewClient(dialer core.Dialer, lobbies *lobby.Connector, bus *eventbus.Bus, p Presence, opts Options) *Client {
	if opts.CustomRoomType == "" {
		opts.CustomRoomType = "custom"
	}
	return &Client{
		dialer:   dialer,
		lobbies:  lobbies,
		bus:      bus,
		presence: p,
		opts:     opts,
		inflight: make(map[uint64]struct{}),
		settled:  make(chan struct{}),
	}
}

// EnterLobby joins the room directory. The handle is released by the next
// successful room join or by Leave.
func (c *Client) EnterLobby(ctx context.Context) (*lobby.Handle, error) {
	if c.lobbies == nil {
		return nil, &core.ConnectionError{Op: "lobby", Err: errors.New("no lobby configured")}
	}
	h, err := c.lobbies.Join(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	prev := c.lobby
	c.lobby = h
	c.mu.Unlock()
	if prev != nil {
		prev.Leave()
	}
	return h, nil
}

// Lobby returns the current lobby handle, if any.
func (c *Client) Lobby() *lobby.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lobby
}

// Active returns the live session or nil.
func (c *Client) Active() *RoomSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || !c.active.Live() {
		return nil
	}
	return c.active
}

// JoinPublic joins, or creates, the well-known public room.
func (c *Client) JoinPublic(ctx context.Context, userID domain.UserID) (*RoomSession, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, &core.JoinError{Reason: core.ReasonRejected, Err: err}
	}
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()

	rs, err := c.join(ctx, protocol.JoinFrame{
		Type:     protocol.FrameJoin,
		Method:   protocol.JoinOrCreate,
		RoomType: c.opts.PublicRoomType,
		Options:  protocol.JoinOptions{UserID: userID, PlayerName: c.opts.PlayerName},
	})
	if err != nil {
		return nil, joinError("", err)
	}
	return rs, nil
}

// JoinByID joins an existing custom room.
func (c *Client) JoinByID(ctx context.Context, roomID domain.RoomID, password string) (*RoomSession, error) {
	rs, err := c.join(ctx, protocol.JoinFrame{
		Type:    protocol.FrameJoin,
		Method:  protocol.JoinByID,
		RoomID:  roomID,
		Options: protocol.JoinOptions{UserID: c.UserID(), PlayerName: c.opts.PlayerName, Password: password},
	})
	if err != nil {
		return nil, joinError(roomID, err)
	}
	return rs, nil
}

// CreateCustom creates a custom room and joins it.
func (c *Client) CreateCustom(ctx context.Context, cfg domain.RoomConfig) (*RoomSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &core.CreationError{Name: cfg.Name, Err: err}
	}
	rs, err := c.join(ctx, protocol.JoinFrame{
		Type:     protocol.FrameJoin,
		Method:   protocol.CreateRoom,
		RoomType: c.opts.CustomRoomType,
		Options: protocol.JoinOptions{
			UserID:      c.UserID(),
			PlayerName:  c.opts.PlayerName,
			Password:    cfg.Password,
			RoomName:    cfg.Name,
			Description: cfg.Description,
			AutoDispose: cfg.AutoDispose,
		},
	})
	if err != nil {
		return nil, &core.CreationError{Name: cfg.Name, Err: err}
	}
	return rs, nil
}

// Leave closes the active session and the lobby handle.
func (c *Client) Leave() {
	c.mu.Lock()
	c.gen++
	c.committed = c.gen
	c.wakeLocked()
	rs, h := c.active, c.lobby
	c.active, c.lobby = nil, nil
	c.mu.Unlock()

	if rs != nil {
		rs.Close()
	}
	if h != nil {
		h.Leave()
	}
}

// UserID is the id last used with JoinPublic.
func (c *Client) UserID() domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// serverError is an error frame answering a join.
type serverError struct {
	code    string
	message string
}

func (e *serverError) Error() string {
	if e.message == "" {
		return e.code
	}
	return e.code + ": " + e.message
}

func joinError(roomID domain.RoomID, err error) error {
	var se *serverError
	var ce *core.ConnectionError
	switch {
	case errors.As(err, &se):
		return &core.JoinError{Reason: core.ReasonFromCode(se.code), RoomID: roomID, Err: err}
	case errors.Is(err, core.ErrSuperseded):
		return &core.JoinError{Reason: core.ReasonSuperseded, RoomID: roomID, Err: err}
	case errors.As(err, &ce):
		return &core.JoinError{Reason: core.ReasonTransport, RoomID: roomID, Err: err}
	default:
		return &core.JoinError{Reason: core.ReasonRejected, RoomID: roomID, Err: err}
	}
}

func (c *Client) join(ctx context.Context, req protocol.JoinFrame) (*RoomSession, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.inflight[gen] = struct{}{}
	c.mu.Unlock()

	attempt := uuid.NewString()
	l := log.With().Str("module", "session").Str("attempt", attempt).Str("method", string(req.Method)).Logger()

	hctx := ctx
	if c.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, c.opts.HandshakeTimeout)
		defer cancel()
	}

	link, err := c.dialer.Dial(hctx, c.opts.ServerURL)
	if err != nil {
		c.settle(gen)
		l.Warn().Err(err).Msg("dial failed")
		return nil, err
	}
	joined, err := handshake(hctx, link, req, c.opts.ServerURL)
	if err != nil {
		c.settle(gen)
		link.Close()
		l.Info().Err(err).Msg("join failed")
		return nil, err
	}

	for {
		c.mu.Lock()
		if c.committed > gen {
			c.settleLocked(gen)
			c.mu.Unlock()
			link.Close()
			l.Info().Str("sid", string(joined.SessionID)).Msg("late join discarded")
			return nil, core.ErrSuperseded
		}
		if !c.newerInflightLocked(gen) {
			break
		}
		wait := c.settled
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			c.settle(gen)
			link.Close()
			return nil, &core.ConnectionError{Op: "join", URL: c.opts.ServerURL, Err: ctx.Err()}
		}
	}
	defer c.mu.Unlock()

	c.committed = gen
	c.settleLocked(gen)
	prev, h := c.active, c.lobby
	c.active, c.lobby = nil, nil
	if prev != nil {
		prev.Close()
	}

	rs := newRoomSession(link, joined, c.bus, c.presence, newRateLimiter(c.opts.SendLimit, c.opts.SendWindow), l)
	rs.activate(h, joined.State)
	c.active = rs
	return rs, nil
}

func (c *Client) newerInflightLocked(gen uint64) bool {
	for g := range c.inflight {
		if g > gen {
			return true
		}
	}
	return false
}

func (c *Client) settle(gen uint64) {
	c.mu.Lock()
	c.settleLocked(gen)
	c.mu.Unlock()
}

func (c *Client) settleLocked(gen uint64) {
	delete(c.inflight, gen)
	c.wakeLocked()
}

// wakeLocked releases joins parked behind a newer attempt.
func (c *Client) wakeLocked() {
	close(c.settled)
	c.settled = make(chan struct{})
}

// handshake sends the join request and waits for its answer.
func handshake(ctx context.Context, link core.Link, req protocol.JoinFrame, url string) (protocol.JoinedFrame, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return protocol.JoinedFrame{}, err
	}
	if err := link.TrySend(b); err != nil {
		return protocol.JoinedFrame{}, &core.ConnectionError{Op: "join", URL: url, Err: err}
	}
	for {
		f, err := link.Recv(ctx)
		if err != nil {
			return protocol.JoinedFrame{}, &core.ConnectionError{Op: "join", URL: url, Err: err}
		}
		ft, err := protocol.FrameTypeOf(f)
		if err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("bad frame during join")
			continue
		}
		switch ft {
		case protocol.FrameJoined:
			return protocol.Decode[protocol.JoinedFrame](f, string(ft))
		case protocol.FrameError:
			ef, err := protocol.Decode[protocol.ErrorFrame](f, string(ft))
			if err != nil {
				return protocol.JoinedFrame{}, err
			}
			return protocol.JoinedFrame{}, &serverError{code: ef.Code, message: ef.Message}
		default:
			log.Warn().Str("module", "session").Str("type", string(ft)).Msg("unexpected frame during join")
		}
	}
}
