// Package lobby keeps the client in the room directory until it joins a
// room.
package lobby

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/core"
	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/protocol"
)

type Connector struct {
	dialer core.Dialer
	url    string
}

func NewConnector(dialer core.Dialer, url string) *Connector {
	return &Connector{dialer: dialer, url: url}
}

// Join opens the directory link. The returned handle must be released
// with Leave.
func (c *Connector) Join(ctx context.Context) (*Handle, error) {
	link, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		var ce *core.ConnectionError
		if !errors.As(err, &ce) {
			err = &core.ConnectionError{Op: "lobby", URL: c.url, Err: err}
		}
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{link: link, cancel: cancel, done: make(chan struct{})}
	go h.loop(ctx)
	log.Info().Str("module", "lobby").Str("url", c.url).Msg("joined lobby")
	return h, nil
}

// Handle is a live lobby membership.
type Handle struct {
	link   core.Link
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu    sync.RWMutex
	rooms []domain.RoomInfo
}

// Rooms is the latest directory listing.
func (h *Handle) Rooms() []domain.RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.rooms)
}

// Done is closed once the handle stops listening.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Leave releases the lobby link. Safe to call more than once.
func (h *Handle) Leave() {
	h.once.Do(func() {
		h.cancel()
		h.link.Close()
		log.Info().Str("module", "lobby").Msg("left lobby")
	})
}

func (h *Handle) loop(ctx context.Context) {
	defer close(h.done)
	for {
		f, err := h.link.Recv(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Str("module", "lobby").Msg("lobby link lost")
			}
			return
		}
		h.handle(f)
	}
}

func (h *Handle) handle(data []byte) {
	ft, err := protocol.FrameTypeOf(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "lobby").Msg("bad frame")
		return
	}
	switch ft {
	case protocol.FrameRooms:
		f, err := protocol.Decode[protocol.RoomsFrame](data, string(ft))
		if err != nil {
			log.Warn().Err(err).Str("module", "lobby").Msg("bad rooms frame")
			return
		}
		h.mu.Lock()
		h.rooms = f.Rooms
		h.mu.Unlock()
	case protocol.FrameRoomAdded:
		f, err := protocol.Decode[protocol.RoomAddedFrame](data, string(ft))
		if err != nil {
			log.Warn().Err(err).Str("module", "lobby").Msg("bad room-added frame")
			return
		}
		h.mu.Lock()
		i := slices.IndexFunc(h.rooms, func(r domain.RoomInfo) bool { return r.RoomID == f.Room.RoomID })
		if i >= 0 {
			h.rooms[i] = f.Room
		} else {
			h.rooms = append(h.rooms, f.Room)
		}
		h.mu.Unlock()
	case protocol.FrameRoomRemoved:
		f, err := protocol.Decode[protocol.RoomRemovedFrame](data, string(ft))
		if err != nil {
			log.Warn().Err(err).Str("module", "lobby").Msg("bad room-removed frame")
			return
		}
		h.mu.Lock()
		h.rooms = slices.DeleteFunc(h.rooms, func(r domain.RoomInfo) bool { return r.RoomID == f.RoomID })
		h.mu.Unlock()
	default:
		log.Warn().Str("module", "lobby").Str("type", string(ft)).Msg("unknown frame")
	}
}
