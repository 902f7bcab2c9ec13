package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/app/store"
	"github.com/dkeye/Lounge/internal/config"
	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/events"
	"github.com/dkeye/Lounge/internal/presence"
	"github.com/dkeye/Lounge/internal/session"
)

const sseBuffer = 64

// Room is the part of a live session the bridge can drive.
type Room interface {
	SessionID() domain.SessionID
	AddChatMessage(content string)
	UpdatePosition(x, y float64, anim string)
	UpdateName(name string, userID domain.UserID) error
	ReadyToConnect()
	ConnectToTable(id domain.TableID)
	DisconnectFromTable(id domain.TableID)
}

type Sessions interface {
	Room() (Room, bool)
	Directory() ([]domain.RoomInfo, bool)
	UserID() domain.UserID
}

// Peers is the call coordinator.
type Peers interface {
	Status(sid domain.SessionID) presence.Status
	Call(ctx context.Context, sid domain.SessionID) error
	Drop(sid domain.SessionID) error
}

// Audio controls local playback of remote players.
type Audio interface {
	Mute(sid domain.SessionID, muted bool)
}

// FromClient exposes a session client to the bridge.
func FromClient(c *session.Client) Sessions { return clientSessions{c} }

type clientSessions struct{ c *session.Client }

func (s clientSessions) Room() (Room, bool) {
	rs := s.c.Active()
	if rs == nil {
		return nil, false
	}
	return rs, true
}

func (s clientSessions) Directory() ([]domain.RoomInfo, bool) {
	h := s.c.Lobby()
	if h == nil {
		return nil, false
	}
	return h.Rooms(), true
}

func (s clientSessions) UserID() domain.UserID { return s.c.UserID() }

type Deps struct {
	Sessions Sessions
	Store    *store.Store
	Peers    Peers
	Audio    Audio
	Bus      *eventbus.Bus
}

type chatRequest struct {
	Content string `json:"content" binding:"required"`
}

type positionRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Anim string  `json:"anim"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Int("port", cfg.BridgePort).Msg("router setup")

	api := r.Group("/api")
	api.GET("/state", d.state)
	api.GET("/peers/:sid", d.peer)
	api.POST("/peers/:sid/call", d.call)
	api.DELETE("/peers/:sid", d.drop)
	api.POST("/peers/:sid/mute", d.mute)
	api.GET("/rooms", d.rooms)
	api.POST("/chat", d.withRoom(d.chat))
	api.POST("/position", d.withRoom(d.position))
	api.POST("/name", d.withRoom(d.name))
	api.POST("/ready", d.withRoom(func(c *gin.Context, room Room) {
		room.ReadyToConnect()
		c.Status(http.StatusAccepted)
	}))
	api.POST("/tables/:id/connect", d.withRoom(func(c *gin.Context, room Room) {
		room.ConnectToTable(domain.TableID(c.Param("id")))
		c.Status(http.StatusAccepted)
	}))
	api.POST("/tables/:id/disconnect", d.withRoom(func(c *gin.Context, room Room) {
		room.DisconnectFromTable(domain.TableID(c.Param("id")))
		c.Status(http.StatusAccepted)
	}))
	api.GET("/events", func(c *gin.Context) { d.stream(ctx, c) })

	return r
}

func (d Deps) state(c *gin.Context) {
	resp := gin.H{"live": false, "state": d.Store.Snapshot()}
	if room, ok := d.Sessions.Room(); ok {
		resp["live"] = true
		resp["sessionId"] = room.SessionID()
	}
	c.JSON(http.StatusOK, resp)
}

func (d Deps) peer(c *gin.Context) {
	sid := domain.SessionID(c.Param("sid"))
	st := d.Peers.Status(sid)
	c.JSON(http.StatusOK, gin.H{
		"sessionId":  sid,
		"status":     st.String(),
		"streamable": st != presence.Absent,
	})
}

func (d Deps) call(c *gin.Context) {
	sid := domain.SessionID(c.Param("sid"))
	err := d.Peers.Call(c.Request.Context(), sid)
	switch {
	case err == nil:
		c.Status(http.StatusAccepted)
	case errors.Is(err, presence.ErrNotStreamable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("sid", string(sid)).Msg("call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (d Deps) drop(c *gin.Context) {
	if err := d.Peers.Drop(domain.SessionID(c.Param("sid"))); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

func (d Deps) mute(c *gin.Context) {
	if d.Audio == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no audio"})
		return
	}
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mute"})
		return
	}
	d.Audio.Mute(domain.SessionID(c.Param("sid")), req.Muted)
	c.Status(http.StatusAccepted)
}

func (d Deps) rooms(c *gin.Context) {
	list, ok := d.Sessions.Directory()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "not in lobby"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": list})
}

func (d Deps) withRoom(h func(*gin.Context, Room)) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := d.Sessions.Room()
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": "no active room"})
			return
		}
		h(c, room)
	}
}

func (d Deps) chat(c *gin.Context, room Room) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid content"})
		return
	}
	room.AddChatMessage(req.Content)
	c.Status(http.StatusAccepted)
}

func (d Deps) position(c *gin.Context, room Room) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position"})
		return
	}
	room.UpdatePosition(req.X, req.Y, req.Anim)
	c.Status(http.StatusAccepted)
}

func (d Deps) name(c *gin.Context, room Room) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}
	if err := room.UpdateName(req.Name, d.Sessions.UserID()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

// stream sends bus events to the UI. A slow reader loses events rather
// than stalling the room.
func (d Deps) stream(ctx context.Context, c *gin.Context) {
	ch := make(chan events.Event, sseBuffer)
	off := d.Bus.SubscribeAll(func(e events.Event) {
		select {
		case ch <- e:
		default:
			log.Warn().Str("module", "adapters.http").Str("event", string(e.Type())).Msg("sse client lagging, event dropped")
		}
	})
	defer off()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	log.Info().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("sse client connected")
	c.Stream(func(w io.Writer) bool {
		select {
		case e := <-ch:
			c.SSEvent(string(e.Type()), e)
			return true
		case <-c.Request.Context().Done():
			return false
		case <-ctx.Done():
			return false
		}
	})
	log.Info().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("sse client gone")
}
