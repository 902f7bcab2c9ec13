// Package store keeps the UI's picture of the room. It is fed only by
// bus events and never touches the session directly.
package store

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/events"
)

const DefaultChatLimit = 200

type PlayerView struct {
	SessionID domain.SessionID `json:"sessionId"`
	Name      string           `json:"name"`
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Anim      string           `json:"anim,omitempty"`
	Ready     bool             `json:"readyToConnect"`
	Video     bool             `json:"videoConnected"`
	Table     domain.TableID   `json:"table,omitempty"`
	Bubble    string           `json:"bubble,omitempty"`
}

type PrivateMessage struct {
	MessageID string           `json:"messageId"`
	SenderID  domain.SessionID `json:"senderId"`
	Content   string           `json:"content"`
}

// Snapshot is a copy of the store safe to hand to a renderer.
type Snapshot struct {
	Room        domain.RoomMetadata  `json:"room"`
	PlayerCount int                  `json:"playerCount"`
	Players     []PlayerView         `json:"players"`
	Chat        []domain.ChatMessage `json:"chat"`
	Inbox       []PrivateMessage     `json:"inbox"`
	SelfReady   bool                 `json:"selfReady"`
	SelfVideo   bool                 `json:"selfVideo"`
}

type Store struct {
	chatLimit int

	mu        sync.RWMutex
	room      domain.RoomMetadata
	count     int
	players   map[domain.SessionID]*PlayerView
	order     []domain.SessionID
	chat      []domain.ChatMessage
	inbox     []PrivateMessage
	selfReady bool
	selfVideo bool

	offs []func()
}

// New subscribes a store to bus. chatLimit <= 0 uses DefaultChatLimit.
func New(bus *eventbus.Bus, chatLimit int) *Store {
	if chatLimit <= 0 {
		chatLimit = DefaultChatLimit
	}
	s := &Store{
		chatLimit: chatLimit,
		players:   make(map[domain.SessionID]*PlayerView),
	}
	s.offs = []func(){
		eventbus.On(bus, s.onJoined),
		eventbus.On(bus, s.onField),
		eventbus.On(bus, s.onLeft),
		eventbus.On(bus, func(e events.PlayerCountChanged) { s.with(func() { s.count = e.Count }) }),
		eventbus.On(bus, func(e events.SeatOccupied) { s.seat(e.SessionID, e.TableID) }),
		eventbus.On(bus, func(e events.SeatVacated) { s.unseat(e.SessionID, e.TableID) }),
		eventbus.On(bus, s.onChat),
		eventbus.On(bus, func(e events.ChatBroadcastReceived) { s.bubble(e.SessionID, e.Content) }),
		eventbus.On(bus, func(e events.DialogBubbleUpdated) { s.bubble(e.SessionID, e.Content) }),
		eventbus.On(bus, s.onPrivate),
		eventbus.On(bus, func(e events.RoomMetadataUpdated) { s.with(func() { s.room = e.Metadata }) }),
		eventbus.On(bus, func(events.MyPlayerReady) { s.with(func() { s.selfReady = true }) }),
		eventbus.On(bus, func(events.MyVideoConnected) { s.with(func() { s.selfVideo = true }) }),
		eventbus.On(bus, s.onDisconnected),
	}
	return s
}

// Stop unsubscribes from the bus. The last snapshot stays readable.
func (s *Store) Stop() {
	for _, off := range s.offs {
		off()
	}
}

func (s *Store) with(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Store) onJoined(e events.PlayerJoined) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := e.Player
	v, ok := s.players[e.SessionID]
	if !ok {
		v = &PlayerView{SessionID: e.SessionID}
		s.players[e.SessionID] = v
		s.order = append(s.order, e.SessionID)
	}
	v.Name, v.X, v.Y, v.Anim = p.Name, p.X, p.Y, p.Anim
	v.Ready, v.Video = p.ReadyToConnect, p.VideoConnected
}

// Updates for players not yet joined are dropped: PlayerJoined carries
// the full record.
func (s *Store) onField(e events.PlayerFieldUpdated) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.players[e.SessionID]
	if !ok {
		return
	}
	switch c := e.Change.(type) {
	case domain.PositionChanged:
		if c.Axis == domain.AxisX {
			v.X = c.Coord
		} else {
			v.Y = c.Coord
		}
	case domain.AnimationChanged:
		v.Anim = c.Anim
	case domain.NameChanged:
		v.Name = c.Name
	case domain.ReadyToConnectChanged:
		v.Ready = c.Ready
	case domain.VideoConnectedChanged:
		v.Video = c.Connected
	}
}

func (s *Store) onLeft(e events.PlayerLeft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[e.SessionID]; !ok {
		return
	}
	delete(s.players, e.SessionID)
	s.order = slices.DeleteFunc(s.order, func(sid domain.SessionID) bool { return sid == e.SessionID })
}

func (s *Store) seat(sid domain.SessionID, table domain.TableID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.players[sid]; ok {
		v.Table = table
	}
}

func (s *Store) unseat(sid domain.SessionID, table domain.TableID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.players[sid]; ok && v.Table == table {
		v.Table = ""
	}
}

func (s *Store) bubble(sid domain.SessionID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.players[sid]; ok {
		v.Bubble = content
	}
}

func (s *Store) onChat(e events.ChatMessageReceived) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = append(s.chat, e.Message)
	if over := len(s.chat) - s.chatLimit; over > 0 {
		s.chat = slices.Delete(s.chat, 0, over)
	}
}

func (s *Store) onPrivate(e events.PrivateMessageReceived) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, PrivateMessage{MessageID: e.MessageID, SenderID: e.SenderID, Content: e.Content})
}

func (s *Store) onDisconnected(e events.RoomDisconnected) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = domain.RoomMetadata{}
	s.count = 0
	s.players = make(map[domain.SessionID]*PlayerView)
	s.order = nil
	s.chat = nil
	s.inbox = nil
	s.selfReady, s.selfVideo = false, false
	log.Info().Str("module", "app.store").Str("room_id", string(e.RoomID)).Msg("store cleared")
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{
		Room:        s.room,
		PlayerCount: s.count,
		Players:     make([]PlayerView, 0, len(s.order)),
		Chat:        slices.Clone(s.chat),
		Inbox:       slices.Clone(s.inbox),
		SelfReady:   s.selfReady,
		SelfVideo:   s.selfVideo,
	}
	for _, sid := range s.order {
		out.Players = append(out.Players, *s.players[sid])
	}
	return out
}

func (s *Store) Player(sid domain.SessionID) (PlayerView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.players[sid]
	if !ok {
		return PlayerView{}, false
	}
	return *v, true
}
