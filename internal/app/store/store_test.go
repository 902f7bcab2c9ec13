package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/events"
)

func TestStore_PlayersFollowEvents(t *testing.T) {
	bus := eventbus.New()
	s := New(bus, 0)

	bus.Publish(events.PlayerFieldUpdated{SessionID: "s2", Change: domain.NameChanged{Name: "Ann"}})
	bus.Publish(events.PlayerJoined{SessionID: "s2", Player: domain.Player{SessionID: "s2", Name: "Ann", X: 1}})
	bus.Publish(events.PlayerJoined{SessionID: "s3", Player: domain.Player{SessionID: "s3", Name: "Ben"}})
	bus.Publish(events.PlayerFieldUpdated{SessionID: "s2", Change: domain.PositionChanged{Axis: domain.AxisY, Coord: 7}})
	bus.Publish(events.PlayerFieldUpdated{SessionID: "s2", Change: domain.ReadyToConnectChanged{Ready: true}})
	bus.Publish(events.PlayerCountChanged{Count: 3})
	bus.Publish(events.SeatOccupied{SessionID: "s3", TableID: "t1", Kind: domain.SeatChair})
	bus.Publish(events.DialogBubbleUpdated{SessionID: "s3", Content: "hmm"})

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.PlayerCount)
	require.Len(t, snap.Players, 2)
	assert.Equal(t, PlayerView{SessionID: "s2", Name: "Ann", X: 1, Y: 7, Ready: true}, snap.Players[0])
	assert.Equal(t, PlayerView{SessionID: "s3", Name: "Ben", Table: "t1", Bubble: "hmm"}, snap.Players[1])

	bus.Publish(events.SeatVacated{SessionID: "s3", TableID: "t9"})
	p, _ := s.Player("s3")
	assert.Equal(t, domain.TableID("t1"), p.Table)
	bus.Publish(events.SeatVacated{SessionID: "s3", TableID: "t1"})
	p, _ = s.Player("s3")
	assert.Empty(t, p.Table)

	bus.Publish(events.PlayerLeft{SessionID: "s2"})
	_, ok := s.Player("s2")
	assert.False(t, ok)
	assert.Len(t, s.Snapshot().Players, 1)
}

func TestStore_ChatIsBounded(t *testing.T) {
	bus := eventbus.New()
	s := New(bus, 2)

	for _, c := range []string{"a", "b", "c"} {
		bus.Publish(events.ChatMessageReceived{Message: domain.ChatMessage{Content: c}})
	}

	assert.Equal(t, []domain.ChatMessage{{Content: "b"}, {Content: "c"}}, s.Snapshot().Chat)
}

func TestStore_DisconnectClears(t *testing.T) {
	bus := eventbus.New()
	s := New(bus, 0)
	bus.Publish(events.RoomMetadataUpdated{Metadata: domain.RoomMetadata{ID: "r1", Name: "Lounge"}})
	bus.Publish(events.PlayerJoined{SessionID: "s2", Player: domain.Player{SessionID: "s2", Name: "Ann"}})
	bus.Publish(events.PrivateMessageReceived{MessageID: "m1", SenderID: "s2", Content: "hi"})
	bus.Publish(events.MyPlayerReady{SessionID: "s1"})

	snap := s.Snapshot()
	assert.Equal(t, "Lounge", snap.Room.Name)
	assert.True(t, snap.SelfReady)
	assert.Len(t, snap.Inbox, 1)

	bus.Publish(events.RoomDisconnected{RoomID: "r1"})

	snap = s.Snapshot()
	assert.Empty(t, snap.Players)
	assert.Empty(t, snap.Inbox)
	assert.False(t, snap.SelfReady)
	assert.Equal(t, domain.RoomMetadata{}, snap.Room)
}

func TestStore_Stop(t *testing.T) {
	bus := eventbus.New()
	s := New(bus, 0)
	before := bus.HandlerCount(events.TypePlayerCountChanged)

	s.Stop()
	bus.Publish(events.PlayerCountChanged{Count: 4})

	assert.Less(t, bus.HandlerCount(events.TypePlayerCountChanged), before)
	assert.Zero(t, s.Snapshot().PlayerCount)
}
