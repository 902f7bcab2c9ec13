package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/events"
	"github.com/dkeye/Lounge/internal/protocol"
	"github.com/dkeye/Lounge/internal/state"
)

type recorder struct {
	got []events.Event
}

func (r *recorder) of(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range r.got {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

type releaseLog struct {
	sids []domain.SessionID
}

func (r *releaseLog) Release(sid domain.SessionID) { r.sids = append(r.sids, sid) }

func setup(t *testing.T, self domain.SessionID, snap protocol.Snapshot) (*state.State, *recorder, *releaseLog) {
	t.Helper()
	bus := eventbus.New()
	rec := &recorder{}
	bus.SubscribeAll(func(e events.Event) { rec.got = append(rec.got, e) })
	rel := &releaseLog{}

	st := state.New()
	require.NoError(t, st.Load(snap))
	tr := New(bus, rel)
	tr.Attach(st, self)
	tr.WatchCount(st)
	return st, rec, rel
}

func TestTranslator_JoinLeaveCountsSkipSelf(t *testing.T) {
	st, rec, rel := setup(t, "s1", protocol.Snapshot{})

	require.NoError(t, st.Apply([]protocol.Patch{
		protocol.AddPlayer(domain.Player{SessionID: "s1", Name: "me"}),
		protocol.AddPlayer(domain.Player{SessionID: "s2"}),
		protocol.AddPlayer(domain.Player{SessionID: "s3"}),
		protocol.ChangePlayer("s2", protocol.Field(domain.FieldName, "Ann")),
		protocol.ChangePlayer("s3", protocol.Field(domain.FieldName, "Ben")),
	}))
	require.NoError(t, st.Apply([]protocol.Patch{
		protocol.RemovePlayer("s2"),
		protocol.RemovePlayer("s3"),
		protocol.RemovePlayer("s1"),
	}))

	assert.Len(t, rec.of(events.TypePlayerJoined), 2)
	assert.Len(t, rec.of(events.TypePlayerLeft), 2)
	assert.Equal(t, []domain.SessionID{"s2", "s3"}, rel.sids)
	for _, e := range rec.got {
		if pj, ok := e.(events.PlayerJoined); ok {
			assert.NotEqual(t, domain.SessionID("s1"), pj.SessionID)
		}
	}
}

func TestTranslator_NameTransitions(t *testing.T) {
	st, rec, _ := setup(t, "s1", protocol.Snapshot{})

	require.NoError(t, st.Apply([]protocol.Patch{protocol.AddPlayer(domain.Player{SessionID: "K"})}))
	require.NoError(t, st.Apply([]protocol.Patch{protocol.ChangePlayer("K", protocol.Field(domain.FieldName, "Alice"))}))
	require.NoError(t, st.Apply([]protocol.Patch{protocol.ChangePlayer("K", protocol.Field(domain.FieldName, "Bob"))}))
	require.NoError(t, st.Apply([]protocol.Patch{protocol.ChangePlayer("K", protocol.Field(domain.FieldName, "Bob"))}))

	joined := rec.of(events.TypePlayerJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "Alice", joined[0].(events.PlayerJoined).Player.Name)

	updates := rec.of(events.TypePlayerFieldUpdated)
	require.Len(t, updates, 2)
	last := updates[1].(events.PlayerFieldUpdated)
	assert.Equal(t, domain.SessionID("K"), last.SessionID)
	assert.Equal(t, domain.NameChanged{Name: "Bob"}, last.Change)
}

func TestTranslator_FieldOrderThenJoined(t *testing.T) {
	st, rec, _ := setup(t, "s1", protocol.Snapshot{Players: []domain.Player{{SessionID: "s1", Name: "me"}}})
	require.Equal(t, []events.Event{events.PlayerCountChanged{Count: 1}}, rec.got)
	rec.got = nil

	require.NoError(t, st.Apply([]protocol.Patch{
		protocol.AddPlayer(domain.Player{SessionID: "s2"}),
		protocol.ChangePlayer("s2",
			protocol.Field(domain.FieldX, 5),
			protocol.Field(domain.FieldName, "Carol"),
			protocol.Field(domain.FieldAnim, "sit"),
		),
	}))

	var types []events.Type
	for _, e := range rec.got {
		types = append(types, e.Type())
	}
	assert.Equal(t, []events.Type{
		events.TypePlayerFieldUpdated,
		events.TypePlayerFieldUpdated,
		events.TypePlayerJoined,
		events.TypePlayerFieldUpdated,
		events.TypePlayerCountChanged,
	}, types)
	assert.Equal(t, events.PlayerCountChanged{Count: 2}, rec.got[len(rec.got)-1])
}

func TestTranslator_IdentifiedOnAttach(t *testing.T) {
	_, rec, _ := setup(t, "s1", protocol.Snapshot{Players: []domain.Player{
		{SessionID: "s1", Name: "me"},
		{SessionID: "s2", Name: "Dana"},
		{SessionID: "s3"},
	}})

	joined := rec.of(events.TypePlayerJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, domain.SessionID("s2"), joined[0].(events.PlayerJoined).SessionID)
}

func TestTranslator_Seats(t *testing.T) {
	st, rec, _ := setup(t, "s1", protocol.Snapshot{
		Tables: []domain.Table{{ID: "t1", ConnectedUsers: []domain.SessionID{"s4"}}},
	})

	require.NoError(t, st.Apply([]protocol.Patch{
		protocol.AddTable(domain.Table{ID: "t2"}),
		protocol.Seat("t2", "s5"),
		protocol.Unseat("t1", "s4"),
		protocol.Unseat("t2", "s5"),
	}))

	assert.Equal(t, []events.Event{
		events.SeatOccupied{SessionID: "s4", TableID: "t1", Kind: domain.SeatChair},
		events.SeatOccupied{SessionID: "s5", TableID: "t2", Kind: domain.SeatChair},
	}, rec.of(events.TypeSeatOccupied))
	assert.Equal(t, []events.Event{
		events.SeatVacated{SessionID: "s4", TableID: "t1", Kind: domain.SeatChair},
		events.SeatVacated{SessionID: "s5", TableID: "t2", Kind: domain.SeatChair},
	}, rec.of(events.TypeSeatVacated))
}

func TestTranslator_RemovedTablesReleaseSeatListeners(t *testing.T) {
	bus := eventbus.New()
	rec := &recorder{}
	bus.SubscribeAll(func(e events.Event) { rec.got = append(rec.got, e) })
	st := state.New()
	tr := New(bus, nil)
	tr.Attach(st, "s1")
	base := tr.listenerCount()

	for range 50 {
		require.NoError(t, st.Apply([]protocol.Patch{
			protocol.AddTable(domain.Table{ID: "t1"}),
			protocol.RemoveTable("t1"),
		}))
	}
	assert.Equal(t, base, tr.listenerCount())

	require.NoError(t, st.Apply([]protocol.Patch{
		protocol.AddTable(domain.Table{ID: "t1"}),
		protocol.Seat("t1", "s2"),
	}))
	assert.Equal(t, base+2, tr.listenerCount())
	assert.Len(t, rec.of(events.TypeSeatOccupied), 1)
}

func TestTranslator_ChatOrder(t *testing.T) {
	st, rec, _ := setup(t, "s1", protocol.Snapshot{
		ChatMessages: []domain.ChatMessage{{Author: "s2", Content: "m0"}},
	})

	require.NoError(t, st.Apply([]protocol.Patch{
		protocol.AddChat(domain.ChatMessage{Author: "s2", Content: "m1"}),
		protocol.AddChat(domain.ChatMessage{Author: "s3", Content: "m2"}),
	}))
	require.NoError(t, st.Apply([]protocol.Patch{
		protocol.AddChat(domain.ChatMessage{Author: "s2", Content: "m3"}),
	}))

	var contents []string
	for _, e := range rec.of(events.TypeChatMessageReceived) {
		contents = append(contents, e.(events.ChatMessageReceived).Message.Content)
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m3"}, contents)
}

func TestTranslator_Detach(t *testing.T) {
	bus := eventbus.New()
	rec := &recorder{}
	bus.SubscribeAll(func(e events.Event) { rec.got = append(rec.got, e) })
	st := state.New()
	tr := New(bus, nil)
	tr.Attach(st, "s1")
	tr.WatchCount(st)
	rec.got = nil
	tr.Detach()

	require.NoError(t, st.Apply([]protocol.Patch{
		protocol.AddPlayer(domain.Player{SessionID: "s2", Name: "Eve"}),
		protocol.AddChat(domain.ChatMessage{Content: "x"}),
	}))

	assert.Empty(t, rec.got)
}
