// Package translator turns structural state changes into semantic events.
package translator

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/events"
	"github.com/dkeye/Lounge/internal/state"
)

// Publisher is the part of the event bus the translator needs.
type Publisher interface {
	Publish(events.Event)
}

// Releaser tears down whatever is bound to a departed player.
type Releaser interface {
	Release(sid domain.SessionID)
}

// Translator is bound to one session's state. It must be attached before
// the session starts applying patches.
type Translator struct {
	bus      Publisher
	releaser Releaser
	self     domain.SessionID

	mu      sync.Mutex
	joined  map[domain.SessionID]bool
	offs    []func()
	players map[domain.SessionID]func()
	tables  map[domain.TableID][]func()
}

func New(bus Publisher, releaser Releaser) *Translator {
	return &Translator{
		bus:      bus,
		releaser: releaser,
		joined:   make(map[domain.SessionID]bool),
		players:  make(map[domain.SessionID]func()),
		tables:   make(map[domain.TableID][]func()),
	}
}

// Attach wires listeners to every collection of st. Entries already in st
// are replayed as additions. self is never reported as a remote player.
func (t *Translator) Attach(st *state.State, self domain.SessionID) {
	t.mu.Lock()
	t.self = self
	t.mu.Unlock()

	t.track(st.OnPlayerAdd(func(p domain.Player) { t.playerAdded(st, p) }, true))
	t.track(st.OnPlayerRemove(t.playerRemoved))
	t.track(st.OnTableAdd(func(tb domain.Table) { t.tableAdded(st, tb) }, true))
	t.track(st.OnTableRemove(t.tableRemoved))
	t.track(st.OnChatAdd(func(m domain.ChatMessage) {
		t.bus.Publish(events.ChatMessageReceived{Message: m})
	}, true))
}

// WatchCount publishes the player count now and after every state change.
func (t *Translator) WatchCount(st *state.State) {
	t.track(st.OnChange(func() {
		t.bus.Publish(events.PlayerCountChanged{Count: st.PlayerCount()})
	}))
	t.bus.Publish(events.PlayerCountChanged{Count: st.PlayerCount()})
}

// Detach removes every listener installed by Attach and WatchCount.
func (t *Translator) Detach() {
	t.mu.Lock()
	offs := t.offs
	t.offs = nil
	for _, off := range t.players {
		offs = append(offs, off)
	}
	for _, seat := range t.tables {
		offs = append(offs, seat...)
	}
	t.players = make(map[domain.SessionID]func())
	t.tables = make(map[domain.TableID][]func())
	t.mu.Unlock()

	for _, off := range offs {
		off()
	}
}

func (t *Translator) track(off func()) {
	t.mu.Lock()
	t.offs = append(t.offs, off)
	t.mu.Unlock()
}

func (t *Translator) isSelf(sid domain.SessionID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sid == t.self
}

func (t *Translator) playerAdded(st *state.State, p domain.Player) {
	if t.isSelf(p.SessionID) {
		return
	}
	off := st.OnPlayerChange(p.SessionID, t.playerChanged(st))

	t.mu.Lock()
	t.players[p.SessionID] = off
	t.mu.Unlock()

	if p.Identified() {
		t.announce(p)
	}
}

func (t *Translator) playerChanged(st *state.State) state.ChangesFunc {
	return func(sid domain.SessionID, changes []domain.FieldChange) {
		for _, c := range changes {
			t.bus.Publish(events.PlayerFieldUpdated{SessionID: sid, Change: c})

			if nc, ok := c.(domain.NameChanged); ok && nc.Name != "" {
				p, ok := st.Player(sid)
				if !ok {
					p = domain.Player{SessionID: sid, Name: nc.Name}
				}
				t.announce(p)
			}
		}
	}
}

// announce publishes PlayerJoined at most once per player.
func (t *Translator) announce(p domain.Player) {
	t.mu.Lock()
	if t.joined[p.SessionID] {
		t.mu.Unlock()
		return
	}
	t.joined[p.SessionID] = true
	t.mu.Unlock()

	log.Debug().Str("module", "translator").Str("sid", string(p.SessionID)).Str("name", p.Name).Msg("player joined")
	t.bus.Publish(events.PlayerJoined{SessionID: p.SessionID, Player: p})
}

func (t *Translator) playerRemoved(p domain.Player) {
	if t.isSelf(p.SessionID) {
		return
	}
	t.mu.Lock()
	delete(t.joined, p.SessionID)
	delete(t.players, p.SessionID)
	t.mu.Unlock()

	t.bus.Publish(events.PlayerLeft{SessionID: p.SessionID, Player: p})
	if t.releaser != nil {
		t.releaser.Release(p.SessionID)
	}
}

func (t *Translator) tableAdded(st *state.State, tb domain.Table) {
	id := tb.ID
	seat := []func(){
		st.OnSeatAdd(id, func(table domain.TableID, sid domain.SessionID) {
			t.bus.Publish(events.SeatOccupied{SessionID: sid, TableID: table, Kind: domain.SeatChair})
		}, true),
		st.OnSeatRemove(id, func(table domain.TableID, sid domain.SessionID) {
			t.bus.Publish(events.SeatVacated{SessionID: sid, TableID: table, Kind: domain.SeatChair})
		}),
	}
	t.mu.Lock()
	t.tables[id] = seat
	t.mu.Unlock()
}

// tableRemoved forgets the seat listeners of a removed table. The state
// has already dropped them on its side.
func (t *Translator) tableRemoved(tb domain.Table) {
	t.mu.Lock()
	delete(t.tables, tb.ID)
	t.mu.Unlock()
}

// listenerCount is the number of removers held.
func (t *Translator) listenerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.offs) + len(t.players)
	for _, seat := range t.tables {
		n += len(seat)
	}
	return n
}
