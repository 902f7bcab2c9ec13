package state

import (
	"github.com/dkeye/Lounge/internal/domain"
)

type (
	PlayerFunc  func(domain.Player)
	ChangesFunc func(sid domain.SessionID, changes []domain.FieldChange)
	TableFunc   func(domain.Table)
	SeatFunc    func(table domain.TableID, sid domain.SessionID)
	ChatFunc    func(domain.ChatMessage)
)

type listener[F any] struct {
	id uint64
	fn F
}

type listeners[F any] struct {
	entries []listener[F]
}

func (l *listeners[F]) add(id uint64, fn F) {
	l.entries = append(l.entries, listener[F]{id: id, fn: fn})
}

func (l *listeners[F]) remove(id uint64) {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listeners[F]) fns() []F {
	if l == nil {
		return nil
	}
	out := make([]F, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.fn
	}
	return out
}

type hookSet struct {
	next         uint64
	playerAdd    listeners[PlayerFunc]
	playerRemove listeners[PlayerFunc]
	playerChange map[domain.SessionID]*listeners[ChangesFunc]
	tableAdd     listeners[TableFunc]
	tableRemove  listeners[TableFunc]
	seatAdd      map[domain.TableID]*listeners[SeatFunc]
	seatRemove   map[domain.TableID]*listeners[SeatFunc]
	chatAdd      listeners[ChatFunc]
	change       listeners[func()]
}

func newHookSet() hookSet {
	return hookSet{
		playerChange: make(map[domain.SessionID]*listeners[ChangesFunc]),
		seatAdd:      make(map[domain.TableID]*listeners[SeatFunc]),
		seatRemove:   make(map[domain.TableID]*listeners[SeatFunc]),
	}
}

// register adds fn under a fresh id and returns its remover. Callers hold
// no lock.
func (s *State) register(add func(id uint64), remove func(id uint64)) func() {
	s.hmu.Lock()
	s.hooks.next++
	id := s.hooks.next
	add(id)
	s.hmu.Unlock()

	return func() {
		s.hmu.Lock()
		remove(id)
		s.hmu.Unlock()
	}
}

func keyed[K comparable, F any](m map[K]*listeners[F], k K) *listeners[F] {
	l, ok := m[k]
	if !ok {
		l = &listeners[F]{}
		m[k] = l
	}
	return l
}

// OnPlayerAdd fires for every player added. With immediate set, players
// already present are enumerated first.
func (s *State) OnPlayerAdd(fn PlayerFunc, immediate bool) func() {
	off := s.register(
		func(id uint64) { s.hooks.playerAdd.add(id, fn) },
		func(id uint64) { s.hooks.playerAdd.remove(id) },
	)
	if immediate {
		for _, p := range s.View().Players {
			fn(p)
		}
	}
	return off
}

func (s *State) OnPlayerRemove(fn PlayerFunc) func() {
	return s.register(
		func(id uint64) { s.hooks.playerRemove.add(id, fn) },
		func(id uint64) { s.hooks.playerRemove.remove(id) },
	)
}

// OnPlayerChange listens to field batches of a single player. The listener
// is dropped when that player is removed.
func (s *State) OnPlayerChange(sid domain.SessionID, fn ChangesFunc) func() {
	return s.register(
		func(id uint64) { keyed(s.hooks.playerChange, sid).add(id, fn) },
		func(id uint64) {
			if l, ok := s.hooks.playerChange[sid]; ok {
				l.remove(id)
			}
		},
	)
}

func (s *State) OnTableAdd(fn TableFunc, immediate bool) func() {
	off := s.register(
		func(id uint64) { s.hooks.tableAdd.add(id, fn) },
		func(id uint64) { s.hooks.tableAdd.remove(id) },
	)
	if immediate {
		for _, t := range s.View().Tables {
			fn(t)
		}
	}
	return off
}

func (s *State) OnTableRemove(fn TableFunc) func() {
	return s.register(
		func(id uint64) { s.hooks.tableRemove.add(id, fn) },
		func(id uint64) { s.hooks.tableRemove.remove(id) },
	)
}

// OnSeatAdd listens to additions to one table's connected users.
func (s *State) OnSeatAdd(table domain.TableID, fn SeatFunc, immediate bool) func() {
	off := s.register(
		func(id uint64) { keyed(s.hooks.seatAdd, table).add(id, fn) },
		func(id uint64) {
			if l, ok := s.hooks.seatAdd[table]; ok {
				l.remove(id)
			}
		},
	)
	if immediate {
		if t, ok := s.Table(table); ok {
			for _, sid := range t.ConnectedUsers {
				fn(table, sid)
			}
		}
	}
	return off
}

func (s *State) OnSeatRemove(table domain.TableID, fn SeatFunc) func() {
	return s.register(
		func(id uint64) { keyed(s.hooks.seatRemove, table).add(id, fn) },
		func(id uint64) {
			if l, ok := s.hooks.seatRemove[table]; ok {
				l.remove(id)
			}
		},
	)
}

func (s *State) OnChatAdd(fn ChatFunc, immediate bool) func() {
	off := s.register(
		func(id uint64) { s.hooks.chatAdd.add(id, fn) },
		func(id uint64) { s.hooks.chatAdd.remove(id) },
	)
	if immediate {
		for _, m := range s.View().ChatMessages {
			fn(m)
		}
	}
	return off
}

// OnChange fires once after every patch batch that mutated anything.
func (s *State) OnChange(fn func()) func() {
	return s.register(
		func(id uint64) { s.hooks.change.add(id, fn) },
		func(id uint64) { s.hooks.change.remove(id) },
	)
}
