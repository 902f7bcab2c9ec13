// Package state holds the client copy of a room's shared collections and
// notifies listeners about structural changes to them.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/protocol"
)

// InvariantViolation is a patch that does not fit the current state, such
// as a change for an unknown key. The patch is ignored.
type InvariantViolation struct {
	Collection protocol.Collection
	Op         protocol.Op
	Key        string
	Reason     string
	Err        error
}

func (e *InvariantViolation) Error() string {
	msg := fmt.Sprintf("state %s %s %q: %s", e.Collection, e.Op, e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvariantViolation) Unwrap() error { return e.Err }

type table struct {
	id    domain.TableID
	users []domain.SessionID
}

func (t *table) view() domain.Table {
	return domain.Table{ID: t.id, ConnectedUsers: slices.Clone(t.users)}
}

// State is written only by Apply and Load. Listeners run after the write
// lock is released, so they may read the state freely.
type State struct {
	mu          sync.RWMutex
	players     map[domain.SessionID]*domain.Player
	playerOrder []domain.SessionID
	tables      map[domain.TableID]*table
	tableOrder  []domain.TableID
	chairs      map[domain.ChairID]*domain.Chair
	chairOrder  []domain.ChairID
	chat        []domain.ChatMessage

	hmu   sync.Mutex
	hooks hookSet
}

func New() *State {
	return &State{
		players: make(map[domain.SessionID]*domain.Player),
		tables:  make(map[domain.TableID]*table),
		chairs:  make(map[domain.ChairID]*domain.Chair),
		hooks:   newHookSet(),
	}
}

// Load replaces the content with a join snapshot without notifying
// listeners. Duplicate keys keep the first entry.
func (s *State) Load(snap protocol.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.players = make(map[domain.SessionID]*domain.Player, len(snap.Players))
	s.playerOrder = s.playerOrder[:0]
	s.tables = make(map[domain.TableID]*table, len(snap.Tables))
	s.tableOrder = s.tableOrder[:0]
	s.chairs = make(map[domain.ChairID]*domain.Chair, len(snap.Chairs))
	s.chairOrder = s.chairOrder[:0]
	s.chat = slices.Clone(snap.ChatMessages)

	var errs []error
	for _, p := range snap.Players {
		if _, ok := s.players[p.SessionID]; ok || p.SessionID == "" {
			errs = append(errs, &InvariantViolation{Collection: protocol.Players, Op: protocol.OpAdd, Key: string(p.SessionID), Reason: "duplicate or empty key"})
			continue
		}
		s.players[p.SessionID] = &p
		s.playerOrder = append(s.playerOrder, p.SessionID)
	}
	for _, t := range snap.Tables {
		if _, ok := s.tables[t.ID]; ok || t.ID == "" {
			errs = append(errs, &InvariantViolation{Collection: protocol.Tables, Op: protocol.OpAdd, Key: string(t.ID), Reason: "duplicate or empty key"})
			continue
		}
		s.tables[t.ID] = &table{id: t.ID, users: dedupe(t.ConnectedUsers)}
		s.tableOrder = append(s.tableOrder, t.ID)
	}
	for _, c := range snap.Chairs {
		if _, ok := s.chairs[c.ID]; ok || c.ID == "" {
			errs = append(errs, &InvariantViolation{Collection: protocol.Chairs, Op: protocol.OpAdd, Key: string(c.ID), Reason: "duplicate or empty key"})
			continue
		}
		s.chairs[c.ID] = &c
		s.chairOrder = append(s.chairOrder, c.ID)
	}
	return errors.Join(errs...)
}

func dedupe(ids []domain.SessionID) []domain.SessionID {
	out := make([]domain.SessionID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Apply mutates the state patch by patch, firing the listeners of each
// patch before the next one is applied. Patches that violate the current
// state are skipped and reported in the returned error.
func (s *State) Apply(patches []protocol.Patch) error {
	var errs []error
	mutated := false
	for _, p := range patches {
		fire, err := s.apply(p)
		if err != nil {
			errs = append(errs, err)
		}
		if fire != nil {
			mutated = true
			fire()
		}
	}
	if mutated {
		s.hmu.Lock()
		fns := s.hooks.change.fns()
		s.hmu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
	return errors.Join(errs...)
}

// apply returns nil fire when the patch changed nothing.
func (s *State) apply(p protocol.Patch) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p.Collection {
	case protocol.Players:
		return s.applyPlayer(p)
	case protocol.Tables:
		return s.applyTable(p)
	case protocol.Chairs:
		return s.applyChair(p)
	case protocol.ChatMessages:
		return s.applyChat(p)
	default:
		return nil, violation(p, "unknown collection", nil)
	}
}

func violation(p protocol.Patch, reason string, err error) error {
	return &InvariantViolation{Collection: p.Collection, Op: p.Op, Key: p.Key, Reason: reason, Err: err}
}

func (s *State) applyPlayer(p protocol.Patch) (func(), error) {
	sid := domain.SessionID(p.Key)
	switch p.Op {
	case protocol.OpAdd:
		var pl domain.Player
		if err := json.Unmarshal(p.Value, &pl); err != nil {
			return nil, violation(p, "bad player value", err)
		}
		if sid == "" {
			sid = pl.SessionID
		}
		pl.SessionID = sid
		if sid == "" {
			return nil, violation(p, "empty key", nil)
		}
		if _, ok := s.players[sid]; ok {
			return nil, violation(p, "duplicate key", nil)
		}
		s.players[sid] = &pl
		s.playerOrder = append(s.playerOrder, sid)

		s.hmu.Lock()
		fns := s.hooks.playerAdd.fns()
		s.hmu.Unlock()
		return func() {
			for _, fn := range fns {
				fn(pl)
			}
		}, nil

	case protocol.OpRemove:
		pl, ok := s.players[sid]
		if !ok {
			return nil, violation(p, "unknown key", nil)
		}
		last := *pl
		delete(s.players, sid)
		s.playerOrder = slices.DeleteFunc(s.playerOrder, func(k domain.SessionID) bool { return k == sid })

		s.hmu.Lock()
		fns := s.hooks.playerRemove.fns()
		delete(s.hooks.playerChange, sid)
		s.hmu.Unlock()
		return func() {
			for _, fn := range fns {
				fn(last)
			}
		}, nil

	case protocol.OpChange:
		pl, ok := s.players[sid]
		if !ok {
			return nil, violation(p, "unknown key", nil)
		}
		var changes []domain.FieldChange
		var errs []error
		for _, f := range p.Fields {
			c, changed, err := pl.ApplyField(f.Field, f.Value)
			if err != nil {
				errs = append(errs, fmt.Errorf("field %s: %w", f.Field, err))
				continue
			}
			if changed {
				changes = append(changes, c)
			}
		}
		var err error
		if len(errs) > 0 {
			err = violation(p, "bad field value", errors.Join(errs...))
		}
		if len(changes) == 0 {
			return nil, err
		}

		s.hmu.Lock()
		fns := s.hooks.playerChange[sid].fns()
		s.hmu.Unlock()
		return func() {
			for _, fn := range fns {
				fn(sid, changes)
			}
		}, err
	}
	return nil, violation(p, "unsupported op", nil)
}

func (s *State) applyTable(p protocol.Patch) (func(), error) {
	id := domain.TableID(p.Key)
	if p.Path != "" {
		return s.applySeat(p, id)
	}
	switch p.Op {
	case protocol.OpAdd:
		var t domain.Table
		if len(p.Value) > 0 {
			if err := json.Unmarshal(p.Value, &t); err != nil {
				return nil, violation(p, "bad table value", err)
			}
		}
		if id == "" {
			id = t.ID
		}
		if id == "" {
			return nil, violation(p, "empty key", nil)
		}
		if _, ok := s.tables[id]; ok {
			return nil, violation(p, "duplicate key", nil)
		}
		tb := &table{id: id, users: dedupe(t.ConnectedUsers)}
		s.tables[id] = tb
		s.tableOrder = append(s.tableOrder, id)
		v := tb.view()

		s.hmu.Lock()
		fns := s.hooks.tableAdd.fns()
		s.hmu.Unlock()
		return func() {
			for _, fn := range fns {
				fn(v)
			}
		}, nil

	case protocol.OpRemove:
		tb, ok := s.tables[id]
		if !ok {
			return nil, violation(p, "unknown key", nil)
		}
		v := tb.view()
		delete(s.tables, id)
		s.tableOrder = slices.DeleteFunc(s.tableOrder, func(k domain.TableID) bool { return k == id })

		s.hmu.Lock()
		fns := s.hooks.tableRemove.fns()
		delete(s.hooks.seatAdd, id)
		delete(s.hooks.seatRemove, id)
		s.hmu.Unlock()
		return func() {
			for _, fn := range fns {
				fn(v)
			}
		}, nil
	}
	return nil, violation(p, "unsupported op", nil)
}

func (s *State) applySeat(p protocol.Patch, id domain.TableID) (func(), error) {
	if p.Path != protocol.PathConnectedUsers {
		return nil, violation(p, "unknown path "+p.Path, nil)
	}
	tb, ok := s.tables[id]
	if !ok {
		return nil, violation(p, "unknown key", nil)
	}
	var sid domain.SessionID
	if err := json.Unmarshal(p.Value, &sid); err != nil || sid == "" {
		return nil, violation(p, "bad seat value", err)
	}

	switch p.Op {
	case protocol.OpAdd:
		if slices.Contains(tb.users, sid) {
			return nil, nil
		}
		tb.users = append(tb.users, sid)
		s.hmu.Lock()
		fns := s.hooks.seatAdd[id].fns()
		s.hmu.Unlock()
		return func() {
			for _, fn := range fns {
				fn(id, sid)
			}
		}, nil

	case protocol.OpRemove:
		i := slices.Index(tb.users, sid)
		if i < 0 {
			return nil, violation(p, "user not seated", nil)
		}
		tb.users = slices.Delete(tb.users, i, i+1)
		s.hmu.Lock()
		fns := s.hooks.seatRemove[id].fns()
		s.hmu.Unlock()
		return func() {
			for _, fn := range fns {
				fn(id, sid)
			}
		}, nil
	}
	return nil, violation(p, "unsupported op", nil)
}

func (s *State) applyChair(p protocol.Patch) (func(), error) {
	id := domain.ChairID(p.Key)
	switch p.Op {
	case protocol.OpAdd:
		var c domain.Chair
		if len(p.Value) > 0 {
			if err := json.Unmarshal(p.Value, &c); err != nil {
				return nil, violation(p, "bad chair value", err)
			}
		}
		if id == "" {
			id = c.ID
		}
		if id == "" {
			return nil, violation(p, "empty key", nil)
		}
		if _, ok := s.chairs[id]; ok {
			return nil, violation(p, "duplicate key", nil)
		}
		c.ID = id
		s.chairs[id] = &c
		s.chairOrder = append(s.chairOrder, id)
		return func() {}, nil

	case protocol.OpRemove:
		if _, ok := s.chairs[id]; !ok {
			return nil, violation(p, "unknown key", nil)
		}
		delete(s.chairs, id)
		s.chairOrder = slices.DeleteFunc(s.chairOrder, func(k domain.ChairID) bool { return k == id })
		return func() {}, nil

	case protocol.OpChange:
		c, ok := s.chairs[id]
		if !ok {
			return nil, violation(p, "unknown key", nil)
		}
		next := *c
		for _, f := range p.Fields {
			var err error
			switch f.Field {
			case "occupied":
				err = json.Unmarshal(f.Value, &next.Occupied)
			case "occupantId":
				err = json.Unmarshal(f.Value, &next.OccupantID)
			case "tableId":
				err = json.Unmarshal(f.Value, &next.TableID)
			}
			if err != nil {
				return nil, violation(p, "bad field "+f.Field, err)
			}
		}
		if next == *c {
			return nil, nil
		}
		*c = next
		return func() {}, nil
	}
	return nil, violation(p, "unsupported op", nil)
}

func (s *State) applyChat(p protocol.Patch) (func(), error) {
	if p.Op != protocol.OpAdd {
		return nil, violation(p, "chat log is append-only", nil)
	}
	var m domain.ChatMessage
	if err := json.Unmarshal(p.Value, &m); err != nil {
		return nil, violation(p, "bad chat value", err)
	}
	s.chat = append(s.chat, m)

	s.hmu.Lock()
	fns := s.hooks.chatAdd.fns()
	s.hmu.Unlock()
	return func() {
		for _, fn := range fns {
			fn(m)
		}
	}, nil
}
