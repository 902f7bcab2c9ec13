package state

import (
	"github.com/dkeye/Lounge/internal/domain"
)

// View is a detached copy of the state, safe to hand to other goroutines.
type View struct {
	Players      []domain.Player      `json:"players"`
	Tables       []domain.Table       `json:"tables"`
	Chairs       []domain.Chair       `json:"chairs"`
	ChatMessages []domain.ChatMessage `json:"chatMessages"`
}

func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Players:      make([]domain.Player, 0, len(s.playerOrder)),
		Tables:       make([]domain.Table, 0, len(s.tableOrder)),
		Chairs:       make([]domain.Chair, 0, len(s.chairOrder)),
		ChatMessages: make([]domain.ChatMessage, len(s.chat)),
	}
	for _, sid := range s.playerOrder {
		v.Players = append(v.Players, *s.players[sid])
	}
	for _, id := range s.tableOrder {
		v.Tables = append(v.Tables, s.tables[id].view())
	}
	for _, id := range s.chairOrder {
		v.Chairs = append(v.Chairs, *s.chairs[id])
	}
	copy(v.ChatMessages, s.chat)
	return v
}

func (s *State) Player(sid domain.SessionID) (domain.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[sid]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

func (s *State) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

func (s *State) Table(id domain.TableID) (domain.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	if !ok {
		return domain.Table{}, false
	}
	return t.view(), true
}
