package session

import (
	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/events"
	"github.com/dkeye/Lounge/internal/protocol"
)

// Send delivers one message at most once. Failures are logged and
// otherwise ignored.
func (rs *RoomSession) Send(kind protocol.OutboundKind, payload any) {
	if !rs.Live() {
		rs.log.Debug().Str("kind", string(kind)).Msg("send on closed session dropped")
		return
	}
	if !rs.limiter.Allow(kind) {
		rs.log.Debug().Str("kind", string(kind)).Msg("send rate limited")
		return
	}
	b, err := protocol.EncodeMessage(kind, payload)
	if err != nil {
		rs.log.Error().Err(err).Str("kind", string(kind)).Msg("send encode")
		return
	}
	if err := rs.link.TrySend(b); err != nil {
		rs.log.Warn().Err(err).Str("kind", string(kind)).Msg("send dropped")
	}
}

func (rs *RoomSession) UpdatePosition(x, y float64, anim string) {
	rs.Send(protocol.PlayerPositionUpdate, protocol.PositionUpdate{X: x, Y: y, Anim: anim})
}

func (rs *RoomSession) UpdateName(name string, userID domain.UserID) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	rs.Send(protocol.PlayerNameUpdate, protocol.NameUpdate{Name: name, UserID: userID})
	return nil
}

// ReadyToConnect tells the room the local media is ready and announces it
// locally.
func (rs *RoomSession) ReadyToConnect() {
	rs.Send(protocol.ReadyToConnect, nil)
	rs.bus.Publish(events.MyPlayerReady{SessionID: rs.sessionID})
}

func (rs *RoomSession) VideoConnected() {
	rs.Send(protocol.VideoConnected, nil)
	rs.bus.Publish(events.MyVideoConnected{SessionID: rs.sessionID})
}

func (rs *RoomSession) DisconnectStream(peer domain.SessionID) {
	rs.Send(protocol.DisconnectStream, protocol.ClientRef{ClientID: peer})
}

func (rs *RoomSession) ConnectToTable(id domain.TableID) {
	rs.Send(protocol.ConnectToTable, protocol.TableRef{TableID: id})
}

// DisconnectFromTable leaves a table and hangs up on everyone seated at
// it, telling each of them to do the same.
func (rs *RoomSession) DisconnectFromTable(id domain.TableID) {
	rs.Send(protocol.DisconnectFromTable, protocol.TableRef{TableID: id})
	if rs.presence == nil {
		return
	}
	tb, ok := rs.st.Table(id)
	if !ok {
		return
	}
	for _, sid := range tb.ConnectedUsers {
		if sid == rs.sessionID {
			continue
		}
		if err := rs.presence.Drop(sid); err != nil {
			rs.log.Warn().Err(err).Str("peer", string(sid)).Str("table", string(id)).Msg("table peer not dropped")
		}
	}
}

func (rs *RoomSession) UpdateChairStatus(id domain.ChairID, occupied bool) {
	rs.Send(protocol.UpdateChairStatus, protocol.ChairStatus{ChairID: id, Occupied: occupied})
}

func (rs *RoomSession) StopTableTalk(id domain.TableID) {
	rs.Send(protocol.StopTableTalk, protocol.TableRef{TableID: id})
}

func (rs *RoomSession) AddChatMessage(content string) {
	rs.Send(protocol.AddChatMessage, protocol.ChatContent{Content: content})
}

func (rs *RoomSession) SendPrivateMessage(to domain.SessionID, content string) {
	rs.Send(protocol.SendPrivateMessage, protocol.PrivateMessage{RecipientID: to, Content: content})
}

func (rs *RoomSession) AckPrivateMessage(id string) {
	rs.Send(protocol.AcknowledgePrivateMessage, protocol.MessageAck{MessageID: id})
}

// SendPeerSignal relays one call negotiation step to a peer.
func (rs *RoomSession) SendPeerSignal(to domain.SessionID, sig domain.PeerSignal) {
	rs.Send(protocol.SendPeerSignal, protocol.PeerSignalOut{To: to, Signal: sig})
}
