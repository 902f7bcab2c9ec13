// Package events is the transport-independent vocabulary published on the
// event bus.
package events

import (
	"encoding/json"

	"github.com/dkeye/Lounge/internal/domain"
)

type Type string

const (
	TypePlayerJoined           Type = "player-joined"
	TypePlayerLeft             Type = "player-left"
	TypePlayerFieldUpdated     Type = "player-field-updated"
	TypePlayerCountChanged     Type = "player-count-changed"
	TypeSeatOccupied           Type = "seat-occupied"
	TypeSeatVacated            Type = "seat-vacated"
	TypeChatMessageReceived    Type = "chat-message-received"
	TypeMyPlayerReady          Type = "my-player-ready"
	TypeMyVideoConnected       Type = "my-video-connected"
	TypeRoomMetadataUpdated    Type = "room-metadata-updated"
	TypeChatBroadcastReceived  Type = "chat-broadcast-received"
	TypeDialogBubbleUpdated    Type = "dialog-bubble-updated"
	TypePeerStreamDisconnected Type = "peer-stream-disconnected"
	TypeTableTalkStopped       Type = "table-talk-stopped"
	TypePrivateMessageReceived Type = "private-message-received"
	TypePeerSignalReceived     Type = "peer-signal-received"
	TypeRoomDisconnected       Type = "room-disconnected"
)

type Event interface {
	Type() Type
}

// PlayerJoined fires once a remote player becomes identified.
type PlayerJoined struct {
	SessionID domain.SessionID `json:"sessionId"`
	Player    domain.Player    `json:"player"`
}

type PlayerLeft struct {
	SessionID domain.SessionID `json:"sessionId"`
	Player    domain.Player    `json:"player"`
}

type PlayerFieldUpdated struct {
	SessionID domain.SessionID
	Change    domain.FieldChange
}

func (e PlayerFieldUpdated) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SessionID domain.SessionID `json:"sessionId"`
		Field     string           `json:"field"`
		Value     any              `json:"value"`
	}{e.SessionID, e.Change.Field(), e.Change.Value()})
}

type PlayerCountChanged struct {
	Count int `json:"count"`
}

type SeatOccupied struct {
	SessionID domain.SessionID `json:"sessionId"`
	TableID   domain.TableID   `json:"tableId"`
	Kind      domain.SeatKind  `json:"kind"`
}

type SeatVacated struct {
	SessionID domain.SessionID `json:"sessionId"`
	TableID   domain.TableID   `json:"tableId"`
	Kind      domain.SeatKind  `json:"kind"`
}

type ChatMessageReceived struct {
	Message domain.ChatMessage `json:"message"`
}

type MyPlayerReady struct {
	SessionID domain.SessionID `json:"sessionId"`
}

type MyVideoConnected struct {
	SessionID domain.SessionID `json:"sessionId"`
}

type RoomMetadataUpdated struct {
	Metadata domain.RoomMetadata `json:"metadata"`
}

type ChatBroadcastReceived struct {
	SessionID domain.SessionID `json:"sessionId"`
	Content   string           `json:"content"`
}

type DialogBubbleUpdated struct {
	SessionID domain.SessionID `json:"sessionId"`
	Content   string           `json:"content"`
}

// PeerStreamDisconnected is the server telling us a peer dropped its stream.
type PeerStreamDisconnected struct {
	SessionID domain.SessionID `json:"sessionId"`
}

type TableTalkStopped struct {
	SessionID domain.SessionID `json:"sessionId"`
	TableID   domain.TableID   `json:"tableId"`
}

type PrivateMessageReceived struct {
	MessageID string           `json:"messageId"`
	SenderID  domain.SessionID `json:"senderId"`
	Content   string           `json:"content"`
}

type PeerSignalReceived struct {
	From   domain.SessionID  `json:"from"`
	Signal domain.PeerSignal `json:"signal"`
}

// RoomDisconnected is terminal for the session it names.
type RoomDisconnected struct {
	RoomID    domain.RoomID    `json:"roomId"`
	SessionID domain.SessionID `json:"sessionId"`
	Reason    string           `json:"reason,omitempty"`
}

func (PlayerJoined) Type() Type           { return TypePlayerJoined }
func (PlayerLeft) Type() Type             { return TypePlayerLeft }
func (PlayerFieldUpdated) Type() Type     { return TypePlayerFieldUpdated }
func (PlayerCountChanged) Type() Type     { return TypePlayerCountChanged }
func (SeatOccupied) Type() Type           { return TypeSeatOccupied }
func (SeatVacated) Type() Type            { return TypeSeatVacated }
func (ChatMessageReceived) Type() Type    { return TypeChatMessageReceived }
func (MyPlayerReady) Type() Type          { return TypeMyPlayerReady }
func (MyVideoConnected) Type() Type       { return TypeMyVideoConnected }
func (RoomMetadataUpdated) Type() Type    { return TypeRoomMetadataUpdated }
func (ChatBroadcastReceived) Type() Type  { return TypeChatBroadcastReceived }
func (DialogBubbleUpdated) Type() Type    { return TypeDialogBubbleUpdated }
func (PeerStreamDisconnected) Type() Type { return TypePeerStreamDisconnected }
func (TableTalkStopped) Type() Type       { return TypeTableTalkStopped }
func (PrivateMessageReceived) Type() Type { return TypePrivateMessageReceived }
func (PeerSignalReceived) Type() Type     { return TypePeerSignalReceived }
func (RoomDisconnected) Type() Type       { return TypeRoomDisconnected }

// All lists every event type, in declaration order.
var All = []Type{
	TypePlayerJoined,
	TypePlayerLeft,
	TypePlayerFieldUpdated,
	TypePlayerCountChanged,
	TypeSeatOccupied,
	TypeSeatVacated,
	TypeChatMessageReceived,
	TypeMyPlayerReady,
	TypeMyVideoConnected,
	TypeRoomMetadataUpdated,
	TypeChatBroadcastReceived,
	TypeDialogBubbleUpdated,
	TypePeerStreamDisconnected,
	TypeTableTalkStopped,
	TypePrivateMessageReceived,
	TypePeerSignalReceived,
	TypeRoomDisconnected,
}
