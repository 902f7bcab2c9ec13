package protocol

import "github.com/dkeye/Lounge/internal/domain"

// Outbound payloads.

type PositionUpdate struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Anim string  `json:"anim"`
}

type NameUpdate struct {
	Name   string        `json:"name"`
	UserID domain.UserID `json:"userId"`
}

type ClientRef struct {
	ClientID domain.SessionID `json:"clientId"`
}

type TableRef struct {
	TableID domain.TableID `json:"tableId"`
}

type ChairStatus struct {
	ChairID  domain.ChairID `json:"chairId"`
	Occupied bool           `json:"occupied"`
}

type ChatContent struct {
	Content string `json:"content"`
}

type PrivateMessage struct {
	RecipientID domain.SessionID `json:"recipientId"`
	Content     string           `json:"content"`
}

type MessageAck struct {
	MessageID string `json:"messageId"`
}

type PeerSignalOut struct {
	To     domain.SessionID  `json:"to"`
	Signal domain.PeerSignal `json:"signal"`
}

// Inbound payloads.

type ChatBroadcastPayload struct {
	ClientID domain.SessionID `json:"clientId"`
	Content  string           `json:"content"`
}

type DialogBubblePayload struct {
	ClientID domain.SessionID `json:"clientId"`
	Content  string           `json:"content"`
}

type DisconnectStreamPayload struct {
	ClientID domain.SessionID `json:"clientId"`
}

type StopTableTalkPayload struct {
	ClientID domain.SessionID `json:"clientId"`
	TableID  domain.TableID   `json:"tableId"`
}

type PrivateMessagePayload struct {
	MessageID string           `json:"messageId"`
	SenderID  domain.SessionID `json:"senderId"`
	Content   string           `json:"content"`
}

type PeerSignalIn struct {
	From   domain.SessionID  `json:"from"`
	Signal domain.PeerSignal `json:"signal"`
}

type RoomMetadataPayload = domain.RoomMetadata
