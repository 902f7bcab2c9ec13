// Package protocol is the message vocabulary exchanged with the lobby and
// room endpoints.
package protocol

// OutboundKind names a client to room message.
type OutboundKind string

const (
	PlayerPositionUpdate      OutboundKind = "player-position-update"
	PlayerNameUpdate          OutboundKind = "player-name-update"
	ReadyToConnect            OutboundKind = "ready-to-connect"
	VideoConnected            OutboundKind = "video-connected"
	DisconnectStream          OutboundKind = "disconnect-stream"
	ConnectToTable            OutboundKind = "connect-to-table"
	DisconnectFromTable       OutboundKind = "disconnect-from-table"
	UpdateChairStatus         OutboundKind = "update-chair-status"
	StopTableTalk             OutboundKind = "stop-table-talk"
	AddChatMessage            OutboundKind = "add-chat-message"
	SendPrivateMessage        OutboundKind = "send-private-message"
	AcknowledgePrivateMessage OutboundKind = "acknowledge-private-message"
	SendPeerSignal            OutboundKind = "peer-signal"
)

// InboundKind names a room to client message.
type InboundKind string

const (
	RoomMetadataPush     InboundKind = "room-metadata-push"
	ChatBroadcast        InboundKind = "chat-broadcast"
	DialogBubbleUpdate   InboundKind = "dialog-bubble-update"
	DisconnectStreamNote InboundKind = "disconnect-stream-signal"
	StopTableTalkNote    InboundKind = "stop-table-talk-signal"
	PrivateMessageNotice InboundKind = "private-message-notice"
	ReceivePeerSignal    InboundKind = "peer-signal"
)

var outboundKinds = map[OutboundKind]struct{}{
	PlayerPositionUpdate:      {},
	PlayerNameUpdate:          {},
	ReadyToConnect:            {},
	VideoConnected:            {},
	DisconnectStream:          {},
	ConnectToTable:            {},
	DisconnectFromTable:       {},
	UpdateChairStatus:         {},
	StopTableTalk:             {},
	AddChatMessage:            {},
	SendPrivateMessage:        {},
	AcknowledgePrivateMessage: {},
	SendPeerSignal:            {},
}

func (k OutboundKind) Valid() bool {
	_, ok := outboundKinds[k]
	return ok
}

// FrameType is the envelope discriminator.
type FrameType string

const (
	FrameJoin        FrameType = "join"
	FrameJoined      FrameType = "joined"
	FrameError       FrameType = "error"
	FramePatch       FrameType = "patch"
	FrameMessage     FrameType = "message"
	FrameLeave       FrameType = "leave"
	FrameRooms       FrameType = "rooms"
	FrameRoomAdded   FrameType = "room-added"
	FrameRoomRemoved FrameType = "room-removed"
)

type JoinMethod string

const (
	JoinOrCreate JoinMethod = "joinOrCreate"
	JoinByID     JoinMethod = "joinById"
	CreateRoom   JoinMethod = "create"
)
