package protocol

import (
	"encoding/json"

	"github.com/dkeye/Lounge/internal/domain"
)

type Collection string

const (
	Players      Collection = "players"
	Tables       Collection = "tables"
	Chairs       Collection = "chairs"
	ChatMessages Collection = "chatMessages"
)

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpChange Op = "change"
)

// PathConnectedUsers addresses the seat set nested in a table.
const PathConnectedUsers = "connectedUsers"

type FieldPatch struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// Patch is one structural change to a shared collection. Path is set when
// the change targets a collection nested inside the entry at Key.
type Patch struct {
	Collection Collection      `json:"collection"`
	Op         Op              `json:"op"`
	Key        string          `json:"key,omitempty"`
	Path       string          `json:"path,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Fields     []FieldPatch    `json:"fields,omitempty"`
}

// Snapshot is the full room state sent once on join.
type Snapshot struct {
	Players      []domain.Player      `json:"players"`
	Tables       []domain.Table       `json:"tables"`
	Chairs       []domain.Chair       `json:"chairs"`
	ChatMessages []domain.ChatMessage `json:"chatMessages"`
}

type JoinOptions struct {
	UserID      domain.UserID `json:"userId,omitempty"`
	PlayerName  string        `json:"playerName,omitempty"`
	Password    string        `json:"password,omitempty"`
	RoomName    string        `json:"name,omitempty"`
	Description string        `json:"description,omitempty"`
	AutoDispose bool          `json:"autoDispose,omitempty"`
}

type JoinFrame struct {
	Type     FrameType     `json:"type"`
	Method   JoinMethod    `json:"method"`
	RoomType string        `json:"roomType,omitempty"`
	RoomID   domain.RoomID `json:"roomId,omitempty"`
	Options  JoinOptions   `json:"options"`
}

type JoinedFrame struct {
	Type      FrameType        `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	RoomID    domain.RoomID    `json:"roomId"`
	State     Snapshot         `json:"state"`
}

type ErrorFrame struct {
	Type    FrameType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message,omitempty"`
}

type PatchFrame struct {
	Type    FrameType `json:"type"`
	Patches []Patch   `json:"patches"`
}

type MessageFrame struct {
	Type    FrameType       `json:"type"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type LeaveFrame struct {
	Type FrameType `json:"type"`
}

type RoomsFrame struct {
	Type  FrameType         `json:"type"`
	Rooms []domain.RoomInfo `json:"rooms"`
}

type RoomAddedFrame struct {
	Type FrameType       `json:"type"`
	Room domain.RoomInfo `json:"room"`
}

type RoomRemovedFrame struct {
	Type   FrameType     `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}
