package domain

type (
	TableID string
	ChairID string
)

// SeatKind tells which furniture a seat event refers to.
type SeatKind string

const SeatChair SeatKind = "CHAIR"

// Table owns an ordered set of connected users.
type Table struct {
	ID             TableID     `json:"id"`
	ConnectedUsers []SessionID `json:"connectedUsers"`
}

type Chair struct {
	ID         ChairID   `json:"id"`
	TableID    TableID   `json:"tableId,omitempty"`
	Occupied   bool      `json:"occupied"`
	OccupantID SessionID `json:"occupantId,omitempty"`
}
