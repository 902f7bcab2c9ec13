// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"
)

const (
	MaxUserIDLen = 36
	MaxNameLen   = 36
)

var (
	ErrNameTooLong   = errors.New("player name too long")
	ErrNameEmpty     = errors.New("player name empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type (
	// SessionID is the server-assigned id of one connection to a room.
	SessionID string
	// UserID is the stable account id, independent of connections.
	UserID string
)

// Player is an avatar present in a room. Key is SessionID.
// Name stays empty until the owner identifies itself.
type Player struct {
	SessionID      SessionID `json:"sessionId"`
	UserID         UserID    `json:"userId"`
	Name           string    `json:"name"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
	Anim           string    `json:"anim"`
	ReadyToConnect bool      `json:"readyToConnect"`
	VideoConnected bool      `json:"videoConnected"`
}

func (p Player) Identified() bool { return p.Name != "" }

// ValidateName checks a display name before it is sent upstream.
func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	return nil
}

func ValidateUserID(id UserID) error {
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}
