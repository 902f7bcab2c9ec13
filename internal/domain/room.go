package domain

import "errors"

var ErrRoomNameEmpty = errors.New("room name empty")

type RoomID string

// RoomConfig describes a custom room to be created.
type RoomConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Password    string `json:"password,omitempty"`
	AutoDispose bool   `json:"autoDispose"`
}

func (c RoomConfig) Validate() error {
	if c.Name == "" {
		return ErrRoomNameEmpty
	}
	return nil
}

// RoomMetadata is what the room pushes about itself after join.
type RoomMetadata struct {
	ID          RoomID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HasPassword bool   `json:"hasPassword"`
}

// RoomInfo is a lobby directory entry.
type RoomInfo struct {
	RoomID      RoomID `json:"roomId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Clients     int    `json:"clients"`
	MaxClients  int    `json:"maxClients"`
	HasPassword bool   `json:"hasPassword"`
}
