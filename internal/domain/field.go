package domain

import "encoding/json"

// Player field names as they travel on the wire.
const (
	FieldX              = "x"
	FieldY              = "y"
	FieldAnim           = "anim"
	FieldName           = "name"
	FieldUserID         = "userId"
	FieldReadyToConnect = "readyToConnect"
	FieldVideoConnected = "videoConnected"
)

// FieldChange is a single player field mutation. The set of variants is
// closed; consumers switch on the concrete type.
type FieldChange interface {
	Field() string
	Value() any
	isFieldChange()
}

type Axis string

const (
	AxisX Axis = FieldX
	AxisY Axis = FieldY
)

type PositionChanged struct {
	Axis  Axis
	Coord float64
}

type AnimationChanged struct{ Anim string }

type NameChanged struct{ Name string }

type UserIDChanged struct{ UserID UserID }

type ReadyToConnectChanged struct{ Ready bool }

type VideoConnectedChanged struct{ Connected bool }

// UnknownFieldChanged keeps fields this client does not model.
type UnknownFieldChanged struct {
	Name string
	Raw  json.RawMessage
}

func (c PositionChanged) Field() string       { return string(c.Axis) }
func (c PositionChanged) Value() any          { return c.Coord }
func (c AnimationChanged) Field() string      { return FieldAnim }
func (c AnimationChanged) Value() any         { return c.Anim }
func (c NameChanged) Field() string           { return FieldName }
func (c NameChanged) Value() any              { return c.Name }
func (c UserIDChanged) Field() string         { return FieldUserID }
func (c UserIDChanged) Value() any            { return c.UserID }
func (c ReadyToConnectChanged) Field() string { return FieldReadyToConnect }
func (c ReadyToConnectChanged) Value() any    { return c.Ready }
func (c VideoConnectedChanged) Field() string { return FieldVideoConnected }
func (c VideoConnectedChanged) Value() any    { return c.Connected }
func (c UnknownFieldChanged) Field() string   { return c.Name }
func (c UnknownFieldChanged) Value() any      { return c.Raw }

func (PositionChanged) isFieldChange()       {}
func (AnimationChanged) isFieldChange()      {}
func (NameChanged) isFieldChange()           {}
func (UserIDChanged) isFieldChange()         {}
func (ReadyToConnectChanged) isFieldChange() {}
func (VideoConnectedChanged) isFieldChange() {}
func (UnknownFieldChanged) isFieldChange()   {}

// ApplyField decodes raw into the named field of p. It reports the change
// and whether the stored value actually differed.
func (p *Player) ApplyField(field string, raw json.RawMessage) (FieldChange, bool, error) {
	switch field {
	case FieldX, FieldY:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false, err
		}
		dst := &p.X
		if field == FieldY {
			dst = &p.Y
		}
		if *dst == v {
			return nil, false, nil
		}
		*dst = v
		return PositionChanged{Axis: Axis(field), Coord: v}, true, nil
	case FieldAnim:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false, err
		}
		if p.Anim == v {
			return nil, false, nil
		}
		p.Anim = v
		return AnimationChanged{Anim: v}, true, nil
	case FieldName:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false, err
		}
		if p.Name == v {
			return nil, false, nil
		}
		p.Name = v
		return NameChanged{Name: v}, true, nil
	case FieldUserID:
		var v UserID
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false, err
		}
		if p.UserID == v {
			return nil, false, nil
		}
		p.UserID = v
		return UserIDChanged{UserID: v}, true, nil
	case FieldReadyToConnect:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false, err
		}
		if p.ReadyToConnect == v {
			return nil, false, nil
		}
		p.ReadyToConnect = v
		return ReadyToConnectChanged{Ready: v}, true, nil
	case FieldVideoConnected:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false, err
		}
		if p.VideoConnected == v {
			return nil, false, nil
		}
		p.VideoConnected = v
		return VideoConnectedChanged{Connected: v}, true, nil
	default:
		return UnknownFieldChanged{Name: field, Raw: raw}, true, nil
	}
}
