package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownKind  = errors.New("unknown message kind")
	ErrUnknownFrame = errors.New("unknown frame type")
)

// DecodeError is a malformed or unrecognised inbound frame or payload.
// Receivers log it and drop the frame.
type DecodeError struct {
	Kind string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FrameTypeOf reads only the envelope discriminator.
func FrameTypeOf(data []byte) (FrameType, error) {
	var env struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", &DecodeError{Kind: "envelope", Err: err}
	}
	if env.Type == "" {
		return "", &DecodeError{Kind: "envelope", Err: ErrUnknownFrame}
	}
	return env.Type, nil
}

// Decode unmarshals data into T, wrapping failures as DecodeError.
func Decode[T any](data []byte, kind string) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &DecodeError{Kind: kind, Err: err}
	}
	return v, nil
}

// EncodeMessage wraps an outbound payload into a message frame.
// A nil payload is sent without a payload field.
func EncodeMessage(kind OutboundKind, payload any) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	f := MessageFrame{Type: FrameMessage, Kind: string(kind)}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", kind, err)
		}
		f.Payload = raw
	}
	return json.Marshal(f)
}

// DecodeInbound returns the typed payload of an inbound message frame.
func DecodeInbound(f MessageFrame) (any, error) {
	kind := InboundKind(f.Kind)
	payload := f.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	switch kind {
	case RoomMetadataPush:
		return Decode[RoomMetadataPayload](payload, f.Kind)
	case ChatBroadcast:
		return Decode[ChatBroadcastPayload](payload, f.Kind)
	case DialogBubbleUpdate:
		return Decode[DialogBubblePayload](payload, f.Kind)
	case DisconnectStreamNote:
		return Decode[DisconnectStreamPayload](payload, f.Kind)
	case StopTableTalkNote:
		return Decode[StopTableTalkPayload](payload, f.Kind)
	case PrivateMessageNotice:
		return Decode[PrivateMessagePayload](payload, f.Kind)
	case ReceivePeerSignal:
		return Decode[PeerSignalIn](payload, f.Kind)
	default:
		return nil, &DecodeError{Kind: f.Kind, Err: ErrUnknownKind}
	}
}
