package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Lounge/internal/domain"
)

func TestEncodeMessage_WireNames(t *testing.T) {
	tests := []struct {
		name    string
		kind    OutboundKind
		payload any
		want    string
	}{
		{
			name:    "position",
			kind:    PlayerPositionUpdate,
			payload: PositionUpdate{X: 1, Y: 2, Anim: "idle"},
			want:    `{"type":"message","kind":"player-position-update","payload":{"x":1,"y":2,"anim":"idle"}}`,
		},
		{
			name:    "name",
			kind:    PlayerNameUpdate,
			payload: NameUpdate{Name: "Alice", UserID: "u1"},
			want:    `{"type":"message","kind":"player-name-update","payload":{"name":"Alice","userId":"u1"}}`,
		},
		{
			name: "ready without payload",
			kind: ReadyToConnect,
			want: `{"type":"message","kind":"ready-to-connect"}`,
		},
		{
			name:    "chair",
			kind:    UpdateChairStatus,
			payload: ChairStatus{ChairID: "c3", Occupied: true},
			want:    `{"type":"message","kind":"update-chair-status","payload":{"chairId":"c3","occupied":true}}`,
		},
		{
			name:    "private",
			kind:    SendPrivateMessage,
			payload: PrivateMessage{RecipientID: "s9", Content: "hi"},
			want:    `{"type":"message","kind":"send-private-message","payload":{"recipientId":"s9","content":"hi"}}`,
		},
		{
			name:    "ack",
			kind:    AcknowledgePrivateMessage,
			payload: MessageAck{MessageID: "m1"},
			want:    `{"type":"message","kind":"acknowledge-private-message","payload":{"messageId":"m1"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeMessage(tt.kind, tt.payload)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestEncodeMessage_UnknownKind(t *testing.T) {
	_, err := EncodeMessage("teleport", nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeInbound(t *testing.T) {
	got, err := DecodeInbound(MessageFrame{
		Kind:    string(StopTableTalkNote),
		Payload: json.RawMessage(`{"clientId":"s2","tableId":"t1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, StopTableTalkPayload{ClientID: "s2", TableID: "t1"}, got)

	got, err = DecodeInbound(MessageFrame{
		Kind:    string(RoomMetadataPush),
		Payload: json.RawMessage(`{"id":"r1","name":"Lounge","description":"d"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoomMetadata{ID: "r1", Name: "Lounge", Description: "d"}, got)
}

func TestDecodeInbound_Errors(t *testing.T) {
	tests := []struct {
		name string
		f    MessageFrame
	}{
		{"unknown kind", MessageFrame{Kind: "weather"}},
		{"bad payload", MessageFrame{Kind: string(ChatBroadcast), Payload: json.RawMessage(`{"clientId":5}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInbound(tt.f)
			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.f.Kind, de.Kind)
		})
	}
}

func TestFrameTypeOf(t *testing.T) {
	ft, err := FrameTypeOf([]byte(`{"type":"patch","patches":[]}`))
	require.NoError(t, err)
	assert.Equal(t, FramePatch, ft)

	_, err = FrameTypeOf([]byte(`not json`))
	var de *DecodeError
	assert.True(t, errors.As(err, &de))

	_, err = FrameTypeOf([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownFrame)
}
