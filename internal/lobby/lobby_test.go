package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Lounge/internal/core"
	"github.com/dkeye/Lounge/internal/core/coretest"
	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/protocol"
)

func TestConnector_Unreachable(t *testing.T) {
	c := NewConnector(&coretest.Dialer{Err: errors.New("refused")}, "ws://lobby")

	_, err := c.Join(context.Background())

	var ce *core.ConnectionError
	assert.True(t, errors.As(err, &ce))
}

func TestHandle_LeaveIsIdempotent(t *testing.T) {
	d := &coretest.Dialer{}
	h, err := NewConnector(d, "ws://lobby").Join(context.Background())
	require.NoError(t, err)

	h.Leave()
	h.Leave()

	require.Len(t, d.Links(), 1)
	assert.True(t, d.Links()[0].Closed())
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("handle loop still running after Leave")
	}
}

func TestHandle_RoomDirectory(t *testing.T) {
	d := &coretest.Dialer{}
	h, err := NewConnector(d, "ws://lobby").Join(context.Background())
	require.NoError(t, err)
	defer h.Leave()
	link := d.Links()[0]

	link.PushJSON(protocol.RoomsFrame{Type: protocol.FrameRooms, Rooms: []domain.RoomInfo{
		{RoomID: "r1", Name: "one"},
		{RoomID: "r2", Name: "two"},
	}})
	link.Push(core.Frame(`garbage`))
	link.PushJSON(protocol.RoomAddedFrame{Type: protocol.FrameRoomAdded, Room: domain.RoomInfo{RoomID: "r3", Name: "three"}})
	link.PushJSON(protocol.RoomAddedFrame{Type: protocol.FrameRoomAdded, Room: domain.RoomInfo{RoomID: "r1", Name: "one", Clients: 4}})
	link.PushJSON(protocol.RoomRemovedFrame{Type: protocol.FrameRoomRemoved, RoomID: "r2"})

	want := []domain.RoomInfo{
		{RoomID: "r1", Name: "one", Clients: 4},
		{RoomID: "r3", Name: "three"},
	}
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, h.Rooms())
	}, time.Second, 5*time.Millisecond)
}
