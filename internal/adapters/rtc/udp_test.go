package rtc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenUDP(t *testing.T) net.PacketConn {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func TestUDPSink_WritesRTP(t *testing.T) {
	pc := listenUDP(t)
	sink, err := NewUDPSink(pc.LocalAddr().String())
	require.NoError(t, err)
	defer sink.Close()

	p := packet(7)
	p.Payload = []byte{0xde, 0xad}
	require.NoError(t, sink.WriteRTP(p))

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, maxRTPPacket)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	var got rtp.Packet
	require.NoError(t, got.Unmarshal(buf[:n]))
	assert.Equal(t, uint16(7), got.SequenceNumber)
	assert.Equal(t, []byte{0xde, 0xad}, got.Payload)
}

func TestPumpRTP_SkipsNonRTP(t *testing.T) {
	pc := listenUDP(t)
	rec := &sinkRec{}
	done := make(chan struct{})
	go func() {
		pumpRTP(pc, rec)
		close(done)
	}()

	sink, err := NewUDPSink(pc.LocalAddr().String())
	require.NoError(t, err)
	defer sink.Close()
	_, err = sink.conn.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, sink.WriteRTP(packet(9)))

	require.Eventually(t, func() bool { return len(rec.got()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []uint16{9}, rec.got())

	_ = pc.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump still running after close")
	}
}

func TestListenLocalAudio(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	track, err := ListenLocalAudio(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, webrtc.MimeTypeOpus, track.Codec().MimeType)
	assert.Equal(t, "audio", track.ID())

	_, err = ListenLocalAudio(ctx, "not-an-address")
	assert.Error(t, err)
}
