package rtc

import (
	"context"
	"errors"
	"net"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const maxRTPPacket = 1500

// UDPSink writes remote audio as raw RTP to a local player, e.g.
// `ffplay` or a gstreamer udpsrc pipeline.
type UDPSink struct {
	conn *net.UDPConn
}

func NewUDPSink(addr string) (*UDPSink, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &UDPSink{conn: conn}, nil
}

func (s *UDPSink) WriteRTP(p *rtp.Packet) error {
	b, err := p.Marshal()
	if err != nil {
		return err
	}
	_, err = s.conn.Write(b)
	return err
}

func (s *UDPSink) Close() error { return s.conn.Close() }

// ListenLocalAudio reads Opus RTP sent to addr and exposes it as the
// microphone track for calls. Reading stops when ctx ends.
func ListenLocalAudio(ctx context.Context, addr string) (*webrtc.TrackLocalStaticRTP, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "lounge")
	if err != nil {
		return nil, err
	}
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = pc.Close()
	}()
	go pumpRTP(pc, track)
	log.Info().Str("module", "calls").Str("addr", pc.LocalAddr().String()).Msg("local audio input listening")
	return track, nil
}

// pumpRTP copies packets from conn into sink until conn is closed.
// Datagrams that are not RTP are skipped.
func pumpRTP(conn net.PacketConn, sink PacketSink) {
	buf := make([]byte, maxRTPPacket)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Str("module", "calls").Msg("local audio read")
			}
			return
		}
		var p rtp.Packet
		if err := p.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if err := sink.WriteRTP(&p); err != nil {
			log.Warn().Err(err).Str("module", "calls").Msg("local audio write")
		}
	}
}
