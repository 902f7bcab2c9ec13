package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/core"
)

// Dialer implements core.Dialer.
type Dialer struct {
	dialer *websocket.Dialer
	opts   Options
}

func NewDialer(handshakeTimeout time.Duration, opts Options) *Dialer {
	return &Dialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
		opts: opts,
	}
}

func (d *Dialer) Dial(ctx context.Context, url string) (core.Link, error) {
	raw, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		ev := log.Warn().Err(err).Str("module", "ws").Str("url", url)
		if resp != nil {
			ev = ev.Int("status", resp.StatusCode)
		}
		ev.Msg("dial failed")
		return nil, &core.ConnectionError{Op: "dial", URL: url, Err: err}
	}
	if d.opts.ReadLimit > 0 {
		raw.SetReadLimit(d.opts.ReadLimit)
	}
	log.Info().Str("module", "ws").Str("url", url).Msg("link open")
	return NewConn(raw, url, d.opts), nil
}
