// Package ws carries lobby and room links over gorilla/websocket.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Lounge/internal/core"
)

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Options struct {
	SendBuffer   int
	RecvBuffer   int
	WriteTimeout time.Duration
	PingPeriod   time.Duration
	ReadLimit    int64
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.RecvBuffer <= 0 {
		o.RecvBuffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	return o
}

// Conn implements core.Link. Inbound frames are buffered in arrival order
// until Recv picks them up.
type Conn struct {
	conn WSConn
	url  string
	opts Options

	send    chan core.Frame
	recv    chan core.Frame
	done    chan struct{}
	flushed chan struct{}

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

// NewConn takes ownership of conn and starts its pumps.
func NewConn(conn WSConn, url string, opts Options) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		conn: conn,
		url:  url,
		opts: opts,
		send:    make(chan core.Frame, opts.SendBuffer),
		recv:    make(chan core.Frame, opts.RecvBuffer),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
	}
	go c.writePump()
	go c.readPump()
	return c
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrLinkClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *Conn) Recv(ctx context.Context) (core.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f, ok := <-c.recv:
		if !ok {
			return nil, c.Err()
		}
		return f, nil
	case <-c.done:
		select {
		case f, ok := <-c.recv:
			if ok {
				return f, nil
			}
		default:
		}
		return nil, c.Err()
	}
}

func (c *Conn) Done() <-chan struct{} { return c.done }

// Err is the reason the link went down, or nil while it is up.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil && c.isClosed() {
		return core.ErrLinkClosed
	}
	return c.err
}

func (c *Conn) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

func (c *Conn) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close stops accepting frames. Frames already queued are written, then a
// normal close frame, before the socket goes away. A stuck writer gets
// WriteTimeout to finish.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	close(c.done)
	c.mu.Unlock()

	go func() {
		t := time.NewTimer(c.opts.WriteTimeout)
		defer t.Stop()
		select {
		case <-c.flushed:
		case <-t.C:
			log.Warn().Str("module", "ws").Str("url", c.url).Msg("close flush timed out")
		}
		_ = c.conn.Close()
	}()
	log.Debug().Str("module", "ws").Str("url", c.url).Msg("link closed")
}

func (c *Conn) writePump() {
	defer close(c.flushed)
	var ping <-chan time.Time
	if c.opts.PingPeriod > 0 {
		t := time.NewTicker(c.opts.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("url", c.url).Msg("writePump write error")
				c.setErr(err)
				c.Close()
				return
			}
		case <-ping:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "ws").Str("url", c.url).Msg("writePump ping error")
				c.setErr(err)
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) write(mt int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(mt, data)
}

func (c *Conn) readPump() {
	defer func() {
		close(c.recv)
		c.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				log.Info().Err(err).Str("module", "ws").Str("url", c.url).Msg("readPump read error")
			}
			c.setErr(err)
			return
		}
		select {
		case c.recv <- data:
		case <-c.done:
			return
		}
	}
}
