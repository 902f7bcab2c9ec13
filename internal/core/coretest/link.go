// Package coretest provides in-memory links for tests.
package coretest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dkeye/Lounge/internal/core"
)

// Link is an in-memory core.Link. Frames pushed by the test come out of
// Recv in order; frames sent by the code under test are recorded.
type Link struct {
	URL string

	in   chan core.Frame
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	sent   []core.Frame
	onSend func(core.Frame)
}

func NewLink(url string) *Link {
	return &Link{
		URL:  url,
		in:   make(chan core.Frame, 256),
		done: make(chan struct{}),
	}
}

// OnSend installs a hook run for every frame passed to TrySend, standing
// in for the server side.
func (l *Link) OnSend(fn func(core.Frame)) {
	l.mu.Lock()
	l.onSend = fn
	l.mu.Unlock()
}

func (l *Link) Push(f core.Frame) {
	l.in <- f
}

func (l *Link) PushJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	l.Push(b)
}

func (l *Link) TrySend(f core.Frame) error {
	if l.Closed() {
		return core.ErrLinkClosed
	}
	l.mu.Lock()
	l.sent = append(l.sent, f)
	hook := l.onSend
	l.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

// Recv drains pushed frames before reporting the link as gone.
func (l *Link) Recv(ctx context.Context) (core.Frame, error) {
	select {
	case f := <-l.in:
		return f, nil
	default:
	}
	select {
	case f := <-l.in:
		return f, nil
	case <-l.done:
		return nil, core.ErrLinkClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Link) Done() <-chan struct{} { return l.done }

func (l *Link) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *Link) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Sent returns a copy of every frame sent so far.
func (l *Link) Sent() []core.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Frame, len(l.sent))
	copy(out, l.sent)
	return out
}

// SentTypes decodes the envelope type of every sent frame, and the kind
// for message frames, as "type" or "type:kind".
func (l *Link) SentTypes() []string {
	var out []string
	for _, f := range l.Sent() {
		var env struct {
			Type string `json:"type"`
			Kind string `json:"kind"`
		}
		_ = json.Unmarshal(f, &env)
		if env.Kind != "" {
			out = append(out, env.Type+":"+env.Kind)
			continue
		}
		out = append(out, env.Type)
	}
	return out
}

// Dialer hands out links made by New, or fails with Err.
type Dialer struct {
	mu    sync.Mutex
	New   func(url string) *Link
	Err   error
	links []*Link
}

func (d *Dialer) Dial(_ context.Context, url string) (core.Link, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, &core.ConnectionError{Op: "dial", URL: url, Err: d.Err}
	}
	var l *Link
	if d.New != nil {
		l = d.New(url)
	} else {
		l = NewLink(url)
	}
	d.links = append(d.links, l)
	return l, nil
}

func (d *Dialer) Links() []*Link {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Link, len(d.links))
	copy(out, d.links)
	return out
}
