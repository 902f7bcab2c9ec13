package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Lounge/internal/app/store"
	"github.com/dkeye/Lounge/internal/config"
	"github.com/dkeye/Lounge/internal/domain"
	"github.com/dkeye/Lounge/internal/eventbus"
	"github.com/dkeye/Lounge/internal/events"
	"github.com/dkeye/Lounge/internal/presence"
)

type fakeRoom struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeRoom) record(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *fakeRoom) SessionID() domain.SessionID { return "s1" }
func (r *fakeRoom) AddChatMessage(content string) { r.record("chat:" + content) }
func (r *fakeRoom) UpdatePosition(_, _ float64, anim string) { r.record("pos:" + anim) }
func (r *fakeRoom) ReadyToConnect() { r.record("ready") }
func (r *fakeRoom) ConnectToTable(id domain.TableID) { r.record("sit:" + string(id)) }
func (r *fakeRoom) DisconnectFromTable(id domain.TableID) { r.record("stand:" + string(id)) }
func (r *fakeRoom) UpdateName(name string, uid domain.UserID) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	r.record("name:" + name + "/" + string(uid))
	return nil
}

type fakeSessions struct {
	room  *fakeRoom
	rooms []domain.RoomInfo
}

func (s fakeSessions) Room() (Room, bool) {
	if s.room == nil {
		return nil, false
	}
	return s.room, true
}

func (s fakeSessions) Directory() ([]domain.RoomInfo, bool) { return s.rooms, s.rooms != nil }
func (s fakeSessions) UserID() domain.UserID { return "u1" }

type fakePeers struct {
	mu     sync.Mutex
	status map[domain.SessionID]presence.Status
	calls  []string
	muted  map[domain.SessionID]bool
	bound  bool
}

func newFakePeers() *fakePeers {
	return &fakePeers{
		status: map[domain.SessionID]presence.Status{"s2": presence.InCall, "s3": presence.Connected},
		muted:  make(map[domain.SessionID]bool),
		bound:  true,
	}
}

func (p *fakePeers) Status(sid domain.SessionID) presence.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status[sid]
}

func (p *fakePeers) Call(_ context.Context, sid domain.SessionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sid == "s9" {
		return errors.New("ice gathering failed")
	}
	if p.status[sid] == presence.Absent {
		return presence.ErrNotStreamable
	}
	p.status[sid] = presence.InCall
	p.calls = append(p.calls, "call:"+string(sid))
	return nil
}

func (p *fakePeers) Drop(sid domain.SessionID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.bound {
		return presence.ErrNoRoom
	}
	delete(p.status, sid)
	p.calls = append(p.calls, "drop:"+string(sid))
	return nil
}

func (p *fakePeers) Mute(sid domain.SessionID, muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted[sid] = muted
}

func newRouter(t *testing.T, sess fakeSessions) (http.Handler, *eventbus.Bus) {
	t.Helper()
	h, bus, _ := newRouterWithPeers(t, sess, newFakePeers())
	return h, bus
}

func newRouterWithPeers(t *testing.T, sess fakeSessions, peers *fakePeers) (http.Handler, *eventbus.Bus, *fakePeers) {
	t.Helper()
	bus := eventbus.New()
	st := store.New(bus, 0)
	t.Cleanup(st.Stop)
	r := SetupRouter(context.Background(), &config.Config{Mode: "test"}, Deps{
		Sessions: sess,
		Store:    st,
		Peers:    peers,
		Audio:    peers,
		Bus:      bus,
	})
	return r, bus, peers
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Actions(t *testing.T) {
	room := &fakeRoom{}
	h, _ := newRouter(t, fakeSessions{room: room})

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"chat", "/api/chat", `{"content":"hello"}`, http.StatusAccepted},
		{"empty chat", "/api/chat", `{"content":""}`, http.StatusBadRequest},
		{"bad json", "/api/chat", `{`, http.StatusBadRequest},
		{"position", "/api/position", `{"x":1,"y":2,"anim":"walk"}`, http.StatusAccepted},
		{"name", "/api/name", `{"name":"Ann"}`, http.StatusAccepted},
		{"empty name", "/api/name", `{"name":""}`, http.StatusBadRequest},
		{"ready", "/api/ready", ``, http.StatusAccepted},
		{"sit", "/api/tables/t1/connect", ``, http.StatusAccepted},
		{"stand", "/api/tables/t1/disconnect", ``, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, []string{"chat:hello", "pos:walk", "name:Ann/u1", "ready", "sit:t1", "stand:t1"}, room.calls)
}

func TestRouter_CallControls(t *testing.T) {
	h, _, peers := newRouterWithPeers(t, fakeSessions{room: &fakeRoom{}}, newFakePeers())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"call connected peer", http.MethodPost, "/api/peers/s3/call", ``, http.StatusAccepted},
		{"call absent peer", http.MethodPost, "/api/peers/s7/call", ``, http.StatusConflict},
		{"media failure", http.MethodPost, "/api/peers/s9/call", ``, http.StatusBadGateway},
		{"mute", http.MethodPost, "/api/peers/s2/mute", `{"muted":true}`, http.StatusAccepted},
		{"bad mute", http.MethodPost, "/api/peers/s2/mute", `{`, http.StatusBadRequest},
		{"hang up", http.MethodDelete, "/api/peers/s2", ``, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	assert.Equal(t, []string{"call:s3", "drop:s2"}, peers.calls)
	assert.True(t, peers.muted["s2"])
	w := do(h, http.MethodGet, "/api/peers/s3", "")
	assert.JSONEq(t, `{"sessionId":"s3","status":"in_call","streamable":true}`, w.Body.String())
	w = do(h, http.MethodGet, "/api/peers/s2", "")
	assert.JSONEq(t, `{"sessionId":"s2","status":"absent","streamable":false}`, w.Body.String())
}

func TestRouter_HangUpWithoutRoom(t *testing.T) {
	peers := newFakePeers()
	peers.bound = false
	h, _, _ := newRouterWithPeers(t, fakeSessions{}, peers)

	w := do(h, http.MethodDelete, "/api/peers/s2", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), presence.ErrNoRoom.Error())
}

func TestRouter_NoRoom(t *testing.T) {
	h, _ := newRouter(t, fakeSessions{})

	w := do(h, http.MethodPost, "/api/chat", `{"content":"hello"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(h, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Live      bool           `json:"live"`
		SessionID string         `json:"sessionId"`
		State     store.Snapshot `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Live)
	assert.Empty(t, body.SessionID)

	w = do(h, http.MethodGet, "/api/rooms", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_StateAndPeers(t *testing.T) {
	h, bus := newRouter(t, fakeSessions{room: &fakeRoom{}, rooms: []domain.RoomInfo{{RoomID: "r1", Name: "Lounge"}}})
	bus.Publish(events.PlayerJoined{SessionID: "s2", Player: domain.Player{SessionID: "s2", Name: "Bo"}})
	bus.Publish(events.PlayerCountChanged{Count: 2})

	w := do(h, http.MethodGet, "/api/state", "")
	var body struct {
		Live      bool           `json:"live"`
		SessionID string         `json:"sessionId"`
		State     store.Snapshot `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Live)
	assert.Equal(t, "s1", body.SessionID)
	assert.Equal(t, 2, body.State.PlayerCount)
	require.Len(t, body.State.Players, 1)
	assert.Equal(t, "Bo", body.State.Players[0].Name)

	w = do(h, http.MethodGet, "/api/peers/s2", "")
	assert.JSONEq(t, `{"sessionId":"s2","status":"in_call","streamable":true}`, w.Body.String())
	w = do(h, http.MethodGet, "/api/peers/s9", "")
	assert.JSONEq(t, `{"sessionId":"s9","status":"absent","streamable":false}`, w.Body.String())

	w = do(h, http.MethodGet, "/api/rooms", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Lounge"`)
}

func TestRouter_EventStream(t *testing.T) {
	h, bus := newRouter(t, fakeSessions{})
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	before := 0
	require.Eventually(t, func() bool {
		before = bus.HandlerCount(events.TypeChatMessageReceived)
		return before >= 2
	}, time.Second, 5*time.Millisecond)

	bus.Publish(events.ChatMessageReceived{Message: domain.ChatMessage{Author: "s2", Content: "hi"}})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		if sc.Text() == "" && len(lines) > 0 {
			break
		}
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "event:"+string(events.TypeChatMessageReceived), lines[0])
	assert.JSONEq(t, `{"message":{"author":"s2","content":"hi","createdAt":0}}`, strings.TrimPrefix(lines[1], "data:"))

	cancel()
	assert.Eventually(t, func() bool {
		return bus.HandlerCount(events.TypeChatMessageReceived) < before
	}, time.Second, 5*time.Millisecond)
}
