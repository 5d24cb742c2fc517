package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gomoku-relay/game/relay"
	"github.com/wricardo/gomoku-relay/game/room"
)

type testEnv struct {
	server   *Server
	registry *Registry
	rooms    *room.Manager
	http     *httptest.Server
	url      string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	logger, _ := test.NewNullLogger()

	env := &testEnv{
		registry: NewRegistry(OverflowDisconnect, logger),
		rooms:    room.NewManager(),
	}
	router := relay.NewRouter(env.rooms, env.registry, relay.WithLogger(logger))
	env.server = NewServer(env.registry, router, WithConfig(cfg), WithLogger(logger))
	env.http = httptest.NewServer(http.HandlerFunc(env.server.ServeWS))
	env.url = "ws" + strings.TrimPrefix(env.http.URL, "http")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		env.server.Shutdown(ctx)
		env.http.Close()
	})
	return env
}

// client is a test connection that has already consumed its init frame
type client struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func (env *testEnv) dial(t *testing.T) *client {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(env.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{t: t, conn: conn}
	init := c.read()
	require.Equal(t, "init", init["type"])
	c.id, _ = init["playerId"].(string)
	require.NotEmpty(t, c.id)
	return c
}

func (c *client) send(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (c *client) read() map[string]any {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)

	var msg map[string]any
	require.NoError(c.t, json.Unmarshal(data, &msg), string(data))
	return msg
}

func (c *client) createRoom() string {
	c.t.Helper()
	c.send(`{"CreateRoom":{"player_id":"ignored"}}`)
	msg := c.read()
	require.Equal(c.t, "roomCreated", msg["type"])
	roomID, _ := msg["roomId"].(string)
	require.NotEmpty(c.t, roomID)
	return roomID
}

func (c *client) join(roomID string) {
	c.send(fmt.Sprintf(`{"JoinRoom":{"player_id":"ignored","room_id":%q}}`, roomID))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestServerAssignsUniqueIDs(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	a := env.dial(t)
	b := env.dial(t)

	assert.NotEqual(t, a.id, b.id)
	waitFor(t, func() bool { return env.registry.Len() == 2 })
	assert.ElementsMatch(t, []string{a.id, b.id}, env.registry.IDs())
}

func TestServerRoomScenario(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, b, c := env.dial(t), env.dial(t), env.dial(t)

	roomID := a.createRoom()
	b.join(roomID)

	for _, cl := range []*client{a, b} {
		msg := cl.read()
		assert.Equal(t, "gameStart", msg["type"])
		assert.Equal(t, roomID, msg["roomId"])
		assert.Equal(t, a.id, msg["hostId"])
		assert.Equal(t, b.id, msg["guestId"])
	}

	c.join(roomID)
	msg := c.read()
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "RoomFull", msg["code"])

	t.Run("moves are echoed to both players", func(t *testing.T) {
		b.send(`{"PlaceStone":{"player_id":"ignored","row":7,"col":7}}`)
		for _, cl := range []*client{a, b} {
			msg := cl.read()
			assert.Equal(t, "placeStone", msg["type"])
			assert.Equal(t, b.id, msg["playerId"])
			assert.EqualValues(t, 7, msg["row"])
		}
	})

	t.Run("host disconnect closes the room", func(t *testing.T) {
		a.conn.Close()

		for _, cl := range []*client{b, c} {
			msg := cl.read()
			payload, ok := msg["PlayerDisconnected"].(map[string]any)
			require.True(t, ok, "got %v", msg)
			assert.Equal(t, a.id, payload["player_id"])
		}

		_, err := env.rooms.Get(roomID)
		assert.ErrorIs(t, err, room.ErrRoomNotFound)

		c.join(roomID)
		msg := c.read()
		assert.Equal(t, "error", msg["type"])
		assert.Equal(t, "RoomNotFound", msg["code"])
	})
}

func TestServerHeartbeat(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a := env.dial(t)

	a.send(`{"type":"ping"}`)
	msg := a.read()
	assert.Equal(t, "pong", msg["type"])
	assert.NotZero(t, msg["time"])
}

func TestServerCloseRequest(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a := env.dial(t)
	b := env.dial(t)

	a.send(`{"type":"close"}`)

	a.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := a.conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	msg := b.read()
	assert.Contains(t, msg, "PlayerDisconnected")
	waitFor(t, func() bool { return env.registry.Len() == 1 })
}

func TestServerGuestDisconnectReopensRoom(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, b := env.dial(t), env.dial(t)

	roomID := a.createRoom()
	b.join(roomID)
	a.read()
	b.read()

	b.conn.Close()
	msg := a.read()
	assert.Contains(t, msg, "PlayerDisconnected")

	rm, err := env.rooms.Get(roomID)
	require.NoError(t, err)
	assert.Equal(t, room.Waiting, rm.Status)
	assert.Empty(t, rm.Guest)
}

func TestServerInvalidFrameKeepsConnection(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a := env.dial(t)

	a.send(`not json at all`)
	a.send(`{"Resign":{}}`)
	a.send(`{"type":"ping"}`)

	msg := a.read()
	assert.Equal(t, "pong", msg["type"])
}

func TestServerRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	env := newTestEnv(t, cfg)
	a := env.dial(t)

	a.send(`{"type":"ping"}`)
	a.send(`{"type":"ping"}`)
	a.read()

	a.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := a.conn.ReadMessage()
	assert.Error(t, err, "second ping should have been dropped")
}

func TestServerOriginCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://gomoku.example.com"}
	env := newTestEnv(t, cfg)

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(env.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, env.registry.Len())

	header.Set("Origin", "https://gomoku.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(env.url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestServerShutdown(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	var clients []*client
	for i := 0; i < 3; i++ {
		clients = append(clients, env.dial(t))
	}
	waitFor(t, func() bool { return env.registry.Len() == 3 })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, env.server.Shutdown(ctx))
	assert.Equal(t, 0, env.registry.Len())

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			for {
				if _, _, err := c.conn.ReadMessage(); err != nil {
					return
				}
			}
		}(c)
	}
	wg.Wait()

	_, resp, err := websocket.DefaultDialer.Dial(env.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServerEvictsSlowConsumer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := NewRegistry(OverflowDisconnect, logger)
	cfg := DefaultConfig()
	cfg.SendBuffer = 4
	srv := NewServer(reg, nopHandler{}, WithConfig(cfg), WithLogger(logger), WithIDGenerator(func() string { return "slow" }))
	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWS))
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	waitFor(t, func() bool { return reg.Len() == 1 })

	// The client never reads, so the queue fills and the peer is evicted.
	payload := strings.Repeat("x", 64*1024)
	for i := 0; i < 10000 && reg.Len() == 1; i++ {
		reg.Send("slow", []byte(payload))
	}
	waitFor(t, func() bool { return reg.Len() == 0 })
}

// broadcastingHandler broadcasts to every registered peer while a new
// connection is being greeted.
type broadcastingHandler struct {
	nopHandler
	registry *Registry
}

func (h broadcastingHandler) Greeting(player string) any {
	h.registry.BroadcastExcept("", []byte(`{"type":"noise"}`))
	return map[string]string{"type": "hello", "player": player}
}

func TestServerGreetingIsFirstFrame(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reg := NewRegistry(OverflowDisconnect, logger)
	srv := NewServer(reg, broadcastingHandler{registry: reg}, WithLogger(logger), WithIDGenerator(func() string { return "p1" }))
	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWS))
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	c := &client{t: t, conn: conn}

	first := c.read()
	assert.Equal(t, "hello", first["type"])
	assert.Equal(t, "p1", first["player"])

	// once registered the peer receives broadcasts after its greeting
	waitFor(t, func() bool { return reg.Len() == 1 })
	reg.BroadcastExcept("", []byte(`{"type":"noise"}`))
	assert.Equal(t, "noise", c.read()["type"])
}

type nopHandler struct{}

func (nopHandler) Greeting(string) any                 { return nil }
func (nopHandler) HandleMessage(string, []byte) error { return nil }
func (nopHandler) Leave(string)                        {}
