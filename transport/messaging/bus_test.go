package messaging

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gomoku-relay/game/room"
)

func startBus(t *testing.T, opts ...Option) *Bus {
	t.Helper()
	logger, _ := test.NewNullLogger()

	opts = append([]Option{WithPort(server.RANDOM_PORT), WithLogger(logger)}, opts...)
	b := New(opts...)
	require.NoError(t, b.Start())
	t.Cleanup(func() { b.Close() })
	return b
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	var zero T
	return zero
}

func TestBusNotStarted(t *testing.T) {
	b := New()

	assert.ErrorIs(t, b.Publish("x", nil), ErrNotStarted)
	assert.ErrorIs(t, b.PublishRoomEvent(room.Event{Kind: room.EventCreated}), ErrNotStarted)
	_, err := b.Subscribe("x", func(string, []byte) {})
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.NoError(t, b.Close())
}

func TestBusRoomEvents(t *testing.T) {
	b := startBus(t, WithPrefix("test."))

	assert.Equal(t, "test.room.joined", b.RoomSubject(room.EventJoined))

	got := make(chan room.Event, 4)
	unsubscribe, err := b.SubscribeRoomEvents(func(ev room.Event) { got <- ev })
	require.NoError(t, err)
	defer unsubscribe()
	require.NoError(t, b.Flush())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sent := room.NewEvent(room.EventJoined, room.Room{
		ID:     "r1",
		Host:   "alice",
		Guest:  "bob",
		Status: room.Playing,
	}, "bob", at)
	require.NoError(t, b.PublishRoomEvent(sent))

	ev := receive(t, got)
	assert.Equal(t, room.EventJoined, ev.Kind)
	assert.Equal(t, "r1", ev.RoomID)
	assert.Equal(t, "bob", ev.Player)
	assert.Equal(t, room.Playing, ev.Status)
	assert.True(t, at.Equal(ev.At))
}

func TestBusSkipsUndecodableEvents(t *testing.T) {
	b := startBus(t)

	got := make(chan room.Event, 4)
	_, err := b.SubscribeRoomEvents(func(ev room.Event) { got <- ev })
	require.NoError(t, err)
	require.NoError(t, b.Flush())

	require.NoError(t, b.Publish(b.RoomSubject(room.EventCreated), []byte("not json")))
	require.NoError(t, b.PublishRoomEvent(room.Event{Kind: room.EventClosed, RoomID: "r2"}))

	ev := receive(t, got)
	assert.Equal(t, "r2", ev.RoomID)
}

func TestBusExternalServer(t *testing.T) {
	embedded := startBus(t)

	raw := make(chan string, 1)
	_, err := embedded.Subscribe("gomoku.room.*", func(subject string, _ []byte) { raw <- subject })
	require.NoError(t, err)
	require.NoError(t, embedded.Flush())

	logger, _ := test.NewNullLogger()
	client := New(WithURL(embedded.ClientURL()), WithLogger(logger))
	require.NoError(t, client.Start())
	defer client.Close()
	assert.Equal(t, embedded.ClientURL(), client.ClientURL())

	require.NoError(t, client.PublishRoomEvent(room.Event{Kind: room.EventVacated, RoomID: "r3"}))
	assert.Equal(t, "gomoku.room.vacated", receive(t, raw))
}

func TestBusConnectFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := New(WithURL("nats://127.0.0.1:1"), WithLogger(logger))
	assert.Error(t, b.Start())
}
