package sse_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronzipp/who-is-the-impostor/internal/game"
	"github.com/aaronzipp/who-is-the-impostor/internal/live"
	"github.com/aaronzipp/who-is-the-impostor/internal/sse"
	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

func newHub(t *testing.T) (*sse.Hub, *game.Game) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)
	s := store.NewMemoryStore(nil)
	g, err := game.New(s, game.DefaultSettings(), game.WithLogger(log))
	require.NoError(t, err)
	hub := sse.NewHub(live.NewProjector(s, log), log)
	t.Cleanup(hub.Close)
	return hub, g
}

// waitFor reads views from c until one satisfies ok
func waitFor(t *testing.T, c *sse.Client, ok func(*live.View) bool) *live.View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, open := <-c.Updates():
			require.True(t, open, "client closed")
			if ok(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for view")
			return nil
		}
	}
}

func TestHub(t *testing.T) {
	ctx := context.Background()
	hub, g := newHub(t)

	room, err := g.CreateRoom(ctx, 6, 1, 5)
	require.NoError(t, err)

	a, err := hub.Subscribe(room.ID, "a")
	require.NoError(t, err)
	waitFor(t, a, func(v *live.View) bool { return v.Room.ID == room.ID })
	assert.Equal(t, 1, hub.Rooms())

	b, err := hub.Subscribe(room.ID, "b")
	require.NoError(t, err)
	waitFor(t, b, func(v *live.View) bool { return v.Room.ID == room.ID })
	assert.Equal(t, 1, hub.Rooms(), "one feed per room")

	_, err = g.JoinRoom(ctx, room.Code, "ana")
	require.NoError(t, err)
	for _, c := range []*sse.Client{a, b} {
		v := waitFor(t, c, func(v *live.View) bool { return len(v.Players) == 1 })
		assert.Equal(t, "ana", v.Players[0].Name)
	}

	hub.Unsubscribe(a)
	assert.Equal(t, 1, hub.Rooms())
	hub.Unsubscribe(b)
	assert.Equal(t, 0, hub.Rooms())
	hub.Unsubscribe(b)

	c, err := hub.Subscribe(room.ID, "c")
	require.NoError(t, err)
	waitFor(t, c, func(v *live.View) bool { return len(v.Players) == 1 })
}

func TestHub_SlowClientGetsLatest(t *testing.T) {
	ctx := context.Background()
	hub, g := newHub(t)

	room, err := g.CreateRoom(ctx, 12, 1, 5)
	require.NoError(t, err)
	c, err := hub.Subscribe(room.ID, "")
	require.NoError(t, err)

	for _, name := range []string{"ana", "ben", "cleo", "dan", "eve"} {
		_, err := g.JoinRoom(ctx, room.Code, name)
		require.NoError(t, err)
	}
	v := waitFor(t, c, func(v *live.View) bool { return len(v.Players) == 5 })
	assert.Equal(t, "eve", v.Players[4].Name)
}

func TestHub_Close(t *testing.T) {
	hub, g := newHub(t)
	room, err := g.CreateRoom(context.Background(), 6, 1, 5)
	require.NoError(t, err)

	c, err := hub.Subscribe(room.ID, "a")
	require.NoError(t, err)

	hub.Close()
	hub.Close()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-c.Updates():
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	_, err = hub.Subscribe(room.ID, "b")
	assert.ErrorIs(t, err, sse.ErrClosed)
	hub.Unsubscribe(c)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sse.Write(&buf, sse.EventPlayerUpdate, "<ul>\n<li>ana</li>\n</ul>"))
	assert.Equal(t, "event: player-update\ndata: <ul>\ndata: <li>ana</li>\ndata: </ul>\n\n", buf.String())

	buf.Reset()
	require.NoError(t, sse.Write(&buf, sse.EventView, `{"code":"ABC234"}`))
	assert.Equal(t, "event: view\ndata: {\"code\":\"ABC234\"}\n\n", buf.String())
}
