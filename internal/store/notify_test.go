package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

type recorder struct {
	mu  sync.Mutex
	got []store.Change
}

func (r *recorder) record(c store.Change) {
	r.mu.Lock()
	r.got = append(r.got, c)
	r.mu.Unlock()
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func (r *recorder) changes() []store.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Change(nil), r.got...)
}

func TestMemoryNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversInOrder", func(t *testing.T) {
		n := store.NewMemoryNotifier()
		defer n.Close()

		rec := &recorder{}
		_, err := n.Subscribe(store.TableClues, store.Filter{RoomID: "room"}, rec.record)
		require.NoError(t, err)

		for _, id := range []string{"c1", "c2", "c3"} {
			require.NoError(t, n.Publish(ctx, store.Change{Table: store.TableClues, Kind: store.ChangeInsert, ID: id, RoomID: "room"}))
		}

		require.Eventually(t, func() bool { return rec.len() == 3 }, time.Second, 5*time.Millisecond)
		got := rec.changes()
		assert.Equal(t, "c1", got[0].ID)
		assert.Equal(t, "c2", got[1].ID)
		assert.Equal(t, "c3", got[2].ID)
	})

	t.Run("FiltersTableAndRound", func(t *testing.T) {
		n := store.NewMemoryNotifier()
		defer n.Close()

		rec := &recorder{}
		_, err := n.Subscribe(store.TableVotes, store.Filter{RoomID: "room", RoundID: "r2"}, rec.record)
		require.NoError(t, err)

		require.NoError(t, n.Publish(ctx, store.Change{Table: store.TableClues, ID: "x", RoomID: "room", RoundID: "r2"}))
		require.NoError(t, n.Publish(ctx, store.Change{Table: store.TableVotes, ID: "y", RoomID: "room", RoundID: "r1"}))
		require.NoError(t, n.Publish(ctx, store.Change{Table: store.TableVotes, ID: "z", RoomID: "room", RoundID: "r2"}))

		require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, "z", rec.changes()[0].ID)
	})

	t.Run("UnsubscribeStopsDelivery", func(t *testing.T) {
		n := store.NewMemoryNotifier()
		defer n.Close()

		rec := &recorder{}
		sub, err := n.Subscribe(store.TableRooms, store.Filter{}, rec.record)
		require.NoError(t, err)
		sub.Unsubscribe()
		sub.Unsubscribe()

		require.NoError(t, n.Publish(ctx, store.Change{Table: store.TableRooms, ID: "r"}))
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, rec.len())
	})

	t.Run("SubscribeAfterClose", func(t *testing.T) {
		n := store.NewMemoryNotifier()
		require.NoError(t, n.Close())

		_, err := n.Subscribe(store.TableRooms, store.Filter{}, func(store.Change) {})
		assert.ErrorIs(t, err, store.ErrClosed)
	})

	t.Run("SlowSubscriberDoesNotBlockPublish", func(t *testing.T) {
		n := store.NewMemoryNotifier()
		defer n.Close()

		release := make(chan struct{})
		rec := &recorder{}
		_, err := n.Subscribe(store.TablePlayers, store.Filter{}, func(c store.Change) {
			<-release
			rec.record(c)
		})
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				_ = n.Publish(ctx, store.Change{Table: store.TablePlayers, ID: "p"})
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a slow subscriber")
		}
		close(release)
		require.Eventually(t, func() bool { return rec.len() == 100 }, time.Second, 5*time.Millisecond)
	})
}
