package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, store.NewMemoryStore(nil))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	room := newRoom("COPY01")
	require.NoError(t, s.CreateRoom(ctx, room))

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	got.Status = models.RoomFinished

	again, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomWaiting, again.Status)
}

func TestMemoryStore_ConcurrentCAS(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)

	room := newRoom("RACE01")
	require.NoError(t, s.CreateRoom(ctx, room))

	const writers = 16
	var wg sync.WaitGroup
	results := make(chan bool, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(round int) {
			defer wg.Done()
			r, err := s.GetRoom(ctx, room.ID)
			if err != nil {
				return
			}
			r.CurrentRound = round
			ok, err := s.UpdateRoom(ctx, r)
			if err == nil {
				results <- ok
			}
		}(i + 1)
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.GreaterOrEqual(t, wins, 1)

	final, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1+wins), final.Version, "every successful write bumps the version exactly once")
}
