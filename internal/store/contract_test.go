package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newRoom(code string) *models.Room {
	return &models.Room{
		ID:            uuid.NewString(),
		Code:          code,
		Status:        models.RoomWaiting,
		MaxPlayers:    8,
		ImpostorCount: 1,
		MaxRounds:     5,
		CreatedAt:     now(),
	}
}

func newPlayer(roomID, name string, host bool) *models.Player {
	return &models.Player{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		Name:     name,
		Role:     models.RoleCrew,
		IsAlive:  true,
		IsHost:   host,
		JoinedAt: now(),
	}
}

func newRound(roomID string, number int) *models.Round {
	return &models.Round{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Number:    number,
		Status:    models.RoundCollectingClues,
		CreatedAt: now(),
	}
}

// uniqueCode avoids collisions between subtests sharing one database
func uniqueCode() string {
	return uuid.NewString()[:6]
}

// runStoreContract checks the behaviour every Store backend must share
func runStoreContract(t *testing.T, s store.Store) {
	ctx := context.Background()

	t.Run("CreateAndGetRoom", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))
		assert.Equal(t, int64(1), room.Version)

		got, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, room.Code, got.Code)
		assert.Equal(t, models.RoomWaiting, got.Status)
		assert.Equal(t, int64(1), got.Version)
		assert.Empty(t, got.SecretWord)

		byCode, err := s.GetRoomByCode(ctx, room.Code)
		require.NoError(t, err)
		assert.Equal(t, room.ID, byCode.ID)
	})

	t.Run("GetRoom_NotFound", func(t *testing.T) {
		_, err := s.GetRoom(ctx, uuid.NewString())
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.GetRoomByCode(ctx, "NOPE99")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ActiveCodeIsUnique", func(t *testing.T) {
		code := uniqueCode()
		first := newRoom(code)
		require.NoError(t, s.CreateRoom(ctx, first))

		err := s.CreateRoom(ctx, newRoom(code))
		assert.ErrorIs(t, err, store.ErrDuplicate)

		first.Status = models.RoomFinished
		ok, err := s.UpdateRoom(ctx, first)
		require.NoError(t, err)
		require.True(t, ok)

		second := newRoom(code)
		require.NoError(t, s.CreateRoom(ctx, second))

		got, err := s.GetRoomByCode(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID, "the active room wins the code")
	})

	t.Run("UpdateRoom_CompareAndSwap", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))

		stale, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)

		room.Status = models.RoomPlaying
		room.CurrentRound = 1
		room.SecretWord = "pizza"
		ok, err := s.UpdateRoom(ctx, room)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(2), room.Version)

		stale.MaxRounds = 9
		ok, err = s.UpdateRoom(ctx, stale)
		require.NoError(t, err)
		assert.False(t, ok, "a stale version must lose")

		got, err := s.GetRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoomPlaying, got.Status)
		assert.Equal(t, "pizza", got.SecretWord)
		assert.Equal(t, 5, got.MaxRounds)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("UpdateRoom_NotFound", func(t *testing.T) {
		_, err := s.UpdateRoom(ctx, newRoom(uniqueCode()))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("PlayersInJoinOrder", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))

		names := []string{"ana", "ben", "cleo", "dan"}
		for i, name := range names {
			require.NoError(t, s.CreatePlayer(ctx, newPlayer(room.ID, name, i == 0)))
		}

		players, err := s.ListPlayers(ctx, room.ID)
		require.NoError(t, err)
		require.Len(t, players, len(names))
		for i, p := range players {
			assert.Equal(t, names[i], p.Name)
		}
		assert.True(t, players[0].IsHost)
	})

	t.Run("OneHostPerRoom", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))
		require.NoError(t, s.CreatePlayer(ctx, newPlayer(room.ID, "host", true)))

		err := s.CreatePlayer(ctx, newPlayer(room.ID, "usurper", true))
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("CreatePlayer_UnknownRoom", func(t *testing.T) {
		err := s.CreatePlayer(ctx, newPlayer(uuid.NewString(), "lost", false))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("UpdatePlayers_AllOrNothing", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))
		a := newPlayer(room.ID, "a", true)
		b := newPlayer(room.ID, "b", false)
		require.NoError(t, s.CreatePlayer(ctx, a))
		require.NoError(t, s.CreatePlayer(ctx, b))

		a.Role = models.RoleImpostor
		b.IsAlive = false
		require.NoError(t, s.UpdatePlayers(ctx, []*models.Player{a, b}))

		got, err := s.GetPlayer(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleImpostor, got.Role)
		got, err = s.GetPlayer(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, got.IsAlive)

		a.Role = models.RoleCrew
		ghost := newPlayer(room.ID, "ghost", false)
		err = s.UpdatePlayers(ctx, []*models.Player{a, ghost})
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err = s.GetPlayer(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoleImpostor, got.Role, "a failed batch must not apply partially")
	})

	t.Run("DeletePlayer", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))
		p := newPlayer(room.ID, "leaver", false)
		require.NoError(t, s.CreatePlayer(ctx, p))

		require.NoError(t, s.DeletePlayer(ctx, p.ID))
		_, err := s.GetPlayer(ctx, p.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.DeletePlayer(ctx, p.ID), store.ErrNotFound)
	})

	t.Run("RoundUniqueness", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))

		first := newRound(room.ID, 1)
		require.NoError(t, s.CreateRound(ctx, first))
		assert.Equal(t, int64(1), first.Version)

		err := s.CreateRound(ctx, newRound(room.ID, 2))
		assert.ErrorIs(t, err, store.ErrDuplicate, "only one open round per room")

		first.Status = models.RoundFinished
		finishedAt := now()
		first.FinishedAt = &finishedAt
		ok, err := s.UpdateRound(ctx, first)
		require.NoError(t, err)
		require.True(t, ok)

		err = s.CreateRound(ctx, newRound(room.ID, 1))
		assert.ErrorIs(t, err, store.ErrDuplicate, "round numbers are unique per room")

		second := newRound(room.ID, 2)
		require.NoError(t, s.CreateRound(ctx, second))

		latest, err := s.LatestRound(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
	})

	t.Run("LatestRound_NotFound", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))
		_, err := s.LatestRound(ctx, room.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("UpdateRound_CompareAndSwap", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))
		p := newPlayer(room.ID, "turn", true)
		require.NoError(t, s.CreatePlayer(ctx, p))

		round := newRound(room.ID, 1)
		round.CurrentTurnPlayerID = p.ID
		require.NoError(t, s.CreateRound(ctx, round))

		stale, err := s.GetRound(ctx, round.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, stale.CurrentTurnPlayerID)

		round.Status = models.RoundVoting
		round.CurrentTurnPlayerID = ""
		ok, err := s.UpdateRound(ctx, round)
		require.NoError(t, err)
		assert.True(t, ok)

		stale.Status = models.RoundFinished
		ok, err = s.UpdateRound(ctx, stale)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.GetRound(ctx, round.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoundVoting, got.Status)
		assert.Empty(t, got.CurrentTurnPlayerID)
	})

	t.Run("CluesAndVotes", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))
		a := newPlayer(room.ID, "a", true)
		b := newPlayer(room.ID, "b", false)
		require.NoError(t, s.CreatePlayer(ctx, a))
		require.NoError(t, s.CreatePlayer(ctx, b))
		round := newRound(room.ID, 1)
		require.NoError(t, s.CreateRound(ctx, round))

		for _, p := range []*models.Player{b, a} {
			clue := &models.Clue{ID: uuid.NewString(), RoundID: round.ID, RoomID: room.ID, PlayerID: p.ID, Text: "hint " + p.Name, CreatedAt: now()}
			require.NoError(t, s.CreateClue(ctx, clue))
		}
		dup := &models.Clue{ID: uuid.NewString(), RoundID: round.ID, RoomID: room.ID, PlayerID: a.ID, Text: "again", CreatedAt: now()}
		assert.ErrorIs(t, s.CreateClue(ctx, dup), store.ErrDuplicate)

		clues, err := s.ListClues(ctx, round.ID)
		require.NoError(t, err)
		require.Len(t, clues, 2)
		assert.Equal(t, b.ID, clues[0].PlayerID)
		assert.Equal(t, "hint a", clues[1].Text)

		vote := &models.Vote{ID: uuid.NewString(), RoundID: round.ID, RoomID: room.ID, VoterID: a.ID, TargetID: b.ID, CreatedAt: now()}
		require.NoError(t, s.CreateVote(ctx, vote))
		again := &models.Vote{ID: uuid.NewString(), RoundID: round.ID, RoomID: room.ID, VoterID: a.ID, TargetID: b.ID, CreatedAt: now()}
		assert.ErrorIs(t, s.CreateVote(ctx, again), store.ErrDuplicate)

		votes, err := s.ListVotes(ctx, round.ID)
		require.NoError(t, err)
		require.Len(t, votes, 1)
		assert.Equal(t, b.ID, votes[0].TargetID)

		require.NoError(t, s.DeleteRounds(ctx, room.ID))
		_, err = s.GetRound(ctx, round.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		clues, err = s.ListClues(ctx, round.ID)
		require.NoError(t, err)
		assert.Empty(t, clues)
		votes, err = s.ListVotes(ctx, round.ID)
		require.NoError(t, err)
		assert.Empty(t, votes)
	})

	t.Run("SubscribeFiltersByRoom", func(t *testing.T) {
		watched := newRoom(uniqueCode())
		other := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, watched))
		require.NoError(t, s.CreateRoom(ctx, other))

		var mu sync.Mutex
		var got []store.Change
		sub, err := s.Subscribe(store.TablePlayers, store.Filter{RoomID: watched.ID}, func(c store.Change) {
			mu.Lock()
			got = append(got, c)
			mu.Unlock()
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		require.NoError(t, s.CreatePlayer(ctx, newPlayer(other.ID, "elsewhere", true)))
		p := newPlayer(watched.ID, "here", true)
		require.NoError(t, s.CreatePlayer(ctx, p))

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(got) == 1
		}, 2*time.Second, 10*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, got, 1)
		assert.Equal(t, store.Change{Table: store.TablePlayers, Kind: store.ChangeInsert, ID: p.ID, RoomID: watched.ID}, got[0])
	})
}
