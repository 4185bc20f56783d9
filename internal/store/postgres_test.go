package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine3.22",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx, dsn))
	return dsn
}

func TestPostgresStore(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s, err := store.NewPostgresStore(ctx, dsn, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)

	t.Run("MigrateIsIdempotent", func(t *testing.T) {
		assert.NoError(t, store.Migrate(ctx, dsn))
	})

	t.Run("ImpostorCountCheck", func(t *testing.T) {
		room := newRoom(uniqueCode())
		room.ImpostorCount = room.MaxPlayers
		err := s.CreateRoom(ctx, room)
		assert.ErrorIs(t, err, store.ErrConstraint)
	})

	t.Run("SelfVoteCheck", func(t *testing.T) {
		room := newRoom(uniqueCode())
		require.NoError(t, s.CreateRoom(ctx, room))
		p := newPlayer(room.ID, "narcissus", true)
		require.NoError(t, s.CreatePlayer(ctx, p))
		round := newRound(room.ID, 1)
		require.NoError(t, s.CreateRound(ctx, round))

		err := s.CreateVote(ctx, &models.Vote{ID: uuid.NewString(), RoundID: round.ID, RoomID: room.ID, VoterID: p.ID, TargetID: p.ID, CreatedAt: now()})
		assert.ErrorIs(t, err, store.ErrConstraint)
	})
}
