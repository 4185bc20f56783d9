// Package game implements the room and round state machine. Every client
// runs the same logic against a shared store; coordination happens only
// through the store's uniqueness rules and compare-and-swap writes.
package game

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

// Game runs room lifecycle and round operations against a store
type Game struct {
	store    store.Store
	settings Settings
	log      *logrus.Entry
	rng      *lockedRand
	now      func() time.Time
	newCode  func() string
}

// Option customizes a Game
type Option func(*Game)

// WithLogger sets the log entry; a component field is added
func WithLogger(log *logrus.Entry) Option {
	return func(g *Game) { g.log = log }
}

// WithRand makes role assignment and word selection deterministic
func WithRand(r *rand.Rand) Option {
	return func(g *Game) { g.rng = &lockedRand{r: r} }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Game) { g.now = now }
}

// WithCodeGenerator replaces GenerateRoomCode
func WithCodeGenerator(gen func() string) Option {
	return func(g *Game) { g.newCode = gen }
}

// New creates a Game over s
func New(s store.Store, settings Settings, opts ...Option) (*Game, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	g := &Game{
		store:    s,
		settings: settings,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		rng:      &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))},
		now:      func() time.Time { return time.Now().UTC() },
		newCode:  GenerateRoomCode,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.WithField("component", "game")
	return g, nil
}

// Settings returns the bounds the game was created with
func (g *Game) Settings() Settings {
	return g.settings
}

func (g *Game) pickWord() string {
	return g.settings.Words[g.rng.IntN(len(g.settings.Words))]
}

func (g *Game) getRoom(ctx context.Context, id string) (*models.Room, error) {
	room, err := g.store.GetRoom(ctx, id)
	if err != nil {
		return nil, storeError(err, "room "+id)
	}
	return room, nil
}

func (g *Game) getRound(ctx context.Context, id string) (*models.Round, error) {
	round, err := g.store.GetRound(ctx, id)
	if err != nil {
		return nil, storeError(err, "round "+id)
	}
	return round, nil
}

func (g *Game) getPlayer(ctx context.Context, id string) (*models.Player, error) {
	player, err := g.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, storeError(err, "player "+id)
	}
	return player, nil
}

func (g *Game) listPlayers(ctx context.Context, roomID string) ([]*models.Player, error) {
	players, err := g.store.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, storeError(err, "listing players")
	}
	return players, nil
}

// Room returns a room by id
func (g *Game) Room(ctx context.Context, id string) (*models.Room, error) {
	return g.getRoom(ctx, id)
}

// RoomByCode returns the room a join code resolves to
func (g *Game) RoomByCode(ctx context.Context, code string) (*models.Room, error) {
	code = NormalizeCode(code)
	room, err := g.store.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, storeError(err, "room code "+code)
	}
	return room, nil
}

// Players returns the room's players in join order
func (g *Game) Players(ctx context.Context, roomID string) ([]*models.Player, error) {
	return g.listPlayers(ctx, roomID)
}

// CurrentRound returns the room's highest-numbered round
func (g *Game) CurrentRound(ctx context.Context, roomID string) (*models.Round, error) {
	round, err := g.store.LatestRound(ctx, roomID)
	if err != nil {
		return nil, storeError(err, "current round")
	}
	return round, nil
}
