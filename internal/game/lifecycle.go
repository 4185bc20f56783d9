package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
	"github.com/aaronzipp/who-is-the-impostor/internal/store"
)

// CreateRoom validates the parameters and stores a waiting room under a
// fresh join code
func (g *Game) CreateRoom(ctx context.Context, maxPlayers, impostorCount, maxRounds int) (*models.Room, error) {
	s := g.settings
	if maxPlayers < s.MinPlayers || maxPlayers > s.MaxPlayers {
		return nil, fmt.Errorf("%w: max players must be between %d and %d", ErrValidation, s.MinPlayers, s.MaxPlayers)
	}
	if impostorCount < 1 || impostorCount >= maxPlayers {
		return nil, fmt.Errorf("%w: impostor count must be at least 1 and below max players", ErrValidation)
	}
	if impostorCount > s.MaxImpostors {
		return nil, fmt.Errorf("%w: at most %d impostors", ErrValidation, s.MaxImpostors)
	}
	if maxRounds < 1 || maxRounds > s.MaxRounds {
		return nil, fmt.Errorf("%w: max rounds must be between 1 and %d", ErrValidation, s.MaxRounds)
	}

	for range MaxCodeAttempts {
		room := &models.Room{
			ID:            uuid.New().String(),
			Code:          g.newCode(),
			Status:        models.RoomWaiting,
			MaxPlayers:    maxPlayers,
			ImpostorCount: impostorCount,
			MaxRounds:     maxRounds,
			CreatedAt:     g.now(),
		}
		err := g.store.CreateRoom(ctx, room)
		if errors.Is(err, store.ErrDuplicate) {
			g.log.WithField("code", room.Code).Debug("room code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, storeError(err, "creating room")
		}

		g.log.WithFields(logrus.Fields{
			"room":       room.ID,
			"code":       room.Code,
			"maxPlayers": maxPlayers,
			"impostors":  impostorCount,
			"maxRounds":  maxRounds,
		}).Info("Created room")
		return room, nil
	}
	return nil, fmt.Errorf("%w: no free room code after %d attempts", ErrConflict, MaxCodeAttempts)
}

// JoinRoom adds a player to a waiting room. The first player becomes host.
func (g *Game) JoinRoom(ctx context.Context, code, name string) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(name) > g.settings.MaxNameLength {
		return nil, fmt.Errorf("%w: name longer than %d characters", ErrValidation, g.settings.MaxNameLength)
	}

	room, err := g.RoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomWaiting {
		return nil, fmt.Errorf("%w: room %s is %s", ErrInvalidState, room.Code, room.Status)
	}
	players, err := g.listPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if len(players) >= room.MaxPlayers {
		return nil, fmt.Errorf("%w: %d of %d seats taken", ErrCapacity, len(players), room.MaxPlayers)
	}

	player := &models.Player{
		ID:       uuid.New().String(),
		RoomID:   room.ID,
		Name:     name,
		Role:     models.RoleCrew,
		IsAlive:  true,
		IsHost:   len(players) == 0,
		JoinedAt: g.now(),
	}
	err = g.store.CreatePlayer(ctx, player)
	if errors.Is(err, store.ErrDuplicate) && player.IsHost {
		// another first joiner won the host seat
		player.IsHost = false
		err = g.store.CreatePlayer(ctx, player)
	}
	if err != nil {
		return nil, storeError(err, "adding player")
	}
	log := g.log.WithFields(logrus.Fields{"room": room.ID, "player": player.ID})

	// concurrent joins can all pass the count check; the earliest seats win
	players, err = g.listPlayers(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	for i, p := range players {
		if p.ID != player.ID {
			continue
		}
		if i >= room.MaxPlayers {
			log.Warn("Join overflowed room capacity, withdrawing")
			if err := g.store.DeletePlayer(ctx, player.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, storeError(err, "withdrawing player")
			}
			return nil, fmt.Errorf("%w: room %s filled up", ErrCapacity, room.Code)
		}
		break
	}

	log.WithFields(logrus.Fields{"name": player.Name, "host": player.IsHost}).Info("Player joined")
	return player, nil
}

// StartGame assigns roles and opens round 1 in a waiting room
func (g *Game) StartGame(ctx context.Context, roomID string) error {
	room, err := g.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status != models.RoomWaiting {
		return fmt.Errorf("%w: room is %s", ErrInvalidState, room.Status)
	}
	return g.launch(ctx, room)
}

// RestartGame discards every round of the room and starts a fresh game,
// whatever state the room is in
func (g *Game) RestartGame(ctx context.Context, roomID string) error {
	room, err := g.getRoom(ctx, roomID)
	if err != nil {
		return err
	}
	return g.launch(ctx, room)
}

func (g *Game) launch(ctx context.Context, room *models.Room) error {
	players, err := g.listPlayers(ctx, room.ID)
	if err != nil {
		return err
	}
	if len(players) < g.settings.MinPlayers {
		return fmt.Errorf("%w: need at least %d players, have %d", ErrPrecondition, g.settings.MinPlayers, len(players))
	}
	if room.ImpostorCount >= len(players) {
		return fmt.Errorf("%w: %d impostors need more than %d players", ErrPrecondition, room.ImpostorCount, len(players))
	}

	// claim the room first; whoever loses this write backs off
	now := g.now()
	room.Status = models.RoomPlaying
	room.CurrentRound = 1
	room.SecretWord = g.pickWord()
	room.Winner = models.WinnerUndecided
	room.StartedAt = &now
	room.FinishedAt = nil
	ok, err := g.store.UpdateRoom(ctx, room)
	if err != nil {
		return storeError(err, "claiming room")
	}
	if !ok {
		return fmt.Errorf("%w: room changed while starting", ErrConflict)
	}

	if err := g.store.DeleteRounds(ctx, room.ID); err != nil {
		return storeError(err, "clearing rounds")
	}

	// players that joined between the count check and the claim take part too
	players, err = g.listPlayers(ctx, room.ID)
	if err != nil {
		return err
	}
	g.assignRoles(players, room.ImpostorCount)
	if err := g.store.UpdatePlayers(ctx, players); err != nil {
		return storeError(err, "assigning roles")
	}
	if err := g.verifyRoles(ctx, room); err != nil {
		return err
	}

	first := alivePlayers(players)[0]
	round := &models.Round{
		ID:                  uuid.New().String(),
		RoomID:              room.ID,
		Number:              1,
		Status:              models.RoundCollectingClues,
		CurrentTurnPlayerID: first.ID,
		CreatedAt:           now,
	}
	if err := g.store.CreateRound(ctx, round); err != nil {
		return storeError(err, "opening round 1")
	}

	g.log.WithFields(logrus.Fields{
		"room":      room.ID,
		"players":   len(players),
		"impostors": room.ImpostorCount,
	}).Info("Game started")
	return nil
}

// assignRoles shuffles the roster and makes the first k impostors. Everyone
// comes back to life.
func (g *Game) assignRoles(players []*models.Player, k int) {
	order := make([]*models.Player, len(players))
	copy(order, players)
	g.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for i, p := range order {
		p.IsAlive = true
		if i < k {
			p.Role = models.RoleImpostor
		} else {
			p.Role = models.RoleCrew
		}
	}
}

// verifyRoles re-reads the roster after assignment
func (g *Game) verifyRoles(ctx context.Context, room *models.Room) error {
	players, err := g.listPlayers(ctx, room.ID)
	if err != nil {
		return err
	}
	impostors := 0
	for _, p := range players {
		if p.IsImpostor() {
			impostors++
		}
	}
	if impostors != room.ImpostorCount {
		g.log.WithFields(logrus.Fields{
			"room":     room.ID,
			"expected": room.ImpostorCount,
			"actual":   impostors,
		}).Warn("Role assignment did not hold")
		return fmt.Errorf("%w: expected %d impostors, found %d", ErrInvalidState, room.ImpostorCount, impostors)
	}
	return nil
}

// ExitToLobby returns the room to waiting, resets every player and deletes
// the rounds of the previous game
func (g *Game) ExitToLobby(ctx context.Context, roomID string) error {
	room, err := g.getRoom(ctx, roomID)
	if err != nil {
		return err
	}

	room.Status = models.RoomWaiting
	room.CurrentRound = 0
	room.SecretWord = ""
	room.Winner = models.WinnerUndecided
	room.StartedAt = nil
	room.FinishedAt = nil
	ok, err := g.store.UpdateRoom(ctx, room)
	if err != nil {
		return storeError(err, "resetting room")
	}
	if !ok {
		return fmt.Errorf("%w: room changed while exiting to lobby", ErrConflict)
	}

	if err := g.store.DeleteRounds(ctx, room.ID); err != nil {
		return storeError(err, "clearing rounds")
	}
	players, err := g.listPlayers(ctx, room.ID)
	if err != nil {
		return err
	}
	for _, p := range players {
		p.Role = models.RoleCrew
		p.IsAlive = true
	}
	if err := g.store.UpdatePlayers(ctx, players); err != nil {
		return storeError(err, "resetting players")
	}

	g.log.WithField("room", room.ID).Info("Returned to lobby")
	return nil
}
