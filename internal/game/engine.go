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

// Resolution describes what resolving a round did
type Resolution struct {
	RoundID     string         `json:"round_id"`
	RoundNumber int            `json:"round_number"`
	Eliminated  string         `json:"eliminated_player_id,omitempty"`
	Tally       map[string]int `json:"tally"`
	Outcome     Outcome        `json:"outcome"`
	NextRoundID string         `json:"next_round_id,omitempty"`

	// Applied is false when the round had already been resolved by someone else
	Applied bool `json:"applied"`
}

// SubmitClue records the player's clue for the round. Clues are given in
// join order; once every alive player has given one the round moves to
// voting. Submitting again is a no-op.
func (g *Game) SubmitClue(ctx context.Context, roundID, playerID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: clue is empty", ErrValidation)
	}
	if utf8.RuneCountInString(text) > g.settings.MaxClueLength {
		return fmt.Errorf("%w: clue longer than %d characters", ErrValidation, g.settings.MaxClueLength)
	}

	round, err := g.getRound(ctx, roundID)
	if err != nil {
		return err
	}
	player, err := g.getPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if player.RoomID != round.RoomID {
		return fmt.Errorf("%w: player is not in this room", ErrValidation)
	}
	log := g.log.WithFields(logrus.Fields{"room": round.RoomID, "round": round.Number, "player": playerID})

	clues, err := g.store.ListClues(ctx, roundID)
	if err != nil {
		return storeError(err, "listing clues")
	}
	for _, c := range clues {
		if c.PlayerID == playerID {
			log.Debug("Clue already submitted")
			return nil
		}
	}

	if round.Status != models.RoundCollectingClues {
		return fmt.Errorf("%w: round is %s", ErrInvalidState, round.Status)
	}
	if !player.IsAlive {
		return fmt.Errorf("%w: eliminated players cannot give clues", ErrInvalidState)
	}
	if round.CurrentTurnPlayerID != "" && round.CurrentTurnPlayerID != playerID {
		return fmt.Errorf("%w: not your turn", ErrInvalidState)
	}

	clue := &models.Clue{
		ID:        uuid.New().String(),
		RoundID:   roundID,
		RoomID:    round.RoomID,
		PlayerID:  playerID,
		Text:      text,
		CreatedAt: g.now(),
	}
	err = g.store.CreateClue(ctx, clue)
	if errors.Is(err, store.ErrDuplicate) {
		log.Debug("Concurrent duplicate clue ignored")
		return nil
	}
	if err != nil {
		return storeError(err, "saving clue")
	}
	log.Info("Clue submitted")

	return g.advanceClues(ctx, roundID)
}

// advanceClues moves the turn pointer, or the round to voting once enough
// clues are in. Safe to run from several clients at once.
func (g *Game) advanceClues(ctx context.Context, roundID string) error {
	for range MaxWriteAttempts {
		round, err := g.getRound(ctx, roundID)
		if err != nil {
			return err
		}
		if round.Status != models.RoundCollectingClues {
			return nil
		}
		players, err := g.listPlayers(ctx, round.RoomID)
		if err != nil {
			return err
		}
		clues, err := g.store.ListClues(ctx, roundID)
		if err != nil {
			return storeError(err, "listing clues")
		}

		if len(clues) >= len(alivePlayers(players)) {
			round.Status = models.RoundVoting
			round.CurrentTurnPlayerID = ""
		} else {
			submitted := make(map[string]bool, len(clues))
			for _, c := range clues {
				submitted[c.PlayerID] = true
			}
			next := nextTurn(players, submitted, round.CurrentTurnPlayerID)
			if next == round.CurrentTurnPlayerID {
				return nil
			}
			round.CurrentTurnPlayerID = next
		}

		ok, err := g.store.UpdateRound(ctx, round)
		if err != nil {
			return storeError(err, "advancing round")
		}
		if ok {
			if round.Status == models.RoundVoting {
				g.log.WithFields(logrus.Fields{"room": round.RoomID, "round": round.Number}).Info("Voting opened")
			}
			return nil
		}
	}
	return fmt.Errorf("%w: round kept changing while advancing", ErrConflict)
}

// nextTurn returns the next alive player after current, in join order and
// wrapping around, who has not given a clue yet
func nextTurn(players []*models.Player, submitted map[string]bool, current string) string {
	start := -1
	for i, p := range players {
		if p.ID == current {
			start = i
			break
		}
	}
	for i := 1; i <= len(players); i++ {
		p := players[(start+i+len(players))%len(players)]
		if p.IsAlive && !submitted[p.ID] {
			return p.ID
		}
	}
	return ""
}

// CastVote records the voter's choice. When every alive player has voted the
// round is resolved. Voting twice is a no-op.
func (g *Game) CastVote(ctx context.Context, roundID, voterID, targetID string) error {
	if voterID == targetID {
		return fmt.Errorf("%w: players cannot vote for themselves", ErrValidation)
	}

	round, err := g.getRound(ctx, roundID)
	if err != nil {
		return err
	}
	players, err := g.listPlayers(ctx, round.RoomID)
	if err != nil {
		return err
	}
	voter := findPlayer(players, voterID)
	target := findPlayer(players, targetID)
	if voter == nil || target == nil {
		return fmt.Errorf("%w: voter and target must be in this room", ErrValidation)
	}
	log := g.log.WithFields(logrus.Fields{"room": round.RoomID, "round": round.Number, "player": voterID})

	votes, err := g.store.ListVotes(ctx, roundID)
	if err != nil {
		return storeError(err, "listing votes")
	}
	for _, v := range votes {
		if v.VoterID == voterID {
			log.Debug("Vote already cast")
			return nil
		}
	}

	if round.Status != models.RoundVoting {
		return fmt.Errorf("%w: round is %s", ErrInvalidState, round.Status)
	}
	if !voter.IsAlive {
		return fmt.Errorf("%w: eliminated players cannot vote", ErrInvalidState)
	}
	if !target.IsAlive {
		return fmt.Errorf("%w: %s is already eliminated", ErrInvalidState, target.Name)
	}

	vote := &models.Vote{
		ID:        uuid.New().String(),
		RoundID:   roundID,
		RoomID:    round.RoomID,
		VoterID:   voterID,
		TargetID:  targetID,
		CreatedAt: g.now(),
	}
	err = g.store.CreateVote(ctx, vote)
	if errors.Is(err, store.ErrDuplicate) {
		log.Debug("Concurrent duplicate vote ignored")
		return nil
	}
	if err != nil {
		return storeError(err, "saving vote")
	}
	log.WithField("target", targetID).Info("Vote cast")

	votes, err = g.store.ListVotes(ctx, roundID)
	if err != nil {
		return storeError(err, "listing votes")
	}
	if len(votes) < len(alivePlayers(players)) {
		return nil
	}
	_, err = g.ResolveRound(ctx, roundID)
	return err
}

// ResolveRound eliminates the most voted player, finishes the round and then
// either opens the next round or finishes the game. Resolving a finished
// round changes nothing.
func (g *Game) ResolveRound(ctx context.Context, roundID string) (*Resolution, error) {
	for range MaxWriteAttempts {
		round, err := g.getRound(ctx, roundID)
		if err != nil {
			return nil, err
		}
		votes, err := g.store.ListVotes(ctx, roundID)
		if err != nil {
			return nil, storeError(err, "listing votes")
		}
		tally := Tally(votes)

		switch round.Status {
		case models.RoundCollectingClues:
			return nil, fmt.Errorf("%w: round %d is still collecting clues", ErrInvalidState, round.Number)
		case models.RoundFinished:
			return g.settle(ctx, round, tally.Counts, false)
		}

		now := g.now()
		round.Status = models.RoundFinished
		round.EliminatedPlayerID = tally.Target
		round.CurrentTurnPlayerID = ""
		round.FinishedAt = &now
		ok, err := g.store.UpdateRound(ctx, round)
		if err != nil {
			return nil, storeError(err, "finishing round")
		}
		if !ok {
			continue
		}

		g.log.WithFields(logrus.Fields{
			"room":       round.RoomID,
			"round":      round.Number,
			"eliminated": tally.Target,
			"votes":      tally.Max,
			"tied":       tally.Tied,
		}).Info("Round resolved")
		return g.settle(ctx, round, tally.Counts, true)
	}
	return nil, fmt.Errorf("%w: round kept changing while resolving", ErrConflict)
}

// settle carries a finished round's result into the room. Every step is
// idempotent so an interrupted resolution is completed by the next caller.
func (g *Game) settle(ctx context.Context, round *models.Round, counts map[string]int, applied bool) (*Resolution, error) {
	res := &Resolution{
		RoundID:     round.ID,
		RoundNumber: round.Number,
		Eliminated:  round.EliminatedPlayerID,
		Tally:       counts,
		Applied:     applied,
	}
	log := g.log.WithFields(logrus.Fields{"room": round.RoomID, "round": round.Number})

	// restart and exit delete the rounds of the previous game
	if _, err := g.store.GetRound(ctx, round.ID); errors.Is(err, store.ErrNotFound) {
		log.Warn("Round belongs to a previous game, leaving the room alone")
		res.Eliminated = ""
		return res, nil
	} else if err != nil {
		return nil, storeError(err, "round "+round.ID)
	}

	players, err := g.listPlayers(ctx, round.RoomID)
	if err != nil {
		return nil, err
	}
	if p := findPlayer(players, round.EliminatedPlayerID); p != nil && p.IsAlive {
		p.IsAlive = false
		if err := g.store.UpdatePlayers(ctx, []*models.Player{p}); err != nil {
			return nil, storeError(err, "eliminating player")
		}
	}
	impostors, crew := countAlive(players)

	for range MaxWriteAttempts {
		room, err := g.getRoom(ctx, round.RoomID)
		if err != nil {
			return nil, err
		}
		res.Outcome = Decide(impostors, crew, round.Number, room.MaxRounds)
		if room.Status != models.RoomPlaying || room.CurrentRound != round.Number {
			if next, err := g.store.LatestRound(ctx, room.ID); err == nil && next.Number == round.Number+1 {
				res.NextRoundID = next.ID
			}
			return res, nil
		}

		if res.Outcome == OutcomeContinue {
			next, err := g.openRound(ctx, room.ID, round.Number+1, players)
			if err != nil {
				return nil, err
			}
			res.NextRoundID = next.ID
			room.CurrentRound = next.Number
			if g.settings.RotateWord {
				room.SecretWord = g.pickWord()
			}
		} else {
			now := g.now()
			room.Status = models.RoomFinished
			room.Winner = res.Outcome.Winner()
			room.FinishedAt = &now
		}

		ok, err := g.store.UpdateRoom(ctx, room)
		if err != nil {
			return nil, storeError(err, "updating room")
		}
		if !ok {
			log.Warn("Room changed while settling round, re-checking")
			continue
		}

		if res.Outcome == OutcomeContinue {
			log.WithField("next", room.CurrentRound).Info("Next round opened")
		} else {
			log.WithField("winner", room.Winner).Info("Game finished")
		}
		return res, nil
	}
	return nil, fmt.Errorf("%w: room kept changing while settling round %d", ErrConflict, round.Number)
}

// openRound creates round number n, or returns it if another client already
// did
func (g *Game) openRound(ctx context.Context, roomID string, n int, players []*models.Player) (*models.Round, error) {
	round := &models.Round{
		ID:                  uuid.New().String(),
		RoomID:              roomID,
		Number:              n,
		Status:              models.RoundCollectingClues,
		CurrentTurnPlayerID: nextTurn(players, nil, ""),
		CreatedAt:           g.now(),
	}
	err := g.store.CreateRound(ctx, round)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return nil, storeError(err, "opening round")
	}

	existing, lerr := g.store.LatestRound(ctx, roomID)
	if lerr != nil {
		return nil, storeError(lerr, "reading latest round")
	}
	if existing.Number != n {
		return nil, fmt.Errorf("%w: cannot open round %d while round %d exists", ErrConflict, n, existing.Number)
	}
	return existing, nil
}
