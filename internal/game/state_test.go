package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

func votesFor(targets ...string) []*models.Vote {
	votes := make([]*models.Vote, len(targets))
	for i, t := range targets {
		votes[i] = &models.Vote{VoterID: "voter", TargetID: t, Seq: int64(i + 1)}
	}
	return votes
}

func TestTally(t *testing.T) {
	tests := []struct {
		name    string
		votes   []*models.Vote
		target  string
		max     int
		tied    bool
		counted map[string]int
	}{
		{
			name:    "Plurality",
			votes:   votesFor("x", "y", "x"),
			target:  "x",
			max:     2,
			counted: map[string]int{"x": 2, "y": 1},
		},
		{
			name:    "TieGoesToFirstVoted",
			votes:   votesFor("y", "x", "x", "y"),
			target:  "y",
			max:     2,
			tied:    true,
			counted: map[string]int{"x": 2, "y": 2},
		},
		{
			name:    "SingleVoteEach",
			votes:   votesFor("c", "a", "b"),
			target:  "c",
			max:     1,
			tied:    true,
			counted: map[string]int{"a": 1, "b": 1, "c": 1},
		},
		{
			name:    "NoVotes",
			votes:   nil,
			target:  "",
			max:     0,
			counted: map[string]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Tally(tt.votes)
			assert.Equal(t, tt.target, result.Target)
			assert.Equal(t, tt.max, result.Max)
			assert.Equal(t, tt.tied, result.Tied)
			assert.Equal(t, tt.counted, result.Counts)
		})
	}

	t.Run("LaterLeaderDoesNotOvertakeOnTie", func(t *testing.T) {
		result := Tally(votesFor("a", "b", "b", "b", "a", "a"))
		assert.Equal(t, "a", result.Target)
		assert.True(t, result.Tied)
	})

	t.Run("UsesInsertionOrderNotSliceOrder", func(t *testing.T) {
		votes := []*models.Vote{
			{TargetID: "y", Seq: 4},
			{TargetID: "x", Seq: 2},
			{TargetID: "y", Seq: 1},
			{TargetID: "x", Seq: 3},
		}
		// by seq: y x x y, y was voted for first
		assert.Equal(t, "y", Tally(votes).Target)
	})
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name                  string
		impostors, crew       int
		roundNumber, maxRound int
		want                  Outcome
	}{
		{"NoImpostorsLeft", 0, 3, 1, 5, OutcomeCrewWins},
		{"CrewWinsBeforeParity", 0, 0, 1, 5, OutcomeCrewWins},
		{"CrewWinsOnLastRound", 0, 2, 5, 5, OutcomeCrewWins},
		{"Parity", 1, 1, 1, 5, OutcomeImpostorsWin},
		{"Outnumbered", 2, 1, 1, 5, OutcomeImpostorsWin},
		{"ImpostorsWinOnLastRound", 1, 1, 5, 5, OutcomeImpostorsWin},
		{"RoundLimit", 1, 3, 5, 5, OutcomeDraw},
		{"Continue", 1, 3, 2, 5, OutcomeContinue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.impostors, tt.crew, tt.roundNumber, tt.maxRound))
		})
	}
}

func TestOutcomeWinner(t *testing.T) {
	assert.Equal(t, models.WinnerCrew, OutcomeCrewWins.Winner())
	assert.Equal(t, models.WinnerImpostors, OutcomeImpostorsWin.Winner())
	assert.Equal(t, models.WinnerDraw, OutcomeDraw.Winner())
	assert.Equal(t, models.WinnerUndecided, OutcomeContinue.Winner())
}

func TestNextTurn(t *testing.T) {
	players := []*models.Player{
		{ID: "a", IsAlive: true},
		{ID: "b", IsAlive: false},
		{ID: "c", IsAlive: true},
		{ID: "d", IsAlive: true},
	}

	assert.Equal(t, "a", nextTurn(players, nil, ""), "starts at the first alive player")
	assert.Equal(t, "c", nextTurn(players, map[string]bool{"a": true}, "a"), "skips the dead")
	assert.Equal(t, "a", nextTurn(players, map[string]bool{"c": true, "d": true}, "d"), "wraps around")
	assert.Equal(t, "d", nextTurn(players, map[string]bool{"a": true, "c": true}, "a"), "skips players who already gave a clue")
	assert.Equal(t, "", nextTurn(players, map[string]bool{"a": true, "c": true, "d": true}, "d"))
	assert.Equal(t, "", nextTurn(nil, nil, ""))
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	broken := []func(*Settings){
		func(s *Settings) { s.MinPlayers = 2 },
		func(s *Settings) { s.MaxPlayers = s.MinPlayers - 1 },
		func(s *Settings) { s.MaxImpostors = 0 },
		func(s *Settings) { s.MaxRounds = 0 },
		func(s *Settings) { s.MaxClueLength = 0 },
		func(s *Settings) { s.Words = nil },
		func(s *Settings) { s.Words = []string{"ok", "  "} },
	}
	for _, mutate := range broken {
		s := DefaultSettings()
		mutate(&s)
		assert.Error(t, s.Validate())
	}
}

func TestGenerateRoomCode(t *testing.T) {
	for range 50 {
		code := GenerateRoomCode()
		assert.Len(t, code, RoomCodeLength)
		for _, c := range code {
			assert.Contains(t, RoomCodeChars, string(c))
		}
	}
	assert.Equal(t, "ABC234", NormalizeCode("  abc234 "))
}
