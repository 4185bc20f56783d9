package render

import (
	"github.com/aaronzipp/who-is-the-impostor/internal/live"
	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

// Player is a roster entry as one particular player may see it
type Player struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	IsHost   bool        `json:"is_host"`
	IsAlive  bool        `json:"is_alive"`
	Role     models.Role `json:"role,omitempty"`
	IsYou    bool        `json:"is_you"`
	HasClue  bool        `json:"has_clue"`
	HasVoted bool        `json:"has_voted"`
}

type Clue struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Text       string `json:"clue_text"`
}

type Vote struct {
	VoterID  string `json:"voter_id"`
	TargetID string `json:"voted_for_id"`
}

type Round struct {
	ID                  string             `json:"id"`
	Number              int                `json:"round_number"`
	Status              models.RoundStatus `json:"status"`
	CurrentTurnPlayerID string             `json:"current_turn_player_id,omitempty"`
	EliminatedPlayerID  string             `json:"eliminated_player_id,omitempty"`
	Clues               []Clue             `json:"clues"`
	VoteCount           int                `json:"vote_count"`
	Votes               []Vote             `json:"votes,omitempty"`
}

// View is the personalized room state sent to one client
type View struct {
	Code          string            `json:"code"`
	Status        models.RoomStatus `json:"status"`
	MaxPlayers    int               `json:"max_players"`
	ImpostorCount int               `json:"impostor_count"`
	MaxRounds     int               `json:"max_rounds"`
	CurrentRound  int               `json:"current_round"`
	Winner        models.Winner     `json:"winner,omitempty"`
	SecretWord    string            `json:"secret_word,omitempty"`

	Me           *Player  `json:"me,omitempty"`
	Players      []Player `json:"players"`
	AlivePlayers int      `json:"alive_players"`
	Round        *Round   `json:"round,omitempty"`

	IsMyTurn bool `json:"is_my_turn"`
	CanVote  bool `json:"can_vote"`
	CanStart bool `json:"can_start"`
}

// ForPlayer projects v for playerID. Impostors never receive the secret
// word and other players' roles stay hidden until the game is over. An
// unknown playerID gets the spectator projection.
func ForPlayer(v *live.View, playerID string, minPlayers int) *View {
	room := v.Room
	out := &View{
		Code:          room.Code,
		Status:        room.Status,
		MaxPlayers:    room.MaxPlayers,
		ImpostorCount: room.ImpostorCount,
		MaxRounds:     room.MaxRounds,
		CurrentRound:  room.CurrentRound,
		Winner:        room.Winner,
		Players:       make([]Player, 0, len(v.Players)),
	}
	finished := room.Status == models.RoomFinished

	clued := make(map[string]bool, len(v.Clues))
	for _, c := range v.Clues {
		clued[c.PlayerID] = true
	}
	voted := make(map[string]bool, len(v.Votes))
	for _, vote := range v.Votes {
		voted[vote.VoterID] = true
	}

	names := make(map[string]string, len(v.Players))
	for _, p := range v.Players {
		names[p.ID] = p.Name
		entry := Player{
			ID:       p.ID,
			Name:     p.Name,
			IsHost:   p.IsHost,
			IsAlive:  p.IsAlive,
			IsYou:    p.ID == playerID,
			HasClue:  clued[p.ID],
			HasVoted: voted[p.ID],
		}
		if room.Status != models.RoomWaiting && (finished || entry.IsYou) {
			entry.Role = p.Role
		}
		if p.IsAlive {
			out.AlivePlayers++
		}
		out.Players = append(out.Players, entry)
		if entry.IsYou {
			me := entry
			out.Me = &me
		}
	}

	switch {
	case finished:
		out.SecretWord = room.SecretWord
	case room.Status == models.RoomPlaying && out.Me != nil && out.Me.Role == models.RoleCrew:
		out.SecretWord = room.SecretWord
	}

	if r := v.Round; r != nil {
		round := &Round{
			ID:                  r.ID,
			Number:              r.Number,
			Status:              r.Status,
			CurrentTurnPlayerID: r.CurrentTurnPlayerID,
			EliminatedPlayerID:  r.EliminatedPlayerID,
			Clues:               make([]Clue, 0, len(v.Clues)),
			VoteCount:           len(v.Votes),
		}
		for _, c := range v.Clues {
			round.Clues = append(round.Clues, Clue{PlayerID: c.PlayerID, PlayerName: names[c.PlayerID], Text: c.Text})
		}
		if r.IsFinished() {
			for _, vote := range v.Votes {
				round.Votes = append(round.Votes, Vote{VoterID: vote.VoterID, TargetID: vote.TargetID})
			}
		}
		out.Round = round
	}

	if me := out.Me; me != nil && room.Status == models.RoomPlaying && out.Round != nil {
		out.IsMyTurn = out.Round.Status == models.RoundCollectingClues && out.Round.CurrentTurnPlayerID == me.ID
		out.CanVote = out.Round.Status == models.RoundVoting && me.IsAlive && !me.HasVoted
	}
	if me := out.Me; me != nil && me.IsHost && room.Status == models.RoomWaiting {
		out.CanStart = len(out.Players) >= minPlayers && room.ImpostorCount < len(out.Players)
	}
	return out
}
