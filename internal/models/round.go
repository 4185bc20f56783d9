package models

import "time"

// Round is one cycle of clue-giving and voting within a room
type Round struct {
	ID                  string      `json:"id"`
	RoomID              string      `json:"room_id"`
	Number              int         `json:"round_number"`
	Status              RoundStatus `json:"status"`
	CurrentTurnPlayerID string      `json:"current_turn_player_id,omitempty"`
	EliminatedPlayerID  string      `json:"eliminated_player_id,omitempty"`
	Version             int64       `json:"version"`
	CreatedAt           time.Time   `json:"created_at"`
	FinishedAt          *time.Time  `json:"finished_at,omitempty"`
}

// IsFinished reports whether the round has been resolved
func (r *Round) IsFinished() bool {
	return r.Status == RoundFinished
}

// Clone returns a deep copy of the round
func (r *Round) Clone() *Round {
	c := *r
	c.FinishedAt = cloneTime(r.FinishedAt)
	return &c
}

// Clue is a short text hint. At most one per (round, player).
type Clue struct {
	ID        string    `json:"id"`
	RoundID   string    `json:"round_id"`
	RoomID    string    `json:"room_id"`
	PlayerID  string    `json:"player_id"`
	Text      string    `json:"clue_text"`
	Seq       int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote names the player a voter wants eliminated. At most one per (round, voter).
type Vote struct {
	ID        string    `json:"id"`
	RoundID   string    `json:"round_id"`
	RoomID    string    `json:"room_id"`
	VoterID   string    `json:"voter_id"`
	TargetID  string    `json:"voted_for_id"`
	Seq       int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
