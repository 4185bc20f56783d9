package models

import "time"

// Room is one game session, addressed by a short join code
type Room struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	Status        RoomStatus `json:"status"`
	MaxPlayers    int        `json:"max_players"`
	ImpostorCount int        `json:"impostor_count"`
	MaxRounds     int        `json:"max_rounds"`
	CurrentRound  int        `json:"current_round"`
	SecretWord    string     `json:"secret_word,omitempty"`
	Winner        Winner     `json:"winner,omitempty"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// IsActive reports whether the room still holds its join code
func (r *Room) IsActive() bool {
	return r.Status != RoomFinished
}

// Clone returns a deep copy of the room
func (r *Room) Clone() *Room {
	c := *r
	c.StartedAt = cloneTime(r.StartedAt)
	c.FinishedAt = cloneTime(r.FinishedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
