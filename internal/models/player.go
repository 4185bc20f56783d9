package models

import "time"

// Player represents a player in a room. Seq is assigned by the store and
// defines join order.
type Player struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	IsAlive  bool      `json:"is_alive"`
	IsHost   bool      `json:"is_host"`
	Seq      int64     `json:"-"`
	JoinedAt time.Time `json:"joined_at"`
}

// IsImpostor reports whether the player was dealt the impostor role
func (p *Player) IsImpostor() bool {
	return p.Role == RoleImpostor
}

// Clone returns a copy of the player
func (p *Player) Clone() *Player {
	c := *p
	return &c
}
