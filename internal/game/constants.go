package game

const (
	// MinPlayers is the minimum number of players required to start a game
	MinPlayers = 3

	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6

	// RoomCodeChars are the characters used for generating room codes (excluding ambiguous chars)
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// MaxCodeAttempts bounds room code regeneration on collision
	MaxCodeAttempts = 10

	// MaxWriteAttempts bounds re-evaluation after losing a compare-and-swap
	MaxWriteAttempts = 5
)

// Room parameters used when a create request leaves them out
const (
	DefaultMaxPlayers    = 6
	DefaultImpostorCount = 1
	DefaultMaxRounds     = 5
)
