// Package identity remembers which player this client is in each room.
package identity

import "strings"

// Store maps a room code to the local player's id. Codes are normalized, so
// "abc123" and " ABC123" share one entry.
type Store interface {
	PlayerID(code string) (string, bool)
	SetPlayerID(code, playerID string) error
}

func key(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
