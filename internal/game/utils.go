package game

import (
	crand "crypto/rand"
	"math/big"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

// GenerateRoomCode creates a random room code
func GenerateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range RoomCodeLength {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(RoomCodeChars))))
		if err != nil {
			// fallback to math/rand if crypto fails
			code[i] = RoomCodeChars[rand.IntN(len(RoomCodeChars))]
			continue
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code)
}

// NormalizeCode makes user-typed codes comparable
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// lockedRand serializes access to a *rand.Rand, which is not safe for
// concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}

func alivePlayers(players []*models.Player) []*models.Player {
	alive := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p.IsAlive {
			alive = append(alive, p)
		}
	}
	return alive
}

func findPlayer(players []*models.Player, id string) *models.Player {
	for _, p := range players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// countAlive returns alive impostors and alive crew
func countAlive(players []*models.Player) (impostors, crew int) {
	for _, p := range players {
		if !p.IsAlive {
			continue
		}
		if p.IsImpostor() {
			impostors++
		} else {
			crew++
		}
	}
	return impostors, crew
}
