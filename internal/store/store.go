package store

import (
	"context"
	"errors"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a write violates a uniqueness rule: active
	// room code, one host per room, one open round per room, (room, round
	// number), one clue per (round, player), one vote per (round, voter).
	ErrDuplicate = errors.New("store: duplicate")

	// ErrConstraint is returned when a row fails a check constraint
	ErrConstraint = errors.New("store: constraint violated")

	// ErrClosed is returned when subscribing on a closed notifier
	ErrClosed = errors.New("store: notifier closed")
)

// Table names a notification source
type Table string

const (
	TableRooms   Table = "rooms"
	TablePlayers Table = "players"
	TableRounds  Table = "rounds"
	TableClues   Table = "clues"
	TableVotes   Table = "votes"
)

// Tables lists every table that emits change notifications
var Tables = []Table{TableRooms, TablePlayers, TableRounds, TableClues, TableVotes}

// ChangeKind is the kind of write a notification reports
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change identifies a changed row. Consumers re-fetch; the payload only
// carries enough to route the notification.
type Change struct {
	Table   Table      `json:"table"`
	Kind    ChangeKind `json:"kind"`
	ID      string     `json:"id"`
	RoomID  string     `json:"room_id"`
	RoundID string     `json:"round_id,omitempty"`
}

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	RoomID  string
	RoundID string
}

// Matches reports whether the change passes the filter
func (f Filter) Matches(c Change) bool {
	if f.RoomID != "" && f.RoomID != c.RoomID {
		return false
	}
	if f.RoundID != "" && f.RoundID != c.RoundID {
		return false
	}
	return true
}

// Subscription is a delivery registration returned by Subscribe
type Subscription interface {
	Unsubscribe()
}

// Notifier publishes and delivers change notifications. Callbacks for one
// subscription run sequentially on a goroutine owned by the notifier.
type Notifier interface {
	Publish(ctx context.Context, c Change) error
	Subscribe(table Table, filter Filter, fn func(Change)) (Subscription, error)
	Close() error
}

// Store is the persistent room store shared by every client.
//
// UpdateRoom and UpdateRound are compare-and-swap writes on Version: they
// apply only when the stored version equals the one on the argument, bump
// the version on success, and report false (with a nil error) when another
// writer got there first. UpdatePlayers applies the whole batch or nothing.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	// GetRoomByCode prefers the active room holding the code, falling back
	// to the most recently created finished one.
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) (bool, error)

	CreatePlayer(ctx context.Context, player *models.Player) error
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	// ListPlayers returns the room's players in join order
	ListPlayers(ctx context.Context, roomID string) ([]*models.Player, error)
	UpdatePlayers(ctx context.Context, players []*models.Player) error
	DeletePlayer(ctx context.Context, id string) error

	CreateRound(ctx context.Context, round *models.Round) error
	GetRound(ctx context.Context, id string) (*models.Round, error)
	// LatestRound returns the round with the highest number for the room
	LatestRound(ctx context.Context, roomID string) (*models.Round, error)
	UpdateRound(ctx context.Context, round *models.Round) (bool, error)
	// DeleteRounds removes every round of the room with its clues and votes
	DeleteRounds(ctx context.Context, roomID string) error

	CreateClue(ctx context.Context, clue *models.Clue) error
	// ListClues returns the round's clues in insertion order
	ListClues(ctx context.Context, roundID string) ([]*models.Clue, error)

	CreateVote(ctx context.Context, vote *models.Vote) error
	// ListVotes returns the round's votes in insertion order
	ListVotes(ctx context.Context, roundID string) ([]*models.Vote, error)

	Subscribe(table Table, filter Filter, fn func(Change)) (Subscription, error)
}
