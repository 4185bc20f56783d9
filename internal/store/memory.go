package store

import (
	"context"
	"sort"
	"sync"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

// MemoryStore keeps every table in process memory. It enforces the same
// uniqueness rules as the postgres schema so the game logic behaves the same
// against either backend.
type MemoryStore struct {
	rooms   map[string]*models.Room
	players map[string]*models.Player
	rounds  map[string]*models.Round
	clues   map[string]*models.Clue
	votes   map[string]*models.Vote
	seq     int64
	mu      sync.RWMutex

	notifier Notifier
}

// NewMemoryStore creates a store. A nil notifier gets an in-process one.
func NewMemoryStore(notifier Notifier) *MemoryStore {
	if notifier == nil {
		notifier = NewMemoryNotifier()
	}
	return &MemoryStore{
		rooms:    make(map[string]*models.Room),
		players:  make(map[string]*models.Player),
		rounds:   make(map[string]*models.Round),
		clues:    make(map[string]*models.Clue),
		votes:    make(map[string]*models.Vote),
		notifier: notifier,
	}
}

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) publish(ctx context.Context, changes ...Change) {
	for _, c := range changes {
		_ = s.notifier.Publish(ctx, c)
	}
}

// Subscribe registers fn with the store's notifier
func (s *MemoryStore) Subscribe(table Table, filter Filter, fn func(Change)) (Subscription, error) {
	return s.notifier.Subscribe(table, filter, fn)
}

// CreateRoom stores a new room with version 1
func (s *MemoryStore) CreateRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	if _, exists := s.rooms[room.ID]; exists {
		s.mu.Unlock()
		return ErrDuplicate
	}
	if room.IsActive() && s.activeCodeTaken(room.Code, room.ID) {
		s.mu.Unlock()
		return ErrDuplicate
	}
	room.Version = 1
	s.rooms[room.ID] = room.Clone()
	s.mu.Unlock()

	s.publish(ctx, Change{Table: TableRooms, Kind: ChangeInsert, ID: room.ID, RoomID: room.ID})
	return nil
}

// activeCodeTaken must be called with the lock held
func (s *MemoryStore) activeCodeTaken(code, exceptID string) bool {
	for id, r := range s.rooms {
		if id != exceptID && r.Code == code && r.IsActive() {
			return true
		}
	}
	return false
}

// GetRoom retrieves a room by id
func (s *MemoryStore) GetRoom(_ context.Context, id string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, exists := s.rooms[id]
	if !exists {
		return nil, ErrNotFound
	}
	return room.Clone(), nil
}

// GetRoomByCode retrieves the active room for a code, or the newest finished one
func (s *MemoryStore) GetRoomByCode(_ context.Context, code string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *models.Room
	for _, r := range s.rooms {
		if r.Code != code {
			continue
		}
		if r.IsActive() {
			return r.Clone(), nil
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best.Clone(), nil
}

// UpdateRoom writes the room if its version still matches
func (s *MemoryStore) UpdateRoom(ctx context.Context, room *models.Room) (bool, error) {
	s.mu.Lock()
	current, exists := s.rooms[room.ID]
	if !exists {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	if current.Version != room.Version {
		s.mu.Unlock()
		return false, nil
	}
	if room.IsActive() && (room.Code != current.Code || !current.IsActive()) && s.activeCodeTaken(room.Code, room.ID) {
		s.mu.Unlock()
		return false, ErrDuplicate
	}
	room.Version++
	s.rooms[room.ID] = room.Clone()
	s.mu.Unlock()

	s.publish(ctx, Change{Table: TableRooms, Kind: ChangeUpdate, ID: room.ID, RoomID: room.ID})
	return true, nil
}

// CreatePlayer stores a new player, assigning its join sequence
func (s *MemoryStore) CreatePlayer(ctx context.Context, player *models.Player) error {
	s.mu.Lock()
	if _, exists := s.rooms[player.RoomID]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	if _, exists := s.players[player.ID]; exists {
		s.mu.Unlock()
		return ErrDuplicate
	}
	if player.IsHost {
		for _, p := range s.players {
			if p.RoomID == player.RoomID && p.IsHost {
				s.mu.Unlock()
				return ErrDuplicate
			}
		}
	}
	player.Seq = s.nextSeq()
	s.players[player.ID] = player.Clone()
	s.mu.Unlock()

	s.publish(ctx, Change{Table: TablePlayers, Kind: ChangeInsert, ID: player.ID, RoomID: player.RoomID})
	return nil
}

// GetPlayer retrieves a player by id
func (s *MemoryStore) GetPlayer(_ context.Context, id string) (*models.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, exists := s.players[id]
	if !exists {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// ListPlayers returns the room's players in join order
func (s *MemoryStore) ListPlayers(_ context.Context, roomID string) ([]*models.Player, error) {
	s.mu.RLock()
	list := make([]*models.Player, 0)
	for _, p := range s.players {
		if p.RoomID == roomID {
			list = append(list, p.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	return list, nil
}

// UpdatePlayers writes role and liveness for every player in one step
func (s *MemoryStore) UpdatePlayers(ctx context.Context, players []*models.Player) error {
	s.mu.Lock()
	for _, p := range players {
		if _, exists := s.players[p.ID]; !exists {
			s.mu.Unlock()
			return ErrNotFound
		}
	}
	changes := make([]Change, 0, len(players))
	for _, p := range players {
		stored := s.players[p.ID]
		stored.Role = p.Role
		stored.IsAlive = p.IsAlive
		changes = append(changes, Change{Table: TablePlayers, Kind: ChangeUpdate, ID: p.ID, RoomID: stored.RoomID})
	}
	s.mu.Unlock()

	s.publish(ctx, changes...)
	return nil
}

// DeletePlayer removes a player
func (s *MemoryStore) DeletePlayer(ctx context.Context, id string) error {
	s.mu.Lock()
	p, exists := s.players[id]
	if !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.players, id)
	s.mu.Unlock()

	s.publish(ctx, Change{Table: TablePlayers, Kind: ChangeDelete, ID: id, RoomID: p.RoomID})
	return nil
}

// CreateRound stores a new round with version 1
func (s *MemoryStore) CreateRound(ctx context.Context, round *models.Round) error {
	s.mu.Lock()
	if _, exists := s.rooms[round.RoomID]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	for id, r := range s.rounds {
		if r.RoomID != round.RoomID {
			continue
		}
		if id == round.ID || r.Number == round.Number || !r.IsFinished() && !round.IsFinished() {
			s.mu.Unlock()
			return ErrDuplicate
		}
	}
	round.Version = 1
	s.rounds[round.ID] = round.Clone()
	s.mu.Unlock()

	s.publish(ctx, Change{Table: TableRounds, Kind: ChangeInsert, ID: round.ID, RoomID: round.RoomID, RoundID: round.ID})
	return nil
}

// GetRound retrieves a round by id
func (s *MemoryStore) GetRound(_ context.Context, id string) (*models.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, exists := s.rounds[id]
	if !exists {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// LatestRound returns the highest-numbered round of the room
func (s *MemoryStore) LatestRound(_ context.Context, roomID string) (*models.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Round
	for _, r := range s.rounds {
		if r.RoomID == roomID && (latest == nil || r.Number > latest.Number) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest.Clone(), nil
}

// UpdateRound writes the round if its version still matches
func (s *MemoryStore) UpdateRound(ctx context.Context, round *models.Round) (bool, error) {
	s.mu.Lock()
	current, exists := s.rounds[round.ID]
	if !exists {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	if current.Version != round.Version {
		s.mu.Unlock()
		return false, nil
	}
	round.Version++
	s.rounds[round.ID] = round.Clone()
	s.mu.Unlock()

	s.publish(ctx, Change{Table: TableRounds, Kind: ChangeUpdate, ID: round.ID, RoomID: round.RoomID, RoundID: round.ID})
	return true, nil
}

// DeleteRounds removes the room's rounds together with their clues and votes
func (s *MemoryStore) DeleteRounds(ctx context.Context, roomID string) error {
	s.mu.Lock()
	var changes []Change
	for id, r := range s.rounds {
		if r.RoomID != roomID {
			continue
		}
		for cid, c := range s.clues {
			if c.RoundID == id {
				delete(s.clues, cid)
			}
		}
		for vid, v := range s.votes {
			if v.RoundID == id {
				delete(s.votes, vid)
			}
		}
		delete(s.rounds, id)
		changes = append(changes, Change{Table: TableRounds, Kind: ChangeDelete, ID: id, RoomID: roomID, RoundID: id})
	}
	s.mu.Unlock()

	s.publish(ctx, changes...)
	return nil
}

// CreateClue stores a clue; a second clue from the same player is a duplicate
func (s *MemoryStore) CreateClue(ctx context.Context, clue *models.Clue) error {
	s.mu.Lock()
	if _, exists := s.rounds[clue.RoundID]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	for id, c := range s.clues {
		if id == clue.ID || c.RoundID == clue.RoundID && c.PlayerID == clue.PlayerID {
			s.mu.Unlock()
			return ErrDuplicate
		}
	}
	clue.Seq = s.nextSeq()
	c := *clue
	s.clues[clue.ID] = &c
	s.mu.Unlock()

	s.publish(ctx, Change{Table: TableClues, Kind: ChangeInsert, ID: clue.ID, RoomID: clue.RoomID, RoundID: clue.RoundID})
	return nil
}

// ListClues returns the round's clues in insertion order
func (s *MemoryStore) ListClues(_ context.Context, roundID string) ([]*models.Clue, error) {
	s.mu.RLock()
	list := make([]*models.Clue, 0)
	for _, c := range s.clues {
		if c.RoundID == roundID {
			cp := *c
			list = append(list, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	return list, nil
}

// CreateVote stores a vote; a second vote from the same voter is a duplicate
func (s *MemoryStore) CreateVote(ctx context.Context, vote *models.Vote) error {
	s.mu.Lock()
	if _, exists := s.rounds[vote.RoundID]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	for id, v := range s.votes {
		if id == vote.ID || v.RoundID == vote.RoundID && v.VoterID == vote.VoterID {
			s.mu.Unlock()
			return ErrDuplicate
		}
	}
	vote.Seq = s.nextSeq()
	v := *vote
	s.votes[vote.ID] = &v
	s.mu.Unlock()

	s.publish(ctx, Change{Table: TableVotes, Kind: ChangeInsert, ID: vote.ID, RoomID: vote.RoomID, RoundID: vote.RoundID})
	return nil
}

// ListVotes returns the round's votes in insertion order
func (s *MemoryStore) ListVotes(_ context.Context, roundID string) ([]*models.Vote, error) {
	s.mu.RLock()
	list := make([]*models.Vote, 0)
	for _, v := range s.votes {
		if v.RoundID == roundID {
			cp := *v
			list = append(list, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	return list, nil
}
