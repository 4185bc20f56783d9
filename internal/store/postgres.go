package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/aaronzipp/who-is-the-impostor/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
)

// PostgresStore persists rooms in postgres. Writes publish their change to
// the notifier after the statement (or transaction) commits.
type PostgresStore struct {
	pool     *pgxpool.Pool
	notifier Notifier
	log      *logrus.Entry
}

// NewPostgresStore connects a pool to dsn and pings it
func NewPostgresStore(ctx context.Context, dsn string, notifier Notifier, log *logrus.Entry) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if notifier == nil {
		notifier = NewMemoryNotifier()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PostgresStore{pool: pool, notifier: notifier, log: log.WithField("store", "postgres")}, nil
}

// Close releases the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", ErrConstraint, pgErr.ConstraintName)
		case pgInvalidText:
			// a malformed uuid cannot name any row
			return ErrNotFound
		}
	}
	return err
}

func (s *PostgresStore) publish(ctx context.Context, changes ...Change) {
	for _, c := range changes {
		if err := s.notifier.Publish(ctx, c); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"table": c.Table,
				"id":    c.ID,
			}).Warn("failed to publish change")
		}
	}
}

// Subscribe registers fn with the store's notifier
func (s *PostgresStore) Subscribe(table Table, filter Filter, fn func(Change)) (Subscription, error) {
	return s.notifier.Subscribe(table, filter, fn)
}

const roomColumns = `id, code, status, max_players, impostor_count, max_rounds, current_round,
	COALESCE(secret_word, ''), winner, version, created_at, started_at, finished_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	err := row.Scan(&r.ID, &r.Code, &r.Status, &r.MaxPlayers, &r.ImpostorCount, &r.MaxRounds,
		&r.CurrentRound, &r.SecretWord, &r.Winner, &r.Version, &r.CreatedAt, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

// CreateRoom inserts a new room with version 1
func (s *PostgresStore) CreateRoom(ctx context.Context, room *models.Room) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, code, status, max_players, impostor_count, max_rounds, current_round,
			secret_word, winner, version, created_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, 1, $10, $11, $12)`,
		room.ID, room.Code, room.Status, room.MaxPlayers, room.ImpostorCount, room.MaxRounds, room.CurrentRound,
		room.SecretWord, room.Winner, room.CreatedAt, room.StartedAt, room.FinishedAt)
	if err != nil {
		return mapError(err)
	}
	room.Version = 1

	s.publish(ctx, Change{Table: TableRooms, Kind: ChangeInsert, ID: room.ID, RoomID: room.ID})
	return nil
}

// GetRoom retrieves a room by id
func (s *PostgresStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

// GetRoomByCode retrieves the active room for a code, or the newest finished one
func (s *PostgresStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	return scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE code = $1
		ORDER BY (status = 'finished'), created_at DESC
		LIMIT 1`, code))
}

// UpdateRoom writes the room if its version still matches
func (s *PostgresStore) UpdateRoom(ctx context.Context, room *models.Room) (bool, error) {
	var version int64
	err := s.pool.QueryRow(ctx, `
		UPDATE rooms SET code = $3, status = $4, max_players = $5, impostor_count = $6, max_rounds = $7,
			current_round = $8, secret_word = NULLIF($9, ''), winner = $10, started_at = $11,
			finished_at = $12, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version`,
		room.ID, room.Version, room.Code, room.Status, room.MaxPlayers, room.ImpostorCount, room.MaxRounds,
		room.CurrentRound, room.SecretWord, room.Winner, room.StartedAt, room.FinishedAt).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, s.existsOrNotFound(ctx, "rooms", room.ID)
	}
	if err != nil {
		return false, mapError(err)
	}
	room.Version = version

	s.publish(ctx, Change{Table: TableRooms, Kind: ChangeUpdate, ID: room.ID, RoomID: room.ID})
	return true, nil
}

// existsOrNotFound tells a lost version race (nil) apart from a missing row
func (s *PostgresStore) existsOrNotFound(ctx context.Context, table, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return mapError(err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

const playerColumns = `id, room_id, seq, name, role, is_alive, is_host, joined_at`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.ID, &p.RoomID, &p.Seq, &p.Name, &p.Role, &p.IsAlive, &p.IsHost, &p.JoinedAt); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

// CreatePlayer inserts a player, assigning its join sequence
func (s *PostgresStore) CreatePlayer(ctx context.Context, player *models.Player) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO players (id, room_id, name, role, is_alive, is_host, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`,
		player.ID, player.RoomID, player.Name, player.Role, player.IsAlive, player.IsHost, player.JoinedAt).Scan(&player.Seq)
	if err != nil {
		return mapError(err)
	}

	s.publish(ctx, Change{Table: TablePlayers, Kind: ChangeInsert, ID: player.ID, RoomID: player.RoomID})
	return nil
}

// GetPlayer retrieves a player by id
func (s *PostgresStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	return scanPlayer(s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
}

// ListPlayers returns the room's players in join order
func (s *PostgresStore) ListPlayers(ctx context.Context, roomID string) ([]*models.Player, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+playerColumns+` FROM players WHERE room_id = $1 ORDER BY seq`, roomID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, mapError(rows.Err())
}

// UpdatePlayers writes role and liveness for every player in one transaction
func (s *PostgresStore) UpdatePlayers(ctx context.Context, players []*models.Player) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range players {
		batch.Queue(`UPDATE players SET role = $2, is_alive = $3 WHERE id = $1 RETURNING room_id`, p.ID, p.Role, p.IsAlive)
	}
	results := tx.SendBatch(ctx, batch)
	changes := make([]Change, 0, len(players))
	for _, p := range players {
		var roomID string
		if err := results.QueryRow().Scan(&roomID); err != nil {
			results.Close()
			return mapError(err)
		}
		changes = append(changes, Change{Table: TablePlayers, Kind: ChangeUpdate, ID: p.ID, RoomID: roomID})
	}
	if err := results.Close(); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing player batch: %w", err)
	}

	s.publish(ctx, changes...)
	return nil
}

// DeletePlayer removes a player
func (s *PostgresStore) DeletePlayer(ctx context.Context, id string) error {
	var roomID string
	err := s.pool.QueryRow(ctx, `DELETE FROM players WHERE id = $1 RETURNING room_id`, id).Scan(&roomID)
	if err != nil {
		return mapError(err)
	}

	s.publish(ctx, Change{Table: TablePlayers, Kind: ChangeDelete, ID: id, RoomID: roomID})
	return nil
}

const roundColumns = `id, room_id, round_number, status, COALESCE(current_turn_player_id::text, ''),
	COALESCE(eliminated_player_id::text, ''), version, created_at, finished_at`

func scanRound(row pgx.Row) (*models.Round, error) {
	var r models.Round
	err := row.Scan(&r.ID, &r.RoomID, &r.Number, &r.Status, &r.CurrentTurnPlayerID,
		&r.EliminatedPlayerID, &r.Version, &r.CreatedAt, &r.FinishedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

// CreateRound inserts a round with version 1
func (s *PostgresStore) CreateRound(ctx context.Context, round *models.Round) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rounds (id, room_id, round_number, status, current_turn_player_id,
			eliminated_player_id, version, created_at, finished_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, NULLIF($6, '')::uuid, 1, $7, $8)`,
		round.ID, round.RoomID, round.Number, round.Status, round.CurrentTurnPlayerID,
		round.EliminatedPlayerID, round.CreatedAt, round.FinishedAt)
	if err != nil {
		return mapError(err)
	}
	round.Version = 1

	s.publish(ctx, Change{Table: TableRounds, Kind: ChangeInsert, ID: round.ID, RoomID: round.RoomID, RoundID: round.ID})
	return nil
}

// GetRound retrieves a round by id
func (s *PostgresStore) GetRound(ctx context.Context, id string) (*models.Round, error) {
	return scanRound(s.pool.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id))
}

// LatestRound returns the highest-numbered round of the room
func (s *PostgresStore) LatestRound(ctx context.Context, roomID string) (*models.Round, error) {
	return scanRound(s.pool.QueryRow(ctx, `
		SELECT `+roundColumns+` FROM rounds
		WHERE room_id = $1
		ORDER BY round_number DESC
		LIMIT 1`, roomID))
}

// UpdateRound writes the round if its version still matches
func (s *PostgresStore) UpdateRound(ctx context.Context, round *models.Round) (bool, error) {
	var version int64
	err := s.pool.QueryRow(ctx, `
		UPDATE rounds SET status = $3, current_turn_player_id = NULLIF($4, '')::uuid,
			eliminated_player_id = NULLIF($5, '')::uuid, finished_at = $6, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version`,
		round.ID, round.Version, round.Status, round.CurrentTurnPlayerID, round.EliminatedPlayerID,
		round.FinishedAt).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, s.existsOrNotFound(ctx, "rounds", round.ID)
	}
	if err != nil {
		return false, mapError(err)
	}
	round.Version = version

	s.publish(ctx, Change{Table: TableRounds, Kind: ChangeUpdate, ID: round.ID, RoomID: round.RoomID, RoundID: round.ID})
	return true, nil
}

// DeleteRounds removes the room's rounds; clues and votes cascade
func (s *PostgresStore) DeleteRounds(ctx context.Context, roomID string) error {
	rows, err := s.pool.Query(ctx, `DELETE FROM rounds WHERE room_id = $1 RETURNING id`, roomID)
	if err != nil {
		return mapError(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return mapError(err)
	}

	changes := make([]Change, 0, len(ids))
	for _, id := range ids {
		changes = append(changes, Change{Table: TableRounds, Kind: ChangeDelete, ID: id, RoomID: roomID, RoundID: id})
	}
	s.publish(ctx, changes...)
	return nil
}

// CreateClue inserts a clue; a second clue from the same player is a duplicate
func (s *PostgresStore) CreateClue(ctx context.Context, clue *models.Clue) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO clues (id, round_id, room_id, player_id, clue_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`,
		clue.ID, clue.RoundID, clue.RoomID, clue.PlayerID, clue.Text, clue.CreatedAt).Scan(&clue.Seq)
	if err != nil {
		return mapError(err)
	}

	s.publish(ctx, Change{Table: TableClues, Kind: ChangeInsert, ID: clue.ID, RoomID: clue.RoomID, RoundID: clue.RoundID})
	return nil
}

// ListClues returns the round's clues in insertion order
func (s *PostgresStore) ListClues(ctx context.Context, roundID string) ([]*models.Clue, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, round_id, room_id, player_id, clue_text, seq, created_at
		FROM clues WHERE round_id = $1 ORDER BY seq`, roundID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	clues := make([]*models.Clue, 0)
	for rows.Next() {
		var c models.Clue
		if err := rows.Scan(&c.ID, &c.RoundID, &c.RoomID, &c.PlayerID, &c.Text, &c.Seq, &c.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		clues = append(clues, &c)
	}
	return clues, mapError(rows.Err())
}

// CreateVote inserts a vote; a second vote from the same voter is a duplicate
func (s *PostgresStore) CreateVote(ctx context.Context, vote *models.Vote) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO votes (id, round_id, room_id, voter_id, voted_for_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`,
		vote.ID, vote.RoundID, vote.RoomID, vote.VoterID, vote.TargetID, vote.CreatedAt).Scan(&vote.Seq)
	if err != nil {
		return mapError(err)
	}

	s.publish(ctx, Change{Table: TableVotes, Kind: ChangeInsert, ID: vote.ID, RoomID: vote.RoomID, RoundID: vote.RoundID})
	return nil
}

// ListVotes returns the round's votes in insertion order
func (s *PostgresStore) ListVotes(ctx context.Context, roundID string) ([]*models.Vote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, round_id, room_id, voter_id, voted_for_id, seq, created_at
		FROM votes WHERE round_id = $1 ORDER BY seq`, roundID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	votes := make([]*models.Vote, 0)
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.RoundID, &v.RoomID, &v.VoterID, &v.TargetID, &v.Seq, &v.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		votes = append(votes, &v)
	}
	return votes, mapError(rows.Err())
}
