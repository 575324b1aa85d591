package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"duel-server/internal/journal"

	"github.com/jackc/pgx/v5"
)

const defaultListLimit = 50

// SaveDuelRecord stores a finished game. Saving the same record again
// overwrites it.
func (s *Store) SaveDuelRecord(ctx context.Context, r *journal.Record) error {
	artifact, err := r.MarshalArtifact()
	if err != nil {
		return fmt.Errorf("marshal duel record: %w", err)
	}
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		names = append(names, p.Name)
	}
	players, err := json.Marshal(names)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO duel_records (id, room, game, seed, winner, win_reason, turn_count, players, artifact, started_at, ended_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE
		SET winner = EXCLUDED.winner,
		    win_reason = EXCLUDED.win_reason,
		    turn_count = EXCLUDED.turn_count,
		    artifact = EXCLUDED.artifact,
		    ended_at = EXCLUDED.ended_at
	`, r.ID, r.Room, r.Game, int64(r.Seed), r.Winner, r.WinReason, r.TurnCount, players, artifact,
		r.StartedAt, endedAt(r.EndedAt))
	return err
}

func (s *Store) GetDuelRecord(ctx context.Context, id string) (*journal.Record, error) {
	var artifact []byte
	err := s.Pool.QueryRow(ctx, `SELECT artifact FROM duel_records WHERE id = $1`, id).Scan(&artifact)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return journal.UnmarshalArtifact(artifact)
}

// ListDuelRecordsByRoom returns the newest games played under a room name.
func (s *Store) ListDuelRecordsByRoom(ctx context.Context, room string, limit, offset int) ([]DuelRecordSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, room, game, players, winner, win_reason, turn_count, started_at, ended_at
		FROM duel_records
		WHERE room = $1
		ORDER BY started_at DESC, game DESC
		LIMIT $2 OFFSET $3
	`, room, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DuelRecordSummary{}
	for rows.Next() {
		var (
			d       DuelRecordSummary
			players []byte
		)
		if err := rows.Scan(&d.ID, &d.Room, &d.Game, &players, &d.Winner, &d.WinReason, &d.TurnCount, &d.StartedAt, &d.EndedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(players, &d.Players); err != nil {
			return nil, fmt.Errorf("decode players of %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// endedAt keeps unfinished games NULL in ended_at.
func endedAt(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
