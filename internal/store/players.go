package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gobang-server/internal/player"
)

// LoadPlayers rebuilds the full registry contents, history included, in the
// order the history rows were written.
func (s *Store) LoadPlayers(ctx context.Context) ([]*player.Record, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT nickname, password, nationality, age, photo, preferred_color, wins, losses
		FROM players
		ORDER BY nickname`)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	byNick := map[string]*player.Record{}
	var recs []*player.Record
	for rows.Next() {
		rec := &player.Record{}
		if err := rows.Scan(&rec.Nickname, &rec.Password, &rec.Nationality, &rec.Age,
			&rec.Photo, &rec.PreferredColor, &rec.Wins, &rec.Losses); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan player: %w", err)
		}
		byNick[rec.Nickname] = rec
		recs = append(recs, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	histRows, err := s.Pool.Query(ctx, `
		SELECT nickname, match_id, duration_ms
		FROM player_matches
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer histRows.Close()
	for histRows.Next() {
		var nick, matchID string
		var durationMS int64
		if err := histRows.Scan(&nick, &matchID, &durationMS); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if rec, ok := byNick[nick]; ok {
			rec.AddHistory(matchID, time.Duration(durationMS)*time.Millisecond)
		}
	}
	return recs, histRows.Err()
}

// SavePlayers writes the whole registry back: best-effort overwrite-on-save,
// one transaction. Existing history rows are kept (history is append-only)
// and the ranking snapshot is refreshed from the new stats.
func (s *Store) SavePlayers(ctx context.Context, recs []*player.Record) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("save players: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range recs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO players (nickname, password, nationality, age, photo, preferred_color, wins, losses)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (nickname) DO UPDATE SET
				password = EXCLUDED.password,
				nationality = EXCLUDED.nationality,
				age = EXCLUDED.age,
				photo = EXCLUDED.photo,
				preferred_color = EXCLUDED.preferred_color,
				wins = EXCLUDED.wins,
				losses = EXCLUDED.losses`,
			rec.Nickname, rec.Password, rec.Nationality, rec.Age,
			rec.Photo, rec.PreferredColor, rec.Wins, rec.Losses); err != nil {
			return fmt.Errorf("upsert player %s: %w", rec.Nickname, err)
		}
		for i, matchID := range rec.MatchIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO player_matches (nickname, match_id, duration_ms)
				VALUES ($1, $2, $3)
				ON CONFLICT (nickname, match_id) DO NOTHING`,
				rec.Nickname, matchID, rec.PlayTimes[i].Milliseconds()); err != nil {
				return fmt.Errorf("insert history %s/%s: %w", rec.Nickname, matchID, err)
			}
		}
	}

	if err := refreshRanking(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RankingEntry is one row of the derived ranking snapshot: players sorted by
// wins descending, then average match duration ascending.
type RankingEntry struct {
	Position    int    `json:"position"`
	Nickname    string `json:"nickname"`
	Wins        int    `json:"wins"`
	AvgDuration string `json:"avg_duration"`

	AvgDurationMS int64 `json:"avg_duration_ms"`
}

// Ranking reads the persisted ranking snapshot.
func (s *Store) Ranking(ctx context.Context) ([]RankingEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT position, nickname, wins, avg_duration_ms
		FROM rankings
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	defer rows.Close()
	var out []RankingEntry
	for rows.Next() {
		var e RankingEntry
		if err := rows.Scan(&e.Position, &e.Nickname, &e.Wins, &e.AvgDurationMS); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		e.AvgDuration = player.FormatPlayTime(time.Duration(e.AvgDurationMS) * time.Millisecond)
		out = append(out, e)
	}
	return out, rows.Err()
}

func refreshRanking(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `DELETE FROM rankings`); err != nil {
		return fmt.Errorf("clear ranking: %w", err)
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO rankings (position, nickname, wins, avg_duration_ms)
		SELECT row_number() OVER (ORDER BY p.wins DESC, COALESCE(avg(m.duration_ms), 0) ASC, p.nickname),
		       p.nickname,
		       p.wins,
		       COALESCE(avg(m.duration_ms), 0)::BIGINT
		FROM players p
		LEFT JOIN player_matches m ON m.nickname = p.nickname
		GROUP BY p.nickname, p.wins`)
	if err != nil {
		return fmt.Errorf("refresh ranking: %w", err)
	}
	return nil
}
