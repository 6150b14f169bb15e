package store

import "context"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS players (
		nickname        TEXT PRIMARY KEY,
		password        TEXT NOT NULL,
		nationality     TEXT NOT NULL DEFAULT '',
		age             INT  NOT NULL DEFAULT 0,
		photo           TEXT NOT NULL DEFAULT '',
		preferred_color TEXT NOT NULL DEFAULT '#ffffff',
		wins            INT  NOT NULL DEFAULT 0,
		losses          INT  NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS player_matches (
		seq         BIGSERIAL PRIMARY KEY,
		nickname    TEXT   NOT NULL REFERENCES players(nickname),
		match_id    TEXT   NOT NULL,
		duration_ms BIGINT NOT NULL,
		UNIQUE (nickname, match_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rankings (
		position        INT    NOT NULL,
		nickname        TEXT   PRIMARY KEY,
		wins            INT    NOT NULL,
		avg_duration_ms BIGINT NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the persistence tables when missing. Idempotent;
// called once at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
