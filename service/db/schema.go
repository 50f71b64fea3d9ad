package db

import (
	"context"
	"fmt"
)

// schema creates the run history tables. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS splflow_runs (
		id                   TEXT PRIMARY KEY,
		status               TEXT        NOT NULL,
		rpc_url              TEXT        NOT NULL,
		signer               TEXT        NOT NULL,
		receiver             TEXT        NOT NULL,
		mint                 TEXT        NOT NULL,
		decimals             SMALLINT    NOT NULL,
		supply               BIGINT      NOT NULL,
		signer_ata           TEXT,
		receiver_ata         TEXT,
		receiver_ata_created BOOLEAN,
		signer_balance       BIGINT,
		receiver_balance     BIGINT,
		error                TEXT,
		started_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at         TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS splflow_runs_started_at_idx ON splflow_runs (started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS splflow_steps (
		id          BIGSERIAL PRIMARY KEY,
		run_id      TEXT        NOT NULL REFERENCES splflow_runs (id) ON DELETE CASCADE,
		step        TEXT        NOT NULL,
		status      TEXT        NOT NULL,
		signature   TEXT,
		account     TEXT,
		amount      BIGINT,
		detail      TEXT,
		duration_ms BIGINT      NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS splflow_steps_run_id_idx ON splflow_steps (run_id, id)`,
}

// EnsureSchema creates the run history tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
