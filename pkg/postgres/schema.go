package postgres

import (
	"context"
	"fmt"
)

// schema holds the idempotent DDL for every table the platform writes
var schema = []string{
	`CREATE TABLE IF NOT EXISTS unusual_activities (
		id          UUID PRIMARY KEY,
		user_id     TEXT NOT NULL,
		type        TEXT NOT NULL,
		details     TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		status      TEXT NOT NULL DEFAULT 'active',
		severity    TEXT NOT NULL,
		latitude    DOUBLE PRECISION,
		longitude   DOUBLE PRECISION,
		metadata    JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_unusual_activities_user_time
		ON unusual_activities (user_id, occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS escalations (
		id           BIGSERIAL PRIMARY KEY,
		user_id      TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		categories   TEXT[] NOT NULL,
		fired_at     TIMESTAMPTZ NOT NULL,
		latitude     DOUBLE PRECISION,
		longitude    DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS normal_routes (
		id          BIGSERIAL PRIMARY KEY,
		user_id     TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		path        BYTEA NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_normal_routes_user ON normal_routes (user_id)`,
	`CREATE TABLE IF NOT EXISTS cycles (
		id            UUID PRIMARY KEY,
		user_id       TEXT NOT NULL,
		start_date    TIMESTAMPTZ NOT NULL,
		end_date      TIMESTAMPTZ,
		cycle_length  INTEGER NOT NULL,
		period_length INTEGER NOT NULL,
		flow_level    TEXT NOT NULL,
		symptoms      TEXT[] NOT NULL DEFAULT '{}',
		notes         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cycles_user_start ON cycles (user_id, start_date)`,
	`CREATE TABLE IF NOT EXISTS symptom_logs (
		id         UUID PRIMARY KEY,
		user_id    TEXT NOT NULL,
		logged_on  TIMESTAMPTZ NOT NULL,
		cramps     TEXT NOT NULL,
		fatigue    INTEGER NOT NULL,
		mood       TEXT NOT NULL,
		moods      TEXT[] NOT NULL DEFAULT '{}',
		symptoms   TEXT[] NOT NULL DEFAULT '{}',
		flow_level TEXT NOT NULL,
		notes      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_symptom_logs_user ON symptom_logs (user_id, logged_on)`,
}

// Migrate creates the tables if they do not exist yet
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := c.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
