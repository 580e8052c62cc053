package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/saaga0h/guardian-platform/internal/cycle"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/pkg/postgres"
)

const cycleColumns = `id, user_id, start_date, end_date, cycle_length, period_length, flow_level, symptoms, notes`

const symptomLogColumns = `id, user_id, logged_on, cramps, fatigue, mood, moods, symptoms, flow_level, notes`

// PostgresCycleStore keeps cycle history and daily symptom logs
type PostgresCycleStore struct {
	db     postgres.Client
	logger *slog.Logger
}

// NewPostgresCycleStore creates a cycle store on top of Postgres
func NewPostgresCycleStore(db postgres.Client, logger *slog.Logger) *PostgresCycleStore {
	return &PostgresCycleStore{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// LogCycleStart stores a new cycle. The user's preceding cycle gets the
// observed number of days between the two starts as its length, in the
// same transaction.
func (s *PostgresCycleStore) LogCycleStart(ctx context.Context, c cycle.Cycle) (cycle.Cycle, error) {
	if err := c.Validate(); err != nil {
		return cycle.Cycle{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Symptoms == nil {
		c.Symptoms = []string{}
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var (
			prevID    string
			prevStart time.Time
		)
		err := tx.QueryRowContext(ctx, `
			SELECT id, start_date FROM cycles
			WHERE user_id = $1 AND start_date < $2
			ORDER BY start_date DESC
			LIMIT 1
		`, c.UserID, c.StartDate).Scan(&prevID, &prevStart)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to load previous cycle: %w", err)
		default:
			observed := int(math.Round(c.StartDate.Sub(prevStart).Hours() / 24))
			if _, err := tx.ExecContext(ctx, `UPDATE cycles SET cycle_length = $1 WHERE id = $2`, observed, prevID); err != nil {
				return fmt.Errorf("failed to update previous cycle length: %w", err)
			}
			s.logger.Debug("Closed previous cycle",
				"user_id", c.UserID,
				"cycle_id", prevID,
				"cycle_length", observed)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cycles (`+cycleColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, c.ID, c.UserID, c.StartDate, c.EndDate, c.CycleLength, c.PeriodLength, c.FlowLevel, pq.Array(c.Symptoms), c.Notes)
		if err != nil {
			return fmt.Errorf("failed to insert cycle: %w", err)
		}
		return nil
	})
	if err != nil {
		return cycle.Cycle{}, err
	}
	return c, nil
}

// Cycles returns the user's cycles oldest first
func (s *PostgresCycleStore) Cycles(ctx context.Context, userID string) ([]cycle.Cycle, error) {
	rows, err := s.db.Query(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE user_id = $1 ORDER BY start_date`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var out []cycle.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestCycle returns the user's most recent cycle, or ErrNotFound
func (s *PostgresCycleStore) LatestCycle(ctx context.Context, userID string) (cycle.Cycle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+cycleColumns+` FROM cycles
		WHERE user_id = $1
		ORDER BY start_date DESC
		LIMIT 1
	`, userID)

	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cycle.Cycle{}, fmt.Errorf("no cycle logged for %s: %w", userID, detection.ErrNotFound)
	}
	return c, err
}

func scanCycle(row rowScanner) (cycle.Cycle, error) {
	var (
		c        cycle.Cycle
		end      sql.NullTime
		symptoms []string
	)
	err := row.Scan(&c.ID, &c.UserID, &c.StartDate, &end, &c.CycleLength, &c.PeriodLength, &c.FlowLevel, pq.Array(&symptoms), &c.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return c, err
	}
	if err != nil {
		return c, fmt.Errorf("failed to scan cycle: %w", err)
	}

	if end.Valid {
		c.EndDate = &end.Time
	}
	c.Symptoms = symptoms
	if c.Symptoms == nil {
		c.Symptoms = []string{}
	}
	return c, nil
}

// LogSymptoms stores one daily symptom log
func (s *PostgresCycleStore) LogSymptoms(ctx context.Context, l cycle.SymptomLog) (cycle.SymptomLog, error) {
	if err := l.Validate(); err != nil {
		return cycle.SymptomLog{}, err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Symptoms == nil {
		l.Symptoms = []string{}
	}
	moods := l.Moods
	if moods == nil {
		moods = []string{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO symptom_logs (`+symptomLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.UserID, l.Date, l.Cramps, l.Fatigue, l.Mood, pq.Array(moods), pq.Array(l.Symptoms), l.FlowLevel, l.Notes)
	if err != nil {
		return cycle.SymptomLog{}, fmt.Errorf("failed to insert symptom log: %w", err)
	}
	return l, nil
}

// SymptomLogs returns the user's symptom logs oldest first
func (s *PostgresCycleStore) SymptomLogs(ctx context.Context, userID string) ([]cycle.SymptomLog, error) {
	rows, err := s.db.Query(ctx, `SELECT `+symptomLogColumns+` FROM symptom_logs WHERE user_id = $1 ORDER BY logged_on`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query symptom logs: %w", err)
	}
	defer rows.Close()

	var out []cycle.SymptomLog
	for rows.Next() {
		var (
			l        cycle.SymptomLog
			moods    []string
			symptoms []string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Date, &l.Cramps, &l.Fatigue, &l.Mood,
			pq.Array(&moods), pq.Array(&symptoms), &l.FlowLevel, &l.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan symptom log: %w", err)
		}
		if len(moods) > 0 {
			l.Moods = moods
		}
		l.Symptoms = symptoms
		if l.Symptoms == nil {
			l.Symptoms = []string{}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
