package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/saaga0h/guardian-platform/pkg/postgres"
)

// PostgresEscalationLog keeps an audit trail of fired escalations. It
// implements detection.Notifier so it can sit next to the live channel.
type PostgresEscalationLog struct {
	db postgres.Client
}

// NewPostgresEscalationLog creates an escalation log on top of Postgres
func NewPostgresEscalationLog(db postgres.Client) *PostgresEscalationLog {
	return &PostgresEscalationLog{db: db}
}

// NotifyEscalation records the escalation
func (l *PostgresEscalationLog) NotifyEscalation(ctx context.Context, esc detection.Escalation) error {
	categories := make([]string, len(esc.ContributingCategories))
	for i, c := range esc.ContributingCategories {
		categories[i] = string(c)
	}

	var lat, lon sql.NullFloat64
	if esc.Location != nil {
		lat = sql.NullFloat64{Float64: esc.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: esc.Location.Longitude, Valid: true}
	}

	_, err := l.db.Exec(ctx, `
		INSERT INTO escalations (user_id, trigger_type, categories, fired_at, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, esc.UserID, esc.TriggerType, pq.Array(categories), esc.Timestamp, lat, lon)
	if err != nil {
		return fmt.Errorf("failed to record escalation for %s: %w", esc.UserID, err)
	}
	return nil
}

// Recent returns the user's latest escalations, newest first
func (l *PostgresEscalationLog) Recent(ctx context.Context, userID string, limit int) ([]detection.Escalation, error) {
	rows, err := l.db.Query(ctx, `
		SELECT user_id, trigger_type, categories, fired_at, latitude, longitude
		FROM escalations
		WHERE user_id = $1
		ORDER BY fired_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	var out []detection.Escalation
	for rows.Next() {
		var (
			esc        detection.Escalation
			categories []string
			lat, lon   sql.NullFloat64
		)
		if err := rows.Scan(&esc.UserID, &esc.TriggerType, pq.Array(&categories), &esc.Timestamp, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		for _, c := range categories {
			esc.ContributingCategories = append(esc.ContributingCategories, detection.Category(c))
		}
		if lat.Valid && lon.Valid {
			esc.Location = &geo.Point{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		out = append(out, esc)
	}

	return out, rows.Err()
}
