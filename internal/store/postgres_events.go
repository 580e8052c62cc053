package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/saaga0h/guardian-platform/pkg/postgres"
)

// PostgresEventStore persists events in the unusual_activities table
type PostgresEventStore struct {
	db postgres.Client
}

// NewPostgresEventStore creates an event store on top of Postgres
func NewPostgresEventStore(db postgres.Client) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

// Append inserts one event
func (s *PostgresEventStore) Append(ctx context.Context, ev detection.Event) error {
	var metadata []byte
	if len(ev.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(ev.Metadata); err != nil {
			return fmt.Errorf("failed to encode event metadata: %w", err)
		}
	}

	var lat, lon sql.NullFloat64
	if ev.Location != nil {
		lat = sql.NullFloat64{Float64: ev.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: ev.Location.Longitude, Valid: true}
	}

	query := `
		INSERT INTO unusual_activities
			(id, user_id, type, details, occurred_at, status, severity, latitude, longitude, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.Exec(ctx, query,
		ev.ID, ev.UserID, string(ev.Category), ev.Details, ev.Timestamp,
		string(ev.Status), string(ev.Severity), lat, lon, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
	}
	return nil
}

// ListSince returns the user's events at or after since, oldest first
func (s *PostgresEventStore) ListSince(ctx context.Context, userID string, since time.Time) ([]detection.Event, error) {
	query := `
		SELECT id, user_id, type, details, occurred_at, status, severity, latitude, longitude, metadata
		FROM unusual_activities
		WHERE user_id = $1 AND occurred_at >= $2
		ORDER BY occurred_at ASC
	`

	rows, err := s.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []detection.Event
	for rows.Next() {
		var (
			ev                         detection.Event
			category, status, severity string
			lat, lon                   sql.NullFloat64
			metadata                   []byte
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &category, &ev.Details, &ev.Timestamp,
			&status, &severity, &lat, &lon, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		ev.Category = detection.Category(category)
		ev.Status = detection.Status(status)
		ev.Severity = detection.Severity(severity)
		if lat.Valid && lon.Valid {
			ev.Location = &geo.Point{Latitude: lat.Float64, Longitude: lon.Float64}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata of event %s: %w", ev.ID, err)
			}
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

// MarkResolved sets the event's status to resolved. IDs that are not
// UUIDs cannot name a stored event and report ErrNotFound.
func (s *PostgresEventStore) MarkResolved(ctx context.Context, eventID string) error {
	if _, err := uuid.Parse(eventID); err != nil {
		return fmt.Errorf("event %s: %w", eventID, detection.ErrNotFound)
	}

	var id string
	err := s.db.QueryRow(ctx, `UPDATE unusual_activities SET status = $1 WHERE id = $2 RETURNING id`,
		string(detection.StatusResolved), eventID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("event %s: %w", eventID, detection.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve event %s: %w", eventID, err)
	}
	return nil
}

// Clear deletes every event of the user
func (s *PostgresEventStore) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM unusual_activities WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear events for %s: %w", userID, err)
	}
	return nil
}
