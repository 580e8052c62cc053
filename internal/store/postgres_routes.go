package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/saaga0h/guardian-platform/pkg/postgres"
)

// maxNormalRoutes bounds how many learned routes are compared per fix
const maxNormalRoutes = 20

// PostgresRouteCorpus stores learned routes as WKB line strings in
// normal_routes.path
type PostgresRouteCorpus struct {
	db     postgres.Client
	logger *slog.Logger
}

// NewPostgresRouteCorpus creates a route corpus on top of Postgres
func NewPostgresRouteCorpus(db postgres.Client, logger *slog.Logger) *PostgresRouteCorpus {
	return &PostgresRouteCorpus{db: db, logger: logger}
}

// NormalRoutes returns the user's most recently recorded routes. Rows that
// fail to decode are skipped.
func (c *PostgresRouteCorpus) NormalRoutes(ctx context.Context, userID string) ([]geo.Route, error) {
	rows, err := c.db.Query(ctx, `
		SELECT id, path FROM normal_routes
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, userID, maxNormalRoutes)
	if err != nil {
		return nil, fmt.Errorf("failed to query normal routes: %w", err)
	}
	defer rows.Close()

	var routes []geo.Route
	for rows.Next() {
		var (
			id   int64
			path []byte
		)
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("failed to scan normal route: %w", err)
		}

		route, err := geo.UnmarshalWKBRoute(path)
		if err != nil {
			c.logger.Warn("Skipping undecodable normal route", "user_id", userID, "route_id", id, "error", err)
			continue
		}
		routes = append(routes, route)
	}

	return routes, rows.Err()
}

// AddRoute records a learned route for the user and prunes routes beyond
// the newest maxNormalRoutes in the same transaction
func (c *PostgresRouteCorpus) AddRoute(ctx context.Context, userID string, route geo.Route) error {
	path, err := route.MarshalWKB()
	if err != nil {
		return err
	}

	return c.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO normal_routes (user_id, path) VALUES ($1, $2)`, userID, path); err != nil {
			return fmt.Errorf("failed to insert normal route: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM normal_routes
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM normal_routes
				WHERE user_id = $1
				ORDER BY recorded_at DESC, id DESC
				LIMIT $2
			)
		`, userID, maxNormalRoutes)
		if err != nil {
			return fmt.Errorf("failed to prune normal routes: %w", err)
		}

		if n, _ := res.RowsAffected(); n > 0 {
			c.logger.Debug("Pruned normal routes", "user_id", userID, "removed", n)
		}
		return nil
	})
}
