package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/saaga0h/guardian-platform/pkg/redis"
)

// RedisHomeLocator reads registered safe-zone centers from the home:{user_id}
// hash (fields lat, lon). Users without one get the fallback point.
type RedisHomeLocator struct {
	redis    redis.Client
	fallback geo.Point
	logger   *slog.Logger
}

// NewRedisHomeLocator creates a locator with a fallback safe-zone center
func NewRedisHomeLocator(client redis.Client, fallback geo.Point, logger *slog.Logger) *RedisHomeLocator {
	return &RedisHomeLocator{
		redis:    client,
		fallback: fallback,
		logger:   logger,
	}
}

// HomeLocation returns the user's registered home or the fallback
func (r *RedisHomeLocator) HomeLocation(ctx context.Context, userID string) (geo.Point, error) {
	fields, err := r.redis.HGetAll(ctx, redis.HomeLocationKey(userID))
	if errors.Is(err, redis.ErrNotFound) {
		r.logger.Debug("No home registered, using fallback", "user_id", userID)
		return r.fallback, nil
	}
	if err != nil {
		return geo.Point{}, err
	}

	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid home latitude for %s: %w", userID, err)
	}
	lon, err := strconv.ParseFloat(fields["lon"], 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid home longitude for %s: %w", userID, err)
	}

	return geo.Point{Latitude: lat, Longitude: lon}, nil
}

// SetHomeLocation registers the user's safe-zone center
func (r *RedisHomeLocator) SetHomeLocation(ctx context.Context, userID string, home geo.Point) error {
	return r.redis.HSet(ctx, redis.HomeLocationKey(userID), map[string]interface{}{
		"lat": strconv.FormatFloat(home.Latitude, 'f', -1, 64),
		"lon": strconv.FormatFloat(home.Longitude, 'f', -1, 64),
	})
}
