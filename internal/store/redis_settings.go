package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/pkg/redis"
)

// RedisSettingsRepository keeps each user's detection settings as a JSON
// document at settings:detection:{user_id}
type RedisSettingsRepository struct {
	redis redis.Client
}

// NewRedisSettingsRepository creates a settings repository on top of Redis
func NewRedisSettingsRepository(client redis.Client) *RedisSettingsRepository {
	return &RedisSettingsRepository{redis: client}
}

// LoadSettings reads the user's settings. Keys absent from the stored
// document keep their default value.
func (r *RedisSettingsRepository) LoadSettings(ctx context.Context, userID string) (detection.DetectionSettings, error) {
	raw, err := r.redis.Get(ctx, redis.DetectionSettingsKey(userID))
	if errors.Is(err, redis.ErrNotFound) {
		return detection.DetectionSettings{}, detection.ErrNotFound
	}
	if err != nil {
		return detection.DetectionSettings{}, err
	}

	settings := detection.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return detection.DetectionSettings{}, fmt.Errorf("failed to decode settings for %s: %w", userID, err)
	}
	return settings, nil
}

// SaveSettings overwrites the user's settings document
func (r *RedisSettingsRepository) SaveSettings(ctx context.Context, userID string, settings detection.DetectionSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return r.redis.Set(ctx, redis.DetectionSettingsKey(userID), data, 0)
}
