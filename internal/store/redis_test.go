package store

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/saaga0h/guardian-platform/internal/detection"
	"github.com/saaga0h/guardian-platform/internal/geo"
	"github.com/saaga0h/guardian-platform/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClientWithOptions(&goredis.Options{Addr: mr.Addr()}, testLogger())
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisSettingsRepository(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	repo := NewRedisSettingsRepository(client)

	_, err := repo.LoadSettings(ctx, "u1")
	assert.ErrorIs(t, err, detection.ErrNotFound)

	settings := detection.DefaultSettings()
	settings.SafeZoneRadius = 300
	settings.AutoSOSEnabled = false
	require.NoError(t, repo.SaveSettings(ctx, "u1", settings))

	assert.True(t, mr.Exists("settings:detection:u1"))

	loaded, err := repo.LoadSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestRedisSettingsRepository_PartialDocumentKeepsDefaults(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	repo := NewRedisSettingsRepository(client)

	require.NoError(t, mr.Set("settings:detection:u1", `{"sosThreshold": 4}`))

	loaded, err := repo.LoadSettings(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.SOSThreshold)
	assert.Equal(t, 1000.0, loaded.SafeZoneRadius)
	assert.True(t, loaded.TrackLateNightExit)

	require.NoError(t, mr.Set("settings:detection:u2", `not json`))
	_, err = repo.LoadSettings(ctx, "u2")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, detection.ErrNotFound)
}

func TestRedisSettingsRepository_WithSettingsStore(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	store := detection.NewSettingsStore(NewRedisSettingsRepository(client), detection.DefaultSettings(), testLogger())

	radius := 750.0
	_, err := store.Update(ctx, "u1", detection.SettingsPatch{SafeZoneRadius: &radius})
	require.NoError(t, err)

	got := store.Get(ctx, "u1")
	assert.Equal(t, 750.0, got.SafeZoneRadius)
	assert.Equal(t, "22:00", got.LateNightStart)
}

func TestRedisHomeLocator(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	fallback := geo.Point{Latitude: 40.7128, Longitude: -74.0060}
	locator := NewRedisHomeLocator(client, fallback, testLogger())

	got, err := locator.HomeLocation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	home := geo.Point{Latitude: 60.1699, Longitude: 24.9384}
	require.NoError(t, locator.SetHomeLocation(ctx, "u1", home))
	assert.Equal(t, "60.1699", mr.HGet("home:u1", "lat"))

	got, err = locator.HomeLocation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	mr.HSet("home:u2", "lat", "north", "lon", "0")
	_, err = locator.HomeLocation(ctx, "u2")
	assert.Error(t, err)
}
