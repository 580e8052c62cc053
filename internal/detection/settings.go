package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DetectionSettings controls which rules run for a user and their thresholds
type DetectionSettings struct {
	TrackLateNightExit     bool    `json:"trackLateNightExit" yaml:"trackLateNightExit"`
	TrackRouteDeviation    bool    `json:"trackRouteDeviation" yaml:"trackRouteDeviation"`
	TrackMissedCheckin     bool    `json:"trackMissedCheckin" yaml:"trackMissedCheckin"`
	TrackRepeatedSOS       bool    `json:"trackRepeatedSos" yaml:"trackRepeatedSos"`
	TrackHealthAnomaly     bool    `json:"trackHealthAnomaly" yaml:"trackHealthAnomaly"`
	SafeZoneRadius         float64 `json:"safeZoneRadius" yaml:"safeZoneRadius"` // meters
	LateNightStart         string  `json:"lateNightStart" yaml:"lateNightStart"` // HH:MM
	LateNightEnd           string  `json:"lateNightEnd" yaml:"lateNightEnd"`     // HH:MM
	SOSThreshold           int     `json:"sosThreshold" yaml:"sosThreshold"`
	HealthAnomalyThreshold int     `json:"healthAnomalyThreshold" yaml:"healthAnomalyThreshold"`
	AutoSOSEnabled         bool    `json:"autoSosEnabled" yaml:"autoSosEnabled"`
	NotificationEnabled    bool    `json:"notificationEnabled" yaml:"notificationEnabled"`
}

const (
	defaultSafeZoneRadius         = 1000.0
	defaultLateNightStart         = "22:00"
	defaultLateNightEnd           = "05:00"
	defaultSOSThreshold           = 2
	defaultHealthAnomalyThreshold = 3
)

// DefaultSettings returns the settings used when a user has none stored
func DefaultSettings() DetectionSettings {
	return DetectionSettings{
		TrackLateNightExit:     true,
		TrackRouteDeviation:    true,
		TrackMissedCheckin:     true,
		TrackRepeatedSOS:       true,
		TrackHealthAnomaly:     true,
		SafeZoneRadius:         defaultSafeZoneRadius,
		LateNightStart:         defaultLateNightStart,
		LateNightEnd:           defaultLateNightEnd,
		SOSThreshold:           defaultSOSThreshold,
		HealthAnomalyThreshold: defaultHealthAnomalyThreshold,
		AutoSOSEnabled:         true,
		NotificationEnabled:    true,
	}
}

// LoadDefaultsFile overlays a YAML file onto DefaultSettings. Keys missing
// from the file keep their built-in default.
func LoadDefaultsFile(path string) (DetectionSettings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse settings defaults: %w", err)
	}
	return settings, nil
}

// SettingsPatch is a partial update. Nil fields are left unchanged.
type SettingsPatch struct {
	TrackLateNightExit     *bool    `json:"trackLateNightExit,omitempty"`
	TrackRouteDeviation    *bool    `json:"trackRouteDeviation,omitempty"`
	TrackMissedCheckin     *bool    `json:"trackMissedCheckin,omitempty"`
	TrackRepeatedSOS       *bool    `json:"trackRepeatedSos,omitempty"`
	TrackHealthAnomaly     *bool    `json:"trackHealthAnomaly,omitempty"`
	SafeZoneRadius         *float64 `json:"safeZoneRadius,omitempty"`
	LateNightStart         *string  `json:"lateNightStart,omitempty"`
	LateNightEnd           *string  `json:"lateNightEnd,omitempty"`
	SOSThreshold           *int     `json:"sosThreshold,omitempty"`
	HealthAnomalyThreshold *int     `json:"healthAnomalyThreshold,omitempty"`
	AutoSOSEnabled         *bool    `json:"autoSosEnabled,omitempty"`
	NotificationEnabled    *bool    `json:"notificationEnabled,omitempty"`
}

// Merge applies a shallow patch and returns the result
func (s DetectionSettings) Merge(p SettingsPatch) DetectionSettings {
	if p.TrackLateNightExit != nil {
		s.TrackLateNightExit = *p.TrackLateNightExit
	}
	if p.TrackRouteDeviation != nil {
		s.TrackRouteDeviation = *p.TrackRouteDeviation
	}
	if p.TrackMissedCheckin != nil {
		s.TrackMissedCheckin = *p.TrackMissedCheckin
	}
	if p.TrackRepeatedSOS != nil {
		s.TrackRepeatedSOS = *p.TrackRepeatedSOS
	}
	if p.TrackHealthAnomaly != nil {
		s.TrackHealthAnomaly = *p.TrackHealthAnomaly
	}
	if p.SafeZoneRadius != nil {
		s.SafeZoneRadius = *p.SafeZoneRadius
	}
	if p.LateNightStart != nil {
		s.LateNightStart = *p.LateNightStart
	}
	if p.LateNightEnd != nil {
		s.LateNightEnd = *p.LateNightEnd
	}
	if p.SOSThreshold != nil {
		s.SOSThreshold = *p.SOSThreshold
	}
	if p.HealthAnomalyThreshold != nil {
		s.HealthAnomalyThreshold = *p.HealthAnomalyThreshold
	}
	if p.AutoSOSEnabled != nil {
		s.AutoSOSEnabled = *p.AutoSOSEnabled
	}
	if p.NotificationEnabled != nil {
		s.NotificationEnabled = *p.NotificationEnabled
	}
	return s
}

// Zero values fall back to the defaults; anything else, negatives included,
// is used as stored.

func (s DetectionSettings) safeZoneRadius() float64 {
	if s.SafeZoneRadius == 0 {
		return defaultSafeZoneRadius
	}
	return s.SafeZoneRadius
}

func (s DetectionSettings) sosThreshold() int {
	if s.SOSThreshold == 0 {
		return defaultSOSThreshold
	}
	return s.SOSThreshold
}

func (s DetectionSettings) healthAnomalyThreshold() int {
	if s.HealthAnomalyThreshold == 0 {
		return defaultHealthAnomalyThreshold
	}
	return s.HealthAnomalyThreshold
}

// lateNightHours returns the start and end hour of the late-night window.
// Unparseable boundaries use the default hour.
func (s DetectionSettings) lateNightHours() (start, end int) {
	start, err := parseHour(s.LateNightStart)
	if err != nil {
		start, _ = parseHour(defaultLateNightStart)
	}
	end, err = parseHour(s.LateNightEnd)
	if err != nil {
		end, _ = parseHour(defaultLateNightEnd)
	}
	return start, end
}

// parseHour reads the hour of an "HH:MM" string
func parseHour(hhmm string) (int, error) {
	h, _, _ := strings.Cut(strings.TrimSpace(hhmm), ":")
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid time of day %q: hour out of range", hhmm)
	}
	return hour, nil
}

// SettingsRepository persists per-user settings. LoadSettings returns
// ErrNotFound when the user has none stored.
type SettingsRepository interface {
	LoadSettings(ctx context.Context, userID string) (DetectionSettings, error)
	SaveSettings(ctx context.Context, userID string, settings DetectionSettings) error
}

// SettingsStore reads and patches per-user settings on top of a repository
type SettingsStore struct {
	mu       sync.Mutex // serializes read-modify-write in Update
	repo     SettingsRepository
	defaults DetectionSettings
	logger   *slog.Logger
}

// NewSettingsStore creates a store that falls back to defaults for users
// without stored settings
func NewSettingsStore(repo SettingsRepository, defaults DetectionSettings, logger *slog.Logger) *SettingsStore {
	return &SettingsStore{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
	}
}

// Get returns the user's settings. Missing or unreadable settings yield the
// defaults; the engine never fails on settings.
func (s *SettingsStore) Get(ctx context.Context, userID string) DetectionSettings {
	settings, err := s.repo.LoadSettings(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return s.defaults
	}
	if err != nil {
		s.logger.Warn("Failed to load detection settings, using defaults",
			"user_id", userID,
			"error", err)
		return s.defaults
	}
	return settings
}

// Update applies a shallow merge-patch and persists the result.
// No range validation is performed.
func (s *SettingsStore) Update(ctx context.Context, userID string, patch SettingsPatch) (DetectionSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := s.Get(ctx, userID).Merge(patch)

	if err := s.repo.SaveSettings(ctx, userID, updated); err != nil {
		return updated, fmt.Errorf("failed to save settings for %s: %w", userID, err)
	}

	s.logger.Info("Detection settings updated", "user_id", userID)
	return updated, nil
}
