package clock

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/guardian-platform/pkg/mqtt"
)

// TimeConfig is the payload published on the time configuration topic.
// A TimeScale of 0 freezes virtual time at VirtualStart.
type TimeConfig struct {
	VirtualStart string `json:"virtual_start"`
	TimeScale    int    `json:"time_scale"`
	TestMode     bool   `json:"test_mode"`
}

// TimeManager manages virtual time for test scenarios. Outside test mode it
// reports wall-clock time.
type TimeManager struct {
	mu           sync.RWMutex
	testMode     bool
	virtualStart time.Time
	realStart    time.Time
	timeScale    int
	logger       *slog.Logger
	wallClock    func() time.Time
}

// NewTimeManager creates a new time manager
func NewTimeManager(logger *slog.Logger) *TimeManager {
	return &TimeManager{
		testMode:  false,
		realStart: time.Now(),
		timeScale: 1,
		logger:    logger,
		wallClock: time.Now,
	}
}

// ConfigureFromMQTT subscribes to test mode configuration
func (tm *TimeManager) ConfigureFromMQTT(client mqtt.Client) error {
	handler := func(msg mqtt.Message) {
		tm.handleTimeConfig(msg.Payload())
	}

	if err := client.Subscribe(mqtt.TopicTimeConfig, 1, handler); err != nil {
		return fmt.Errorf("failed to subscribe to time config: %w", err)
	}
	return nil
}

func (tm *TimeManager) handleTimeConfig(payload []byte) {
	var cfg TimeConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		tm.logger.Error("Failed to parse test mode config", "error", err)
		return
	}

	if err := tm.Configure(cfg); err != nil {
		tm.logger.Error("Invalid test mode config", "error", err)
	}
}

// Configure applies a time configuration directly
func (tm *TimeManager) Configure(cfg TimeConfig) error {
	if !cfg.TestMode {
		tm.mu.Lock()
		tm.testMode = false
		tm.mu.Unlock()
		tm.logger.Info("Test mode disabled")
		return nil
	}

	virtualStart, err := time.Parse(time.RFC3339, cfg.VirtualStart)
	if err != nil {
		return fmt.Errorf("invalid virtual_start %q: %w", cfg.VirtualStart, err)
	}
	if cfg.TimeScale < 0 {
		return fmt.Errorf("time_scale must not be negative, got %d", cfg.TimeScale)
	}

	tm.mu.Lock()
	tm.testMode = true
	tm.virtualStart = virtualStart
	tm.realStart = tm.wallClock()
	tm.timeScale = cfg.TimeScale
	tm.mu.Unlock()

	tm.logger.Info("Test mode configured",
		"virtual_start", cfg.VirtualStart,
		"time_scale", cfg.TimeScale)
	return nil
}

// Freeze enters test mode with time stopped at t
func (tm *TimeManager) Freeze(t time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.testMode = true
	tm.virtualStart = t
	tm.realStart = tm.wallClock()
	tm.timeScale = 0
}

// Now returns the current time (real or virtual)
func (tm *TimeManager) Now() time.Time {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	if !tm.testMode {
		return tm.wallClock()
	}

	realElapsed := tm.wallClock().Sub(tm.realStart)
	return tm.virtualStart.Add(realElapsed * time.Duration(tm.timeScale))
}

// IsTestMode returns whether test mode is active
func (tm *TimeManager) IsTestMode() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.testMode
}
