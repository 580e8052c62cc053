package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds the configuration for a Guardian service
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Postgres configuration
	PostgresHost               string
	PostgresPort               int
	PostgresUser               string
	PostgresPassword           string
	PostgresDB                 string
	PostgresSSLMode            string
	PostgresMaxConnections     int
	PostgresMaxIdleConnections int
	PostgresConnMaxLifetime    time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	APIPort     int
	LogLevel    string
	LogFile     string

	// Detection configuration
	Timezone             string
	HomeLatitude         float64
	HomeLongitude        float64
	SettingsDefaultsFile string
	SignalTopics         []string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:                 "localhost",
		MQTTPort:                   1883,
		RedisHost:                  "localhost",
		RedisPort:                  6379,
		RedisDB:                    0,
		PostgresHost:               "localhost",
		PostgresPort:               5432,
		PostgresUser:               "guardian",
		PostgresDB:                 "guardian",
		PostgresSSLMode:            "disable",
		PostgresMaxConnections:     10,
		PostgresMaxIdleConnections: 5,
		PostgresConnMaxLifetime:    30 * time.Minute,
		ServiceName:                "guardian-agent",
		HealthPort:                 8080,
		APIPort:                    3010,
		LogLevel:                   "info",
		Timezone:                   "UTC",
		// Fallback safe-zone center (New York City) when no per-user home is registered
		HomeLatitude:  40.7128,
		HomeLongitude: -74.0060,
		SignalTopics:  []string{"guardian/signal/+/+"},
	}
}

// LoadDotEnv loads a .env file into the process environment if one exists.
// A missing file is not an error.
func (c *Config) LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables with GUARDIAN_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("GUARDIAN_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("GUARDIAN_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("GUARDIAN_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("GUARDIAN_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("GUARDIAN_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("GUARDIAN_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("GUARDIAN_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("GUARDIAN_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("GUARDIAN_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	// Postgres configuration
	if v := os.Getenv("GUARDIAN_POSTGRES_HOST"); v != "" {
		c.PostgresHost = v
	}
	if v := os.Getenv("GUARDIAN_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.PostgresPort = port
		}
	}
	if v := os.Getenv("GUARDIAN_POSTGRES_USER"); v != "" {
		c.PostgresUser = v
	}
	if v := os.Getenv("GUARDIAN_POSTGRES_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := os.Getenv("GUARDIAN_POSTGRES_DB"); v != "" {
		c.PostgresDB = v
	}
	if v := os.Getenv("GUARDIAN_POSTGRES_SSLMODE"); v != "" {
		c.PostgresSSLMode = v
	}
	if v := os.Getenv("GUARDIAN_POSTGRES_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PostgresMaxConnections = n
		}
	}

	// Service configuration
	if v := os.Getenv("GUARDIAN_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("GUARDIAN_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("GUARDIAN_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
	if v := os.Getenv("GUARDIAN_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GUARDIAN_LOG_FILE"); v != "" {
		c.LogFile = v
	}

	// Detection configuration
	if v := os.Getenv("GUARDIAN_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("GUARDIAN_HOME_LATITUDE"); v != "" {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			c.HomeLatitude = lat
		}
	}
	if v := os.Getenv("GUARDIAN_HOME_LONGITUDE"); v != "" {
		if lon, err := strconv.ParseFloat(v, 64); err == nil {
			c.HomeLongitude = lon
		}
	}
	if v := os.Getenv("GUARDIAN_SETTINGS_DEFAULTS_FILE"); v != "" {
		c.SettingsDefaultsFile = v
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	c.RegisterFlags(pflag.CommandLine)
	pflag.Parse()
}

// RegisterFlags binds every config field to a flag on the given set
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	// Postgres flags
	fs.StringVar(&c.PostgresHost, "postgres-host", c.PostgresHost, "Postgres hostname")
	fs.IntVar(&c.PostgresPort, "postgres-port", c.PostgresPort, "Postgres port")
	fs.StringVar(&c.PostgresUser, "postgres-user", c.PostgresUser, "Postgres user")
	fs.StringVar(&c.PostgresPassword, "postgres-password", c.PostgresPassword, "Postgres password")
	fs.StringVar(&c.PostgresDB, "postgres-db", c.PostgresDB, "Postgres database name")
	fs.StringVar(&c.PostgresSSLMode, "postgres-sslmode", c.PostgresSSLMode, "Postgres SSL mode")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.IntVar(&c.APIPort, "api-port", c.APIPort, "HTTP API port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Rotate logs into this file instead of stdout")

	// Detection flags
	fs.StringVar(&c.Timezone, "timezone", c.Timezone, "IANA time zone used for calendar days and late-night hours")
	fs.Float64Var(&c.HomeLatitude, "home-latitude", c.HomeLatitude, "Fallback safe-zone center latitude")
	fs.Float64Var(&c.HomeLongitude, "home-longitude", c.HomeLongitude, "Fallback safe-zone center longitude")
	fs.StringVar(&c.SettingsDefaultsFile, "settings-defaults", c.SettingsDefaultsFile, "YAML file with default detection settings")
	fs.StringSliceVar(&c.SignalTopics, "signal-topics", c.SignalTopics, "MQTT topics carrying user signals")
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("Redis host is required")
	}
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("Redis port must be between 1 and 65535")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("Postgres host is required")
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.HomeLatitude < -90 || c.HomeLatitude > 90 {
		return fmt.Errorf("home latitude must be between -90 and 90")
	}
	if c.HomeLongitude < -180 || c.HomeLongitude > 180 {
		return fmt.Errorf("home longitude must be between -180 and 180")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// Location returns the configured time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresConnectionString returns a lib/pq keyword/value DSN
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode)
}
