package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Config holds environment-based settings
type Config struct {
	Environment string
	DisplayID   string
	// DeviceSecret signs the bearer token sent to the controller and verifies
	// tokens presented to the local API.
	DeviceSecret string

	Source         string
	ControllerURL  string
	DatabaseURL    string
	MigrationsPath string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string
	MQTTUsername  string
	MQTTPassword  string

	PollInterval   time.Duration
	ReconnectDelay time.Duration
	FetchTimeout   time.Duration

	ServerAddress        string
	OperatorPasswordHash string
	Headless             bool
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory if one exists.
func Load() (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}
	return FromEnv()
}

// LoadForMigrate only requires what the migrate command needs.
func LoadForMigrate() (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func loadDotenv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse() (*Config, error) {
	cfg := &Config{
		Environment:          getEnv("APP_ENV", "production"),
		DisplayID:            os.Getenv("DISPLAY_ID"),
		DeviceSecret:         os.Getenv("DEVICE_SECRET"),
		Source:               getEnv("PLAYER_SOURCE", SourceHTTP),
		ControllerURL:        os.Getenv("CONTROLLER_URL"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MigrationsPath:       getEnv("MIGRATIONS_PATH", "./migrations"),
		RedisAddress:         os.Getenv("REDIS_ADDRESS"),
		RedisUsername:        os.Getenv("REDIS_USERNAME"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		MQTTBrokerURL:        os.Getenv("MQTT_BROKER_URL"),
		MQTTUsername:         os.Getenv("MQTT_USERNAME"),
		MQTTPassword:         os.Getenv("MQTT_PASSWORD"),
		ServerAddress:        getEnv("SERVER_ADDRESS", "127.0.0.1:8090"),
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),
	}

	var err error
	if cfg.PollInterval, err = getDuration("POLL_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay, err = getDuration("RECONNECT_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getDuration("FETCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if v := os.Getenv("HEADLESS"); v != "" {
		if cfg.Headless, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("HEADLESS: %w", err)
		}
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DisplayID == "" {
		return fmt.Errorf("DISPLAY_ID is required")
	}
	switch c.Source {
	case SourceHTTP:
		if c.ControllerURL == "" {
			return fmt.Errorf("CONTROLLER_URL is required when PLAYER_SOURCE=%s", SourceHTTP)
		}
		if c.DeviceSecret == "" {
			return fmt.Errorf("DEVICE_SECRET is required when PLAYER_SOURCE=%s", SourceHTTP)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when PLAYER_SOURCE=%s", SourcePostgres)
		}
	default:
		return fmt.Errorf("PLAYER_SOURCE must be %q or %q, got %q", SourceHTTP, SourcePostgres, c.Source)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
