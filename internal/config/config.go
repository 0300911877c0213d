package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BroadcastRedis = "redis"
	BroadcastLocal = "local"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel          string    `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort          string    `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Redis             Redis     `yaml:"redis"`
	SQLiteStoragePath string    `yaml:"sqlite-storage-path" env:"SQLITE_STORAGE_PATH" env-default:"./nines.db"`
	Game              Game      `yaml:"game"`
	Broadcast         Broadcast `yaml:"broadcast"`
	Retention         Retention `yaml:"retention"`
	Stats             Stats     `yaml:"stats"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Game struct {
	CodeLength      int `yaml:"code-length" env:"GAME_CODE_LENGTH" env-default:"5"`
	MaxCodeAttempts int `yaml:"max-code-attempts" env:"GAME_MAX_CODE_ATTEMPTS" env-default:"10"`
}

type Broadcast struct {
	// Backend - "redis" for multi-node fan-out, "local" for a single process.
	Backend          string `yaml:"backend" env:"BROADCAST_BACKEND" env-default:"redis"`
	SubscriberBuffer int    `yaml:"subscriber-buffer" env:"BROADCAST_SUBSCRIBER_BUFFER" env-default:"16"`
}

type Retention struct {
	Enabled      bool          `yaml:"enabled" env:"RETENTION_ENABLED"`
	Interval     time.Duration `yaml:"interval" env:"RETENTION_INTERVAL" env-default:"10m"`
	WaitingTTL   time.Duration `yaml:"waiting-ttl" env:"RETENTION_WAITING_TTL" env-default:"24h"`
	CompletedTTL time.Duration `yaml:"completed-ttl" env:"RETENTION_COMPLETED_TTL" env-default:"168h"`
}

type Stats struct {
	// Timezone - IANA name of the calendar the daily play streak is counted in.
	Timezone string `yaml:"timezone" env:"STATS_TIMEZONE" env-default:"UTC"`
}

func (that *Stats) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(that.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", that.Timezone, err)
	}

	return loc, nil
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(err)
	}

	return config
}

func (that *Config) Validate() error {
	if that.Redis.Host == "" || that.Redis.Port == "" {
		return fmt.Errorf("%w: redis host and port are required", ErrInvalidConfig)
	}

	if that.Game.CodeLength < 4 || that.Game.CodeLength > 6 {
		return fmt.Errorf("%w: game code-length must be between 4 and 6, got %d", ErrInvalidConfig, that.Game.CodeLength)
	}

	if that.Game.MaxCodeAttempts < 1 {
		return fmt.Errorf("%w: game max-code-attempts must be positive", ErrInvalidConfig)
	}

	switch that.Broadcast.Backend {
	case BroadcastRedis, BroadcastLocal:
	default:
		return fmt.Errorf("%w: unknown broadcast backend %q", ErrInvalidConfig, that.Broadcast.Backend)
	}

	if that.Broadcast.SubscriberBuffer < 1 {
		return fmt.Errorf("%w: broadcast subscriber-buffer must be positive", ErrInvalidConfig)
	}

	if _, err := that.Stats.Location(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if that.Retention.Enabled && that.Retention.Interval <= 0 {
		return fmt.Errorf("%w: retention interval must be positive", ErrInvalidConfig)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
