package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Reservation ReservationConfig `yaml:"reservation"`
	Worker      WorkerConfig      `yaml:"worker"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	ReservationTopic   string   `yaml:"reservation_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type ReservationConfig struct {
	HoldTTLMinutes       int    `yaml:"hold_ttl_minutes"`
	LockBackend          string `yaml:"lock_backend"`
	LockTimeoutMillis    int    `yaml:"lock_timeout_ms"`
	LockLeaseSeconds     int    `yaml:"lock_lease_seconds"`
	MaxCodeAttempts      int    `yaml:"max_code_attempts"`
	TripsCacheTTLSeconds int    `yaml:"trips_cache_ttl_seconds"`
}

func (r ReservationConfig) HoldTTL() time.Duration {
	return time.Duration(r.HoldTTLMinutes) * time.Minute
}

func (r ReservationConfig) LockTimeout() time.Duration {
	return time.Duration(r.LockTimeoutMillis) * time.Millisecond
}

func (r ReservationConfig) LockLease() time.Duration {
	return time.Duration(r.LockLeaseSeconds) * time.Second
}

func (r ReservationConfig) TripsCacheTTL() time.Duration {
	return time.Duration(r.TripsCacheTTLSeconds) * time.Second
}

type WorkerConfig struct {
	ExpirationSweepSeconds int `yaml:"expiration_sweep_seconds"`
	// EmbeddedReaper runs the expiry sweep inside the API process.
	EmbeddedReaper bool `yaml:"embedded_reaper"`
}

func (w WorkerConfig) SweepInterval() time.Duration {
	return time.Duration(w.ExpirationSweepSeconds) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate fills defaults and rejects combinations that would break per-seat
// serialization.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Reservation.HoldTTLMinutes <= 0 {
		c.Reservation.HoldTTLMinutes = 10
	}
	if c.Reservation.LockBackend == "" {
		c.Reservation.LockBackend = LockBackendMemory
	}
	if c.Reservation.LockTimeoutMillis <= 0 {
		c.Reservation.LockTimeoutMillis = 5000
	}
	if c.Reservation.LockLeaseSeconds <= 0 {
		c.Reservation.LockLeaseSeconds = 10
	}
	if c.Reservation.MaxCodeAttempts <= 0 {
		c.Reservation.MaxCodeAttempts = 5
	}
	if c.Reservation.TripsCacheTTLSeconds <= 0 {
		c.Reservation.TripsCacheTTLSeconds = 30
	}
	if c.Worker.ExpirationSweepSeconds <= 0 {
		c.Worker.ExpirationSweepSeconds = 5
	}

	switch c.Reservation.LockBackend {
	case LockBackendMemory:
		if !c.Worker.EmbeddedReaper {
			return errors.New("lock_backend memory requires worker.embedded_reaper: the standalone worker only sweeps with the redis backend")
		}
	case LockBackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("lock_backend redis requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown lock_backend %q", c.Reservation.LockBackend)
	}
	return nil
}
