package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Events   EventsConfig   `yaml:"events"`
	Redis    RedisConfig    `yaml:"redis"`
	Push     PushConfig     `yaml:"push"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	GinMode        string   `yaml:"gin_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogLevel        string        `yaml:"log_level"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// EventsConfig selects the pub/sub transport behind the tenant channel router.
type EventsConfig struct {
	Backend              string        `yaml:"backend"`
	KeepaliveInterval    time.Duration `yaml:"keepalive_interval"`
	SubscriberBuffer     int           `yaml:"subscriber_buffer"`
	MinReconnectInterval time.Duration `yaml:"min_reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PushConfig struct {
	VAPIDPublicKey        string        `yaml:"vapid_public_key"`
	VAPIDPrivateKey       string        `yaml:"vapid_private_key"`
	Subject               string        `yaml:"subject"`
	TTL                   int           `yaml:"ttl"`
	Timeout               time.Duration `yaml:"timeout"`
	SubscriptionRetention time.Duration `yaml:"subscription_retention"`
	SweepInterval         time.Duration `yaml:"sweep_interval"`
}

type StorageConfig struct {
	Backend         string `yaml:"backend"`
	S3Endpoint      string `yaml:"s3_endpoint"`
	S3Region        string `yaml:"s3_region"`
	S3AccessKey     string `yaml:"s3_access_key"`
	S3SecretKey     string `yaml:"s3_secret_key"`
	S3PublicBaseURL string `yaml:"s3_public_base_url"`
	CloudinaryURL   string `yaml:"cloudinary_url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

const (
	EventsBackendPostgres = "postgres"
	EventsBackendRedis    = "redis"
	EventsBackendMemory   = "memory"

	StorageBackendS3         = "s3"
	StorageBackendCloudinary = "cloudinary"
	StorageBackendNone       = "none"
)

var AppConfig *Config

// Defaults returns the configuration used when neither a file nor the
// environment overrides a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			GinMode:        "debug",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			LogLevel:        "warn",
		},
		Events: EventsConfig{
			Backend:              EventsBackendPostgres,
			KeepaliveInterval:    30 * time.Second,
			SubscriberBuffer:     64,
			MinReconnectInterval: 5 * time.Second,
			MaxReconnectInterval: time.Minute,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Push: PushConfig{
			Subject:               "mailto:admin@moment-lbs.app",
			TTL:                   60 * 60 * 24,
			Timeout:               10 * time.Second,
			SubscriptionRetention: 90 * 24 * time.Hour,
			SweepInterval:         6 * time.Hour,
		},
		Storage: StorageConfig{
			Backend:  StorageBackendNone,
			S3Region: "us-east-1",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = cfg
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnv("GIN_MODE", cfg.Server.GinMode)
	cfg.Server.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Database.URL = getEnv("DB_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)
	cfg.Database.LogLevel = getEnv("DB_LOG_LEVEL", cfg.Database.LogLevel)

	cfg.JWT.Secret = getEnv("JWT_SECRET", cfg.JWT.Secret)

	cfg.Events.Backend = strings.ToLower(getEnv("EVENTS_BACKEND", cfg.Events.Backend))
	cfg.Events.KeepaliveInterval = getEnvAsDuration("EVENTS_KEEPALIVE_INTERVAL", cfg.Events.KeepaliveInterval)
	cfg.Events.SubscriberBuffer = getEnvAsInt("EVENTS_SUBSCRIBER_BUFFER", cfg.Events.SubscriberBuffer)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.Push.VAPIDPublicKey = getEnv("VAPID_PUBLIC_KEY", cfg.Push.VAPIDPublicKey)
	cfg.Push.VAPIDPrivateKey = getEnv("VAPID_PRIVATE_KEY", cfg.Push.VAPIDPrivateKey)
	cfg.Push.Subject = getEnv("VAPID_SUBJECT", cfg.Push.Subject)
	cfg.Push.TTL = getEnvAsInt("PUSH_TTL", cfg.Push.TTL)
	cfg.Push.Timeout = getEnvAsDuration("PUSH_TIMEOUT", cfg.Push.Timeout)
	cfg.Push.SubscriptionRetention = getEnvAsDuration("PUSH_SUBSCRIPTION_RETENTION", cfg.Push.SubscriptionRetention)
	cfg.Push.SweepInterval = getEnvAsDuration("PUSH_SWEEP_INTERVAL", cfg.Push.SweepInterval)

	cfg.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", cfg.Storage.Backend))
	cfg.Storage.S3Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.S3Region = getEnv("S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.S3AccessKey = getEnv("S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getEnv("S3_SECRET_KEY", cfg.Storage.S3SecretKey)
	cfg.Storage.S3PublicBaseURL = getEnv("S3_PUBLIC_BASE_URL", cfg.Storage.S3PublicBaseURL)
	cfg.Storage.CloudinaryURL = getEnv("CLOUDINARY_URL", cfg.Storage.CloudinaryURL)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.JSON = getEnvAsBool("LOG_JSON", cfg.Log.JSON)
}

// Validate reports the first configuration problem that prevents startup.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DB_URL is required. Set DB_URL to a valid Postgres URL")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Events.Backend {
	case EventsBackendPostgres, EventsBackendRedis, EventsBackendMemory:
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}
	switch c.Storage.Backend {
	case StorageBackendS3, StorageBackendCloudinary, StorageBackendNone:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Events.KeepaliveInterval <= 0 {
		return fmt.Errorf("events keepalive interval must be positive")
	}
	return nil
}

// Configured reports whether VAPID credentials are present.
func (c PushConfig) Configured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
