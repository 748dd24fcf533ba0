package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	ServerPort string `yaml:"server_port"`
	// DeviceID tags every remote write so a device can ignore its own echoes.
	DeviceID string `yaml:"device_id"`
	// DateLayout formats week-validation history dates.
	DateLayout string `yaml:"date_layout"`

	Local     DatabaseConfig  `yaml:"local"`
	Remote    RemoteConfig    `yaml:"remote"`
	Auth      AuthConfig      `yaml:"auth"`
	Email     EmailConfig     `yaml:"email"`
	Log       LogConfig       `yaml:"log"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// DatabaseConfig selects a SQL dialect and its connection target
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, postgres, mysql
	Path string `yaml:"path"` // sqlite file
	URL  string `yaml:"url"`  // postgres/mysql DSN
}

// RemoteConfig describes the shared family record store and its change feed
type RemoteConfig struct {
	Backend  string         `yaml:"backend"` // sql, rest, none
	Database DatabaseConfig `yaml:"database"`
	RESTURL  string         `yaml:"rest_url"`
	APIKey   string         `yaml:"api_key"`
	Timeout  time.Duration  `yaml:"timeout"`

	Notifier string      `yaml:"notifier"` // redis, mqtt, none
	Redis    RedisConfig `yaml:"redis"`
	MQTT     MQTTConfig  `yaml:"mqtt"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type AuthConfig struct {
	JWTSecret            string        `yaml:"jwt_secret"`
	SessionDuration      time.Duration `yaml:"session_duration"`
	GoogleClientID       string        `yaml:"google_client_id"`
	GoogleClientSecret   string        `yaml:"google_client_secret"`
	OAuthRedirectBaseURL string        `yaml:"oauth_redirect_base_url"`
}

type EmailConfig struct {
	AWSRegion  string   `yaml:"aws_region"`
	FromEmail  string   `yaml:"from_email"`
	FromName   string   `yaml:"from_name"`
	Recipients []string `yaml:"recipients"`
	Debug      bool     `yaml:"debug"`
}

// LogConfig controls the zap logger; File enables rotation through lumberjack.
type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	ServiceName string `yaml:"service_name"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
}

type ScheduleConfig struct {
	// WeeklyValidation is a cron expression; empty disables automatic validation.
	WeeklyValidation string `yaml:"weekly_validation"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE,
// then applies environment variables over it. Unset values keep their defaults.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerPort: "8080",
		DateLayout: "02/01/2006",
		Local: DatabaseConfig{
			Type: "sqlite",
			Path: "./kidpoints.db",
		},
		Remote: RemoteConfig{
			Backend:  "none",
			Timeout:  10 * time.Second,
			Notifier: "none",
			Redis:    RedisConfig{Addr: "localhost:6379"},
			MQTT:     MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "kidpoints"},
		},
		Auth: AuthConfig{
			SessionDuration: 30 * 24 * time.Hour,
		},
		Email: EmailConfig{
			AWSRegion: "us-east-1",
			FromName:  "Kid Points",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "kidpoints",
			MaxSizeMB:   100,
			MaxBackups:  5,
			MaxAgeDays:  30,
		},
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   time.Minute,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.ServerPort = getEnv("PORT", cfg.ServerPort)
	cfg.DeviceID = getEnv("DEVICE_ID", cfg.DeviceID)
	cfg.DateLayout = getEnv("DATE_LAYOUT", cfg.DateLayout)

	cfg.Local.Type = getEnv("DB_TYPE", cfg.Local.Type)
	cfg.Local.Path = getEnv("DB_PATH", cfg.Local.Path)
	cfg.Local.URL = getEnv("DATABASE_URL", cfg.Local.URL)

	cfg.Remote.Backend = getEnv("REMOTE_BACKEND", cfg.Remote.Backend)
	cfg.Remote.Database.Type = getEnv("REMOTE_DB_TYPE", cfg.Remote.Database.Type)
	cfg.Remote.Database.Path = getEnv("REMOTE_DB_PATH", cfg.Remote.Database.Path)
	cfg.Remote.Database.URL = getEnv("REMOTE_DATABASE_URL", cfg.Remote.Database.URL)
	cfg.Remote.RESTURL = getEnv("REMOTE_REST_URL", cfg.Remote.RESTURL)
	cfg.Remote.APIKey = getEnv("REMOTE_API_KEY", cfg.Remote.APIKey)
	cfg.Remote.Timeout = getEnvDuration("REMOTE_TIMEOUT", cfg.Remote.Timeout)
	cfg.Remote.Notifier = getEnv("REMOTE_NOTIFIER", cfg.Remote.Notifier)
	cfg.Remote.Redis.Addr = getEnv("REDIS_ADDR", cfg.Remote.Redis.Addr)
	cfg.Remote.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Remote.Redis.Password)
	cfg.Remote.Redis.DB = getEnvInt("REDIS_DB", cfg.Remote.Redis.DB)
	cfg.Remote.MQTT.Broker = getEnv("MQTT_BROKER", cfg.Remote.MQTT.Broker)
	cfg.Remote.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.Remote.MQTT.ClientID)
	cfg.Remote.MQTT.Username = getEnv("MQTT_USERNAME", cfg.Remote.MQTT.Username)
	cfg.Remote.MQTT.Password = getEnv("MQTT_PASSWORD", cfg.Remote.MQTT.Password)
	cfg.Remote.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.Remote.MQTT.TopicPrefix)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.SessionDuration = getEnvDuration("SESSION_DURATION", cfg.Auth.SessionDuration)
	cfg.Auth.GoogleClientID = getEnv("GOOGLE_CLIENT_ID", cfg.Auth.GoogleClientID)
	cfg.Auth.GoogleClientSecret = getEnv("GOOGLE_CLIENT_SECRET", cfg.Auth.GoogleClientSecret)
	cfg.Auth.OAuthRedirectBaseURL = getEnv("OAUTH_REDIRECT_BASE_URL", cfg.Auth.OAuthRedirectBaseURL)

	cfg.Email.AWSRegion = getEnv("AWS_REGION", cfg.Email.AWSRegion)
	cfg.Email.FromEmail = getEnv("SES_FROM_EMAIL", cfg.Email.FromEmail)
	cfg.Email.FromName = getEnv("SES_FROM_NAME", cfg.Email.FromName)
	cfg.Email.Debug = getEnvBool("EMAIL_DEBUG", cfg.Email.Debug)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)

	cfg.Schedule.WeeklyValidation = getEnv("WEEKLY_VALIDATION_CRON", cfg.Schedule.WeeklyValidation)

	cfg.RateLimit.Requests = getEnvInt("RATE_LIMIT_REQUESTS", cfg.RateLimit.Requests)
	cfg.RateLimit.Window = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window)
}

// Validate rejects combinations the application cannot start with
func (c *Config) Validate() error {
	switch c.Remote.Backend {
	case "none", "":
	case "sql":
		if c.Remote.Database.URL == "" && c.Remote.Database.Path == "" {
			return fmt.Errorf("remote sql backend requires REMOTE_DATABASE_URL or REMOTE_DB_PATH")
		}
	case "rest":
		if c.Remote.RESTURL == "" {
			return fmt.Errorf("remote rest backend requires REMOTE_REST_URL")
		}
	default:
		return fmt.Errorf("unsupported remote backend: %s", c.Remote.Backend)
	}

	switch c.Remote.Notifier {
	case "none", "", "redis", "mqtt":
	default:
		return fmt.Errorf("unsupported remote notifier: %s", c.Remote.Notifier)
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requires positive requests and window")
	}
	return nil
}

// RemoteEnabled reports whether a shared record store is configured
func (c *Config) RemoteEnabled() bool {
	return c.Remote.Backend != "" && c.Remote.Backend != "none"
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
