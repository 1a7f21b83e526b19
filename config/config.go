package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendMinio    = "minio"
	BackendGCS      = "gcs"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
)

type Config struct {
	ServerPort int            `mapstructure:"server_port"`
	Database   DatabaseConfig `mapstructure:"database"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Matcher    MatcherConfig  `mapstructure:"matcher"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Storage    StorageConfig  `mapstructure:"storage"`
	MQ         MQConfig       `mapstructure:"mq"`
	Log        LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	UseSSL   bool   `mapstructure:"use_ssl"`
}

// AuthConfig holds token and login throttling settings.
type AuthConfig struct {
	JWTSecret             string        `mapstructure:"jwt_secret"`
	TokenTTL              time.Duration `mapstructure:"token_ttl"`
	LoginRateLimitPerHour int           `mapstructure:"login_rate_limit_per_hour"`
}

// MatcherConfig points at the external job matcher service.
type MatcherConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig is optional; an empty Addr disables login rate limiting.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects the object storage backend used for resume files.
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Minio   MinioConfig `mapstructure:"minio"`
	GCS     GCSConfig   `mapstructure:"gcs"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// MQConfig selects the broker used to publish job board events.
type MQConfig struct {
	Backend  string         `mapstructure:"backend"`
	Channel  string         `mapstructure:"channel"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

type RabbitMQConfig struct {
	URL             string `mapstructure:"url"`
	PrefetchCount   int    `mapstructure:"prefetch"`
	QueueDurable    bool   `mapstructure:"queue_durable"`
	QueueAutoDelete bool   `mapstructure:"queue_auto_delete"`
}

type PubSubConfig struct {
	ProjectID          string `mapstructure:"project_id"`
	CredentialsFile    string `mapstructure:"credentials_file"`
	SubscriptionSuffix string `mapstructure:"subscription_suffix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	cfg, err := read()
	if err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads configuration without validation. Tools such as the
// migrator only need the database section and should not fail on the rest.
func LoadConfig() Config {
	cfg, err := read()
	if err != nil {
		v := viper.New()
		setDefaults(v)
		_ = v.Unmarshal(&cfg)
	}
	return cfg
}

func read() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.MQ.Backend = strings.ToLower(strings.TrimSpace(cfg.MQ.Backend))
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)
	cfg.Matcher.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Matcher.BaseURL), "/")
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "jobnest")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "jobnest_db")
	v.SetDefault("database.use_ssl", false)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.login_rate_limit_per_hour", 10)
	v.SetDefault("matcher.base_url", "http://localhost:8000")
	v.SetDefault("matcher.timeout", 10*time.Second)
	v.SetDefault("redis.db", 0)
	v.SetDefault("storage.minio.endpoint", "localhost:9000")
	v.SetDefault("storage.minio.bucket", "resumes")
	v.SetDefault("mq.channel", "jobnest.events")
	v.SetDefault("mq.rabbitmq.prefetch", 10)
	v.SetDefault("mq.rabbitmq.queue_durable", true)
	v.SetDefault("mq.pubsub.subscription_suffix", "-sub")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"server_port":                    "SERVER_PORT",
		"database.host":                  "DB_HOST",
		"database.port":                  "DB_PORT",
		"database.user":                  "DB_USER",
		"database.password":              "DB_PASSWORD",
		"database.name":                  "DB_NAME",
		"database.use_ssl":               "DB_USE_SSL",
		"auth.jwt_secret":                "JWT_SECRET",
		"auth.token_ttl":                 "JWT_TTL",
		"auth.login_rate_limit_per_hour": "LOGIN_RATE_LIMIT_PER_HOUR",
		"matcher.base_url":               "MATCHER_BASE_URL",
		"matcher.timeout":                "MATCHER_TIMEOUT",
		"redis.addr":                     "REDIS_ADDR",
		"redis.password":                 "REDIS_PASSWORD",
		"redis.db":                       "REDIS_DB",
		"storage.backend":                "STORAGE_BACKEND",
		"storage.minio.endpoint":         "MINIO_ENDPOINT",
		"storage.minio.access_key":       "MINIO_ACCESS_KEY",
		"storage.minio.secret_key":       "MINIO_SECRET_KEY",
		"storage.minio.bucket":           "MINIO_BUCKET",
		"storage.minio.use_ssl":          "MINIO_USE_SSL",
		"storage.gcs.bucket":             "GCS_BUCKET",
		"storage.gcs.project_id":         "GCS_PROJECT_ID",
		"storage.gcs.credentials_file":   "GCS_CREDENTIALS_FILE",
		"mq.backend":                     "MQ_BACKEND",
		"mq.channel":                     "EVENTS_CHANNEL",
		"mq.rabbitmq.url":                "RABBITMQ_URL",
		"mq.rabbitmq.prefetch":           "RABBITMQ_PREFETCH",
		"mq.pubsub.project_id":           "PUBSUB_PROJECT_ID",
		"mq.pubsub.credentials_file":     "PUBSUB_CREDENTIALS_FILE",
		"mq.pubsub.subscription_suffix":  "PUBSUB_SUBSCRIPTION_SUFFIX",
		"log.level":                      "LOG_LEVEL",
		"log.format":                     "LOG_FORMAT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.ServerPort <= 0 {
		return errors.New("server port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Matcher.BaseURL == "" {
		return errors.New("matcher base url is required")
	}
	if cfg.Matcher.Timeout <= 0 {
		return errors.New("matcher timeout must be positive")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	switch cfg.Storage.Backend {
	case "", BackendMinio, BackendGCS:
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	switch cfg.MQ.Backend {
	case "", BackendRabbitMQ, BackendPubSub:
	default:
		return fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
	return nil
}
