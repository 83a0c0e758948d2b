package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	StoreSQL    = "sql"
	StoreGorm   = "gorm"
	StoreHosted = "hosted"
)

type Config struct {
	ServerPort int
	CORSOrigin string
	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable it only
	// behind a proxy that overwrites those headers.
	TrustProxy bool
	LogLevel   string
	LogFormat  string
	Database   DatabaseConfig
	Auth       AuthConfig
	Store      StoreConfig
	Events     EventsConfig
	Reports    ReportsConfig
	RateLimit  RateLimitConfig
}

type DatabaseConfig struct {
	Dialect  string
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
	Path     string
}

type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// StoreConfig selects the persistence adapter behind the services.
type StoreConfig struct {
	Backend   string
	HostedURL string
	HostedKey string
}

type EventsConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type ReportsConfig struct {
	Backend string
	Minio   MinioConfig
	GCS     GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type RateLimitConfig struct {
	Backend           string
	RequestsPerMinute int
	Burst             int
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
}

// LoadConfig reads configuration from the environment. In dev mode a .env
// file in the working directory is loaded first.
func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Dialect:  strings.ToLower(getEnv("DB_DIALECT", DialectPostgres)),
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "expenses"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "expenses_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
		Path:     getEnv("DB_PATH", "./data/expenses.db"),
	}

	port := getEnvInt("SERVER_PORT", 0)
	if port == 0 {
		port = getEnvInt("PORT", 5000)
	}

	return Config{
		ServerPort: port,
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),
		TrustProxy: getEnvBool("TRUST_PROXY", false),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
		Database:   dbConfig,
		Auth: AuthConfig{
			JWTSecret:  strings.TrimSpace(getEnv("JWT_SECRET", "")),
			TokenTTL:   getEnvDuration("TOKEN_TTL", 7*24*time.Hour),
			BcryptCost: getEnvInt("BCRYPT_COST", 10),
		},
		Store: StoreConfig{
			Backend:   strings.ToLower(getEnv("STORE_BACKEND", StoreSQL)),
			HostedURL: getEnv("HOSTED_URL", ""),
			HostedKey: getEnv("HOSTED_KEY", ""),
		},
		Events: EventsConfig{
			Backend: strings.ToLower(getEnv("EVENTS_BACKEND", "log")),
			Channel: getEnv("EVENTS_CHANNEL", "expense-events"),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
				QueueDurable:    getEnvBool("RABBITMQ_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_AUTO_DELETE", false),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Reports: ReportsConfig{
			Backend: strings.ToLower(getEnv("REPORTS_BACKEND", "none")),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "expense-reports"),
				UseSSL:    getEnvBool("MINIO_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		RateLimit: RateLimitConfig{
			Backend:           strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory")),
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
			RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:     getEnv("REDIS_PASSWORD", ""),
			RedisDB:           getEnvInt("REDIS_DB", 0),
		},
	}
}

// LoadEnvFile loads variables from path without overriding ones already set.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.ServerPort))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	switch c.Store.Backend {
	case StoreSQL, StoreGorm:
		errs = append(errs, c.Database.validate()...)
	case StoreHosted:
		if strings.TrimSpace(c.Store.HostedURL) == "" || strings.TrimSpace(c.Store.HostedKey) == "" {
			errs = append(errs, errors.New("HOSTED_URL and HOSTED_KEY are required for the hosted store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	switch c.Events.Backend {
	case "log", "rabbitmq", "pubsub":
	default:
		errs = append(errs, fmt.Errorf("unknown events backend %q", c.Events.Backend))
	}
	switch c.Reports.Backend {
	case "none", "minio", "gcs":
	default:
		errs = append(errs, fmt.Errorf("unknown reports backend %q", c.Reports.Backend))
	}
	switch c.RateLimit.Backend {
	case "off", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend))
	}

	return errors.Join(errs...)
}

func (d DatabaseConfig) validate() []error {
	var errs []error
	switch d.Dialect {
	case DialectPostgres:
		if d.Driver != "postgres" && d.Driver != "pgx" {
			errs = append(errs, fmt.Errorf("unknown postgres driver %q", d.Driver))
		}
	case DialectSQLite:
		if strings.TrimSpace(d.Path) == "" {
			errs = append(errs, errors.New("DB_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database dialect %q", d.Dialect))
	}
	return errs
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := time.ParseDuration(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
