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

// MinSecretLength is the smallest HS512 signing key accepted, in bytes.
const MinSecretLength = 64

// ErrConfiguration is returned by Validate for unusable settings.
var ErrConfiguration = errors.New("invalid configuration")

// Directory backends.
const (
	DirectoryPostgres = "postgres"
	DirectoryRedis    = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Directory DirectoryConfig
	Bootstrap BootstrapConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig defines token and login parameters.
type AuthConfig struct {
	JWTSecret              string
	TokenValiditySeconds   int
	TokenID                string
	TokenIssuer            string
	TokenAudience          string
	BcryptCost             int
	DependencyTimeoutMilli int
}

// DirectoryConfig selects the account store.
type DirectoryConfig struct {
	Backend string
}

// BootstrapConfig seeds an administrator account at startup when both values are set.
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "token-auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
		Auth: AuthConfig{
			JWTSecret:              os.Getenv("AUTH_JWT_SECRET"),
			TokenValiditySeconds:   getEnvAsInt("AUTH_TOKEN_VALIDITY_SECONDS", 3600),
			TokenID:                os.Getenv("AUTH_TOKEN_ID"),
			TokenIssuer:            os.Getenv("AUTH_TOKEN_ISSUER"),
			TokenAudience:          os.Getenv("AUTH_TOKEN_AUDIENCE"),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			DependencyTimeoutMilli: getEnvAsInt("AUTH_DEPENDENCY_TIMEOUT_MS", 2000),
		},
		Directory: DirectoryConfig{
			Backend: strings.ToLower(getEnv("DIRECTORY_BACKEND", DirectoryPostgres)),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
			AdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: AUTH_JWT_SECRET is required", ErrConfiguration)
	}
	if len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("%w: AUTH_JWT_SECRET must be at least %d bytes", ErrConfiguration, MinSecretLength)
	}
	if c.Auth.TokenValiditySeconds <= 0 {
		return fmt.Errorf("%w: AUTH_TOKEN_VALIDITY_SECONDS must be positive", ErrConfiguration)
	}
	switch c.Directory.Backend {
	case DirectoryPostgres, DirectoryRedis:
	default:
		return fmt.Errorf("%w: unknown DIRECTORY_BACKEND %q", ErrConfiguration, c.Directory.Backend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenValidity returns the lifetime of issued tokens.
func (a AuthConfig) TokenValidity() time.Duration {
	return time.Duration(a.TokenValiditySeconds) * time.Second
}

// DependencyTimeout bounds each directory and password verifier call.
func (a AuthConfig) DependencyTimeout() time.Duration {
	if a.DependencyTimeoutMilli <= 0 {
		return 0
	}
	return time.Duration(a.DependencyTimeoutMilli) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
