// Package config provides configuration management for the Babylon explorer backend.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Node     NodeConfig
	Chain    ChainConfig
	Database DatabaseConfig
	Labeling LabelingConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimitRPS int
	RateBurst    int
}

// NodeConfig holds node API (LCD) client configuration
type NodeConfig struct {
	LCDURL         string
	ChainID        string
	RequestTimeout time.Duration
	CacheTTL       time.Duration
	RequestsPerSec float64 // outbound throttle, 0 disables it
	Burst          int
	FanoutWorkers  int
}

// ChainConfig holds native token and address format settings
type ChainConfig struct {
	NativeDenom     string
	DisplayDenom    string
	Decimals        int32
	AccountPrefix   string
	ValidatorPrefix string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	AutoMigrate    bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
	StatsTTL       time.Duration
}

// LabelingConfig holds automatic labeling configuration
type LabelingConfig struct {
	Schedule        string // cron expression with seconds field, empty disables the schedule
	StartupDelay    time.Duration
	RunOnStartup    bool
	WhaleThreshold  int64 // whole native-token units
	LabelOnAnalysis bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RateLimitRPS: getEnvAsInt("API_RATE_LIMIT_RPS", 20),
			RateBurst:    getEnvAsInt("API_RATE_LIMIT_BURST", 40),
		},
		Node: NodeConfig{
			LCDURL:         strings.TrimRight(getEnv("BABYLON_LCD_URL", "https://babylon-testnet-api.polkachu.com"), "/"),
			ChainID:        getEnv("BABYLON_CHAIN_ID", "bbn-test-6"),
			RequestTimeout: getEnvAsDuration("NODE_REQUEST_TIMEOUT", 15*time.Second),
			CacheTTL:       getEnvAsDuration("NODE_CACHE_TTL", 10*time.Second),
			RequestsPerSec: getEnvAsFloat("NODE_REQUESTS_PER_SEC", 0),
			Burst:          getEnvAsInt("NODE_BURST", 10),
			FanoutWorkers:  getEnvAsInt("NODE_FANOUT_WORKERS", 16),
		},
		Chain: ChainConfig{
			NativeDenom:     getEnv("NATIVE_DENOM", "ubbn"),
			DisplayDenom:    getEnv("DISPLAY_DENOM", "BBN"),
			Decimals:        int32(getEnvAsInt("DENOM_DECIMALS", 6)),
			AccountPrefix:   getEnv("ACCOUNT_PREFIX", "bbn"),
			ValidatorPrefix: getEnv("VALIDATOR_PREFIX", "bbnvaloper"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "babylon_scanner"),
				User:           getEnv("POSTGRES_USER", "scanner"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
				AutoMigrate:    getEnvAsBool("POSTGRES_AUTO_MIGRATE", true),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
				StatsTTL:       getEnvAsDuration("REDIS_STATS_TTL", 5*time.Second),
			},
		},
		Labeling: LabelingConfig{
			Schedule:        getEnv("LABELING_SCHEDULE", "0 0 */6 * * *"),
			StartupDelay:    getEnvAsDuration("LABELING_STARTUP_DELAY", 5*time.Second),
			RunOnStartup:    getEnvAsBool("LABELING_RUN_ON_STARTUP", true),
			WhaleThreshold:  int64(getEnvAsInt("WHALE_THRESHOLD", 1_000_000)),
			LabelOnAnalysis: getEnvAsBool("LABEL_ON_ANALYSIS", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.Node.LCDURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid BABYLON_LCD_URL %q", c.Node.LCDURL)
	}
	if c.Node.RequestTimeout <= 0 {
		return fmt.Errorf("NODE_REQUEST_TIMEOUT must be positive, got %v", c.Node.RequestTimeout)
	}
	if c.Node.CacheTTL <= 0 {
		return fmt.Errorf("NODE_CACHE_TTL must be positive, got %v", c.Node.CacheTTL)
	}
	if c.Node.FanoutWorkers <= 0 {
		return fmt.Errorf("NODE_FANOUT_WORKERS must be positive, got %d", c.Node.FanoutWorkers)
	}
	if c.Chain.Decimals < 0 || c.Chain.Decimals > 18 {
		return fmt.Errorf("DENOM_DECIMALS out of range: %d", c.Chain.Decimals)
	}
	if c.Labeling.WhaleThreshold <= 0 {
		return fmt.Errorf("WHALE_THRESHOLD must be positive, got %d", c.Labeling.WhaleThreshold)
	}
	return nil
}

// PostgresURL builds the connection URL used by pgx and golang-migrate
func (c PostgresConfig) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Database,
	)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
