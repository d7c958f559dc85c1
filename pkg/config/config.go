package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// DBConfig holds database configuration
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// GetDSN returns the PostgreSQL connection string
func (c *DBConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// RedisConfig holds the coordinator connection used by the lifecycle scheduler.
// An empty Addr disables cross-replica coordination.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// StoreConfig selects the tenant store backend ("postgres" or "memory").
type StoreConfig struct {
	Driver string
}

// TenancyConfig holds tenant resolution and subscription settings
type TenancyConfig struct {
	HeaderName       string
	DefaultTerm      time.Duration
	RenewalYears     int
	BypassPrefixes   []string
	PasswordMinChars int
}

// SchedulerConfig holds the lifecycle sweep schedules (cron.v2 syntax, seconds first)
type SchedulerConfig struct {
	Enabled        bool
	ExpireSchedule string
	WarnSchedule   string
	Timezone       string
	LockTTL        time.Duration
}

// Location returns the configured scheduler location, falling back to UTC.
func (c *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NotifierConfig holds the notification channel configuration
type NotifierConfig struct {
	Driver        string
	GatewayURL    string
	APIKey        string
	Sender        string
	Timeout       time.Duration
	RetryCount    int
	RatePerSecond float64
	Burst         int
}

// Config holds all configuration
type Config struct {
	ServiceName string
	DB          DBConfig
	Server      ServerConfig
	JWT         JWTConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Redis       RedisConfig
	Store       StoreConfig
	Tenancy     TenancyConfig
	Scheduler   SchedulerConfig
	Notifier    NotifierConfig
}

// DefaultBypassPrefixes are the routes served without tenant resolution:
// account provisioning, generic login, privileged-admin login, profile lookup
// and the whole privileged-admin namespace. The list is fixed and is not
// read from the environment.
var DefaultBypassPrefixes = []string{
	"/api/tenants/register",
	"/api/auth/login",
	"/api/superadmin/login",
	"/api/auth/profile",
	"/api/superadmin",
}

// Load loads configuration from environment variables without service name prefix
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not returning error as .env file is optional
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: serviceName,
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", "storefront"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "defaultsecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", serviceName),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", serviceName+":"),
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		Tenancy: TenancyConfig{
			HeaderName:       getEnv("TENANT_HEADER", "X-Tenant-Id"),
			DefaultTerm:      getEnvAsDuration("TENANT_DEFAULT_TERM", 365*24*time.Hour),
			RenewalYears:     getEnvAsInt("TENANT_RENEWAL_YEARS", 1),
			BypassPrefixes:   append([]string(nil), DefaultBypassPrefixes...),
			PasswordMinChars: getEnvAsInt("OWNER_PASSWORD_MIN_CHARS", 8),
		},
		Scheduler: SchedulerConfig{
			Enabled:        getEnvAsBool("SCHEDULER_ENABLED", true),
			ExpireSchedule: getEnv("SCHEDULER_EXPIRE_CRON", "0 0 0 * * *"),
			WarnSchedule:   getEnv("SCHEDULER_WARN_CRON", "0 0 9 * * *"),
			Timezone:       getEnv("SCHEDULER_TIMEZONE", "UTC"),
			LockTTL:        getEnvAsDuration("SCHEDULER_LOCK_TTL", 30*time.Minute),
		},
		Notifier: NotifierConfig{
			Driver:        getEnv("NOTIFIER_DRIVER", "log"),
			GatewayURL:    getEnv("SMS_GATEWAY_URL", ""),
			APIKey:        getEnv("SMS_GATEWAY_API_KEY", ""),
			Sender:        getEnv("SMS_SENDER", "Storefront"),
			Timeout:       getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
			RetryCount:    getEnvAsInt("SMS_RETRY_COUNT", 2),
			RatePerSecond: getEnvAsFloat("SMS_RATE_PER_SECOND", 5),
			Burst:         getEnvAsInt("SMS_BURST", 5),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Notifier.Driver {
	case "log":
	case "sms":
		if c.Notifier.GatewayURL == "" {
			return fmt.Errorf("SMS_GATEWAY_URL is required when NOTIFIER_DRIVER=sms")
		}
	default:
		return fmt.Errorf("unsupported NOTIFIER_DRIVER %q", c.Notifier.Driver)
	}
	if c.Notifier.RatePerSecond > 0 && c.Notifier.Burst < 1 {
		return fmt.Errorf("SMS_BURST must be at least 1 when SMS_RATE_PER_SECOND is set")
	}
	if c.Tenancy.RenewalYears < 1 {
		return fmt.Errorf("TENANT_RENEWAL_YEARS must be at least 1")
	}
	return nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("db_host", c.DB.Host),
		zap.String("db_port", c.DB.Port),
		zap.String("db_user", c.DB.User),
		zap.String("db_name", c.DB.DBName),
		zap.String("server_port", c.Server.Port),
		zap.String("store_driver", c.Store.Driver),
		zap.String("notifier_driver", c.Notifier.Driver),
		zap.Bool("scheduler_enabled", c.Scheduler.Enabled),
		zap.Bool("redis_enabled", c.Redis.Addr != ""),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
