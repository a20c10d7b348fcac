// Package config provides configuration management for the Warden server.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Hasher   HasherConfig   `mapstructure:"hasher"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Lock     LockConfig     `mapstructure:"lock"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DatabaseConfig holds datastore connection and pool settings.
type DatabaseConfig struct {
	// Driver specifies the database driver: "sqlite", "mysql" or "postgres".
	Driver string `mapstructure:"driver"`

	// Network settings (mysql, postgres)
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"` // target schema
	SSLMode  string `mapstructure:"ssl_mode"` // postgres only

	// Pool settings
	MaxConnections int           `mapstructure:"max_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	QueueLimit     int           `mapstructure:"queue_limit"` // 0 = unlimited queuing
	KeepAlive      bool          `mapstructure:"keep_alive"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`

	// SQLite settings
	Path        string `mapstructure:"path"`
	JournalMode string `mapstructure:"journal_mode"`
	BusyTimeout int    `mapstructure:"busy_timeout"` // milliseconds
}

// PostgresDSN returns the PostgreSQL connection string.
// A zero port selects 5432.
func (c DatabaseConfig) PostgresDSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// AuthConfig holds the account-level tags. They are read once at startup.
type AuthConfig struct {
	// AdminAccountLevel is the accountLevel value that grants administrator access.
	AdminAccountLevel int `mapstructure:"admin_account_level"`

	// StandardAccountLevel is the accountLevel value for ordinary accounts.
	StandardAccountLevel int `mapstructure:"standard_account_level"`
}

// HasherConfig holds credential hasher settings.
// The bcrypt cost is a compile-time constant and is not configurable.
type HasherConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LockConfig holds settings for the install lock.
// Redis is used when redis.enabled is set, otherwise locks are in-process.
type LockConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	Wait       time.Duration `mapstructure:"wait"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the port for the metrics HTTP server.
	Port int `mapstructure:"port"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with WARDEN_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/warden")
	}

	// Config file is optional - environment variables can be used instead
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 1<<20) // 1MB

	// Database defaults
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0) // driver default
	v.SetDefault("database.user", "warden")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "warden")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.idle_timeout", 60*time.Second)
	v.SetDefault("database.queue_limit", 0)
	v.SetDefault("database.keep_alive", false)
	v.SetDefault("database.acquire_timeout", 10*time.Second)
	// SQLite defaults
	v.SetDefault("database.path", "./data/warden.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)

	// Auth defaults
	v.SetDefault("auth.admin_account_level", 1)
	v.SetDefault("auth.standard_account_level", 0)

	// Hasher defaults
	v.SetDefault("hasher.max_concurrent", 0) // GOMAXPROCS

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Lock defaults
	v.SetDefault("lock.ttl", 30*time.Second)
	v.SetDefault("lock.wait", 10*time.Second)
	v.SetDefault("lock.retry_delay", 100*time.Millisecond)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite driver")
		}
	case DriverMySQL, DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for %s driver", c.Database.Driver)
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for %s driver", c.Database.Driver)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be 'sqlite', 'mysql' or 'postgres'")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database.max_connections must be at least 1")
	}
	if c.Database.QueueLimit < 0 {
		return fmt.Errorf("database.queue_limit must not be negative")
	}
	if c.Database.IdleTimeout < 0 || c.Database.AcquireTimeout < 0 {
		return fmt.Errorf("database timeouts must not be negative")
	}

	if c.Auth.AdminAccountLevel == c.Auth.StandardAccountLevel {
		return fmt.Errorf("auth.admin_account_level must differ from auth.standard_account_level")
	}
	for _, level := range []int{c.Auth.AdminAccountLevel, c.Auth.StandardAccountLevel} {
		if level < -32768 || level > 32767 {
			return fmt.Errorf("account levels must fit in a SMALLINT")
		}
	}

	if c.Hasher.MaxConcurrent < 0 {
		return fmt.Errorf("hasher.max_concurrent must not be negative")
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required when redis is enabled")
	}
	if c.Lock.TTL < 0 || c.Lock.Wait < 0 || c.Lock.RetryDelay < 0 {
		return fmt.Errorf("lock durations must not be negative")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}

	return nil
}
