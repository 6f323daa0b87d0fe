package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Centrifugo CentrifugoConfig `mapstructure:"centrifugo"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	// Driver postgres or memory
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	TimeZone        string        `mapstructure:"time_zone"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.TimeZone,
	)
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type CentrifugoConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether a broker list is configured
func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ChatConfig session engine settings
type ChatConfig struct {
	// LockTimeout bounded wait for the per-session lock
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	// LockRetryBackoff pause before the single retry
	LockRetryBackoff time.Duration `mapstructure:"lock_retry_backoff"`

	// AutoAssign run the router when a session is opened
	AutoAssign bool `mapstructure:"auto_assign"`

	// DefaultDepartment slug used when the visitor picked none
	DefaultDepartment string `mapstructure:"default_department"`

	// MaxMessageLength in bytes
	MaxMessageLength int `mapstructure:"max_message_length"`

	// SuggestLimit knowledge articles returned when a session opens
	SuggestLimit int `mapstructure:"suggest_limit"`

	// SuggestReply also post the suggestions as a SYSTEM message
	SuggestReply bool `mapstructure:"suggest_reply"`
}

// AnalyticsConfig aggregator settings
type AnalyticsConfig struct {
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	DefaultDays   int           `mapstructure:"default_days"`
	MaxDays       int           `mapstructure:"max_days"`
	TopRatedLimit int           `mapstructure:"top_rated_limit"`
}

// RateLimitConfig visitor message rate limit, needs redis
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsProduction checks if app is in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment checks if app is in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// ENV vars override the config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Name: getEnvOrDefault("APP_NAME", v.GetString("app.name")),
			Env:  getEnvOrDefault("APP_ENV", v.GetString("app.env")),
			Port: getEnvOrDefaultInt("APP_PORT", v.GetInt("app.port")),
		},
		Database: DatabaseConfig{
			Driver:          getEnvOrDefault("STORAGE_DRIVER", v.GetString("database.driver")),
			Host:            getEnvOrDefault("DB_HOST", v.GetString("database.host")),
			Port:            getEnvOrDefaultInt("DB_PORT", v.GetInt("database.port")),
			User:            getEnvOrDefault("DB_USER", v.GetString("database.user")),
			Password:        getEnvOrDefault("DB_PASSWORD", v.GetString("database.password")),
			Name:            getEnvOrDefault("DB_NAME", v.GetString("database.name")),
			SSLMode:         getEnvOrDefault("DB_SSL_MODE", v.GetString("database.ssl_mode")),
			TimeZone:        getEnvOrDefault("DB_TIME_ZONE", v.GetString("database.time_zone")),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			URL: getEnvOrDefault("REDIS_URL", v.GetString("redis.url")),
		},
		Centrifugo: CentrifugoConfig{
			URL:    getEnvOrDefault("CENTRIFUGO_URL", v.GetString("centrifugo.url")),
			APIKey: getEnvOrDefault("CENTRIFUGO_API_KEY", v.GetString("centrifugo.api_key")),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvOrDefaultList("KAFKA_BROKERS", v.GetStringSlice("kafka.brokers")),
			Topic:   getEnvOrDefault("KAFKA_TOPIC", v.GetString("kafka.topic")),
		},
		JWT: JWTConfig{
			Secret: getEnvOrDefault("JWT_SECRET", v.GetString("jwt.secret")),
			Issuer: v.GetString("jwt.issuer"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", v.GetString("logging.level")),
			Format: getEnvOrDefault("LOG_FORMAT", v.GetString("logging.format")),
		},
		Chat: ChatConfig{
			LockTimeout:       v.GetDuration("chat.lock_timeout"),
			LockRetryBackoff:  v.GetDuration("chat.lock_retry_backoff"),
			AutoAssign:        v.GetBool("chat.auto_assign"),
			DefaultDepartment: v.GetString("chat.default_department"),
			MaxMessageLength:  v.GetInt("chat.max_message_length"),
			SuggestLimit:      v.GetInt("chat.suggest_limit"),
			SuggestReply:      v.GetBool("chat.suggest_reply"),
		},
		Analytics: AnalyticsConfig{
			CacheTTL:      v.GetDuration("analytics.cache_ttl"),
			DefaultDays:   v.GetInt("analytics.default_days"),
			MaxDays:       v.GetInt("analytics.max_days"),
			TopRatedLimit: v.GetInt("analytics.top_rated_limit"),
		},
		RateLimit: RateLimitConfig{
			Limit:  v.GetInt("rate_limit.limit"),
			Window: v.GetDuration("rate_limit.window"),
		},
		CORS: CORSConfig{
			AllowedOrigins: v.GetStringSlice("cors.allowed_origins"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// setDefaults values used when neither the file nor ENV set a key
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 8080)
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.time_zone", "UTC")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("kafka.topic", "chat.events")
	v.SetDefault("jwt.issuer", "chatdesk")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("chat.lock_timeout", 2*time.Second)
	v.SetDefault("chat.lock_retry_backoff", 100*time.Millisecond)
	v.SetDefault("chat.auto_assign", true)
	v.SetDefault("chat.max_message_length", 5000)
	v.SetDefault("chat.suggest_limit", 3)
	v.SetDefault("analytics.cache_ttl", 30*time.Second)
	v.SetDefault("analytics.default_days", 30)
	v.SetDefault("analytics.max_days", 365)
	v.SetDefault("analytics.top_rated_limit", 10)
	v.SetDefault("rate_limit.limit", 30)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// getEnvOrDefault returns env value or default
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	// Handle ${VAR:default} pattern in defaultVal
	if strings.HasPrefix(defaultVal, "${") && strings.HasSuffix(defaultVal, "}") {
		inner := defaultVal[2 : len(defaultVal)-1]
		parts := strings.SplitN(inner, ":", 2)
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	}
	return defaultVal
}

// getEnvOrDefaultInt returns env value as int or default
func getEnvOrDefaultInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var intVal int
		fmt.Sscanf(val, "%d", &intVal)
		if intVal > 0 {
			return intVal
		}
	}
	if defaultVal > 0 {
		return defaultVal
	}
	return 0
}

// getEnvOrDefaultList returns a comma separated env value or default
func getEnvOrDefaultList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.App.Port)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}

	if c.Chat.LockTimeout <= 0 {
		return fmt.Errorf("chat.lock_timeout must be positive")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return fmt.Errorf("chat.max_message_length must be positive")
	}
	if c.Analytics.DefaultDays <= 0 || c.Analytics.MaxDays < c.Analytics.DefaultDays {
		return fmt.Errorf("invalid analytics window: default %d, max %d", c.Analytics.DefaultDays, c.Analytics.MaxDays)
	}
	if c.Analytics.TopRatedLimit <= 0 {
		return fmt.Errorf("analytics.top_rated_limit must be positive")
	}

	return nil
}
