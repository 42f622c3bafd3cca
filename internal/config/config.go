package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	S3        S3Config        `mapstructure:"s3"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	AI        AIConfig        `mapstructure:"ai"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Routines  RoutinesConfig  `mapstructure:"routines"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// Mode is the gin mode: debug, release or test.
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// RedisConfig configures the catalog cache and the request limiter.
// An empty Addr disables both.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
}

// S3Config configures the archive for model responses. An empty BucketName disables archiving.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// AuthConfig lists the emails that receive the admin role on registration.
// From the environment: AUTH_ADMIN_EMAILS=a@example.com,b@example.com
type AuthConfig struct {
	AdminEmails []string `mapstructure:"admin_emails"`
}

// AIConfig selects the generative model backend.
// APIKey may be empty at startup; requests then fail with a configuration error.
type AIConfig struct {
	Provider       string        `mapstructure:"provider"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	RoutineModel   string        `mapstructure:"routine_model"`
	Temperature    float64       `mapstructure:"temperature"`
	ChatTimeout    time.Duration `mapstructure:"chat_timeout"`
	RoutineTimeout time.Duration `mapstructure:"routine_timeout"`
	CatalogLimit   int           `mapstructure:"catalog_limit"`
}

type RateLimitConfig struct {
	GenerateRequests int           `mapstructure:"generate_requests"`
	GenerateWindow   time.Duration `mapstructure:"generate_window"`
}

// RoutinesConfig controls the sweep of routines left incomplete by a failed rollback.
type RoutinesConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepGrace    time.Duration `mapstructure:"sweep_grace"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, ai.api_key -> AI_API_KEY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// Every key needs a default, otherwise Unmarshal never sees env-only values.
	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "routine_coach")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.catalog_ttl", "5m")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")

	v.SetDefault("auth.admin_emails", []string{})

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.chat_model", "gemini-2.0-flash")
	v.SetDefault("ai.routine_model", "gemini-2.5-flash")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.chat_timeout", "10s")
	v.SetDefault("ai.routine_timeout", "60s")
	v.SetDefault("ai.catalog_limit", 30)

	v.SetDefault("rate_limit.generate_requests", 20)
	v.SetDefault("rate_limit.generate_window", "1m")

	v.SetDefault("routines.sweep_interval", "5m")
	v.SetDefault("routines.sweep_grace", "10m")

	v.SetDefault("metrics.enabled", true)
}
