package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Log           LogConfig
	HTTP          HTTPConfig
	Manufacturing ManufacturingConfig
	Telemetry     TelemetryConfig
	Profiler      ProfilerConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
	ConnMaxIdleTime int // minutes
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// ManufacturingConfig carries the domain tunables.
type ManufacturingConfig struct {
	MinEfficiency  float64       // lower bound of the produced/consumed ratio band
	MaxEfficiency  float64       // upper bound of the produced/consumed ratio band
	IdempotencyTTL time.Duration // retention for transition idempotency keys
}

type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTEL collector endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool // non-TLS collector connection, development only
}

type ProfilerConfig struct {
	Enabled       bool
	ServerAddress string // Pyroscope address, e.g. "http://pyroscope:4040"
}

// Load reads configuration in priority order: MFG_-prefixed
// environment variables, then config.toml, then built-in defaults.
// A value of 0 or "" counts as unset and falls back to the default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		// Running without a config file is supported.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MFG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: stringOr(v, "app.name", "manufacturing-service"),
			Env:  stringOr(v, "app.env", "development"),
			Port: stringOr(v, "app.port", "8080"),
		},
		Database: DatabaseConfig{
			Host:            stringOr(v, "database.host", "localhost"),
			Port:            intOr(v, "database.port", 5432),
			User:            stringOr(v, "database.user", "postgres"),
			Password:        v.GetString("database.password"),
			DBName:          stringOr(v, "database.dbname", "manufacturing"),
			SSLMode:         stringOr(v, "database.sslmode", "disable"),
			MaxOpenConns:    intOr(v, "database.max_open_conns", 25),
			MaxIdleConns:    intOr(v, "database.max_idle_conns", 5),
			ConnMaxLifetime: intOr(v, "database.conn_max_lifetime", 60),
			ConnMaxIdleTime: intOr(v, "database.conn_max_idle_time", 30),
		},
		Redis: RedisConfig{
			Host:     stringOr(v, "redis.host", "localhost"),
			Port:     intOr(v, "redis.port", 6379),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Enabled:  v.GetBool("redis.enabled"),
		},
		Log: LogConfig{
			Level:  stringOr(v, "log.level", "info"),
			Format: stringOr(v, "log.format", "console"),
			Output: stringOr(v, "log.output", "stdout"),
		},
		HTTP:          loadHTTP(v),
		Manufacturing: loadManufacturing(v),
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: stringOr(v, "telemetry.collector_endpoint", "localhost:4317"),
			SamplingRatio:     floatOr(v, "telemetry.sampling_ratio", 1.0),
			ServiceName:       stringOr(v, "telemetry.service_name", "manufacturing-service"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
		Profiler: ProfilerConfig{
			Enabled:       v.GetBool("profiler.enabled"),
			ServerAddress: stringOr(v, "profiler.server_address", "http://localhost:4040"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadHTTP(v *viper.Viper) HTTPConfig {
	cfg := HTTPConfig{
		ReadTimeout:      durationOr(v, "http.read_timeout", 15*time.Second),
		WriteTimeout:     durationOr(v, "http.write_timeout", 15*time.Second),
		IdleTimeout:      durationOr(v, "http.idle_timeout", 60*time.Second),
		MaxHeaderBytes:   intOr(v, "http.max_header_bytes", 1<<20),
		MaxBodySize:      v.GetInt64("http.max_body_size"),
		CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
		CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
		TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 10 << 20
	}
	if len(cfg.CORSAllowMethods) == 0 {
		cfg.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.CORSAllowHeaders) == 0 {
		cfg.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID", "Idempotency-Key"}
	}
	// CORS origins deliberately have no fallback. An empty list means no
	// cross-origin requests until configured.
	return cfg
}

func loadManufacturing(v *viper.Viper) ManufacturingConfig {
	return ManufacturingConfig{
		MinEfficiency:  floatOr(v, "manufacturing.min_efficiency", 0.1),
		MaxEfficiency:  floatOr(v, "manufacturing.max_efficiency", 10),
		IdempotencyTTL: durationOr(v, "manufacturing.idempotency_ttl", 24*time.Hour),
	}
}

func stringOr(v *viper.Viper, key, fallback string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return fallback
}

func intOr(v *viper.Viper, key string, fallback int) int {
	if n := v.GetInt(key); n != 0 {
		return n
	}
	return fallback
}

func floatOr(v *viper.Viper, key string, fallback float64) float64 {
	if f := v.GetFloat64(key); f != 0 {
		return f
	}
	return fallback
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	if d := v.GetDuration(key); d != 0 {
		return d
	}
	return fallback
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	// The efficiency band must be a positive interval.
	if c.Manufacturing.MinEfficiency <= 0 {
		return fmt.Errorf("manufacturing.min_efficiency must be positive")
	}
	if c.Manufacturing.MaxEfficiency <= c.Manufacturing.MinEfficiency {
		return fmt.Errorf("manufacturing.max_efficiency (%f) must exceed manufacturing.min_efficiency (%f)",
			c.Manufacturing.MaxEfficiency, c.Manufacturing.MinEfficiency)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the postgres connection URL with user and password
// escaped.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
