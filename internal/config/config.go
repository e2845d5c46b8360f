package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Security   SecurityConfig   `mapstructure:"security"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	TvOverlay  TvOverlayConfig  `mapstructure:"tvoverlay"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string          `mapstructure:"path"`
	MaxConnections int             `mapstructure:"max_connections"`
	Migration      MigrationConfig `mapstructure:"migration"`
}

type MigrationConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// BatchSize is the number of 200 responses folded into one summary line.
	BatchSize int `mapstructure:"batch_size"`
}

type WebSocketConfig struct {
	PingInterval int `mapstructure:"ping_interval"`
	PongTimeout  int `mapstructure:"pong_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	EnableCORS     bool            `mapstructure:"enable_cors"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits requests per client IP
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second"`
	Burst             int  `mapstructure:"burst"`
}

// MonitoringConfig contains monitoring and metrics configuration
type MonitoringConfig struct {
	Prometheus MonitoringPrometheusConfig `mapstructure:"prometheus"`
}

// MonitoringPrometheusConfig contains Prometheus configuration
type MonitoringPrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TvOverlayConfig contains settings for the overlay device integration
type TvOverlayConfig struct {
	DefaultPort  int             `mapstructure:"default_port"`
	DefaultName  string          `mapstructure:"default_name"`
	ScanInterval time.Duration   `mapstructure:"scan_interval"`
	Devices      []DeviceSeed    `mapstructure:"devices"`
	SeedFile     string          `mapstructure:"seed_file"`
	Discovery    DiscoveryConfig `mapstructure:"discovery"`
}

// DeviceSeed describes a registration created at startup when it does not
// already exist.
type DeviceSeed struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	Name       string `mapstructure:"name" yaml:"name"`
	Identifier string `mapstructure:"identifier" yaml:"identifier"`
}

// DiscoveryConfig contains mDNS discovery configuration
type DiscoveryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceType string        `mapstructure:"service_type"`
	Domain      string        `mapstructure:"domain"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Read environment variables
	viper.AutomaticEnv()

	// Override specific values from env
	viper.BindEnv("auth.enabled", "AUTH_ENABLED")
	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.mode", "GIN_MODE")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logging.level", "LOG_LEVEL")

	// Security configuration bindings
	viper.BindEnv("security.allowed_origins", "TVOVERLAY_ALLOWED_ORIGINS")
	viper.BindEnv("security.enable_cors", "TVOVERLAY_ENABLE_CORS")

	// Device integration bindings
	viper.BindEnv("tvoverlay.seed_file", "TVOVERLAY_SEED_FILE")
	viper.BindEnv("tvoverlay.discovery.enabled", "TVOVERLAY_DISCOVERY_ENABLED")
	viper.BindEnv("monitoring.prometheus.enabled", "TVOVERLAY_METRICS_ENABLED")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		errors = append(errors, "server.host is required")
	}

	if c.Database.Path == "" {
		errors = append(errors, "database.path is required")
	}

	if c.Auth.Enabled && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "your-secret-key-here") {
		errors = append(errors, "auth.jwt_secret must be set to a secure value when enabled")
	}

	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerSecond <= 0 {
		errors = append(errors, "security.rate_limit.requests_per_second must be positive when enabled")
	}

	if c.TvOverlay.DefaultPort <= 0 || c.TvOverlay.DefaultPort > 65535 {
		errors = append(errors, "tvoverlay.default_port must be between 1 and 65535")
	}
	if c.TvOverlay.ScanInterval < time.Second {
		errors = append(errors, "tvoverlay.scan_interval must be at least 1s")
	}
	for i, d := range c.TvOverlay.Devices {
		if strings.TrimSpace(d.Host) == "" {
			errors = append(errors, fmt.Sprintf("tvoverlay.devices[%d].host is required", i))
		}
		if d.Port < 0 || d.Port > 65535 {
			errors = append(errors, fmt.Sprintf("tvoverlay.devices[%d].port must be between 1 and 65535", i))
		}
	}
	if c.TvOverlay.Discovery.Enabled && c.TvOverlay.Discovery.ServiceType == "" {
		errors = append(errors, "tvoverlay.discovery.service_type is required when discovery is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 3020)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "development")

	// Database defaults
	viper.SetDefault("database.path", "./data/tvoverlay.db")
	viper.SetDefault("database.max_connections", 1)
	viper.SetDefault("database.migration.enabled", true)
	viper.SetDefault("database.migration.auto_migrate", true)

	// Auth defaults
	viper.SetDefault("auth.enabled", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.batch_size", 100)

	// WebSocket defaults
	viper.SetDefault("websocket.ping_interval", 30)
	viper.SetDefault("websocket.pong_timeout", 60)
	viper.SetDefault("websocket.write_timeout", 10)

	// Security defaults
	viper.SetDefault("security.enable_cors", true)
	viper.SetDefault("security.allowed_origins", []string{"*"})
	viper.SetDefault("security.rate_limit.enabled", true)
	viper.SetDefault("security.rate_limit.requests_per_second", 20)
	viper.SetDefault("security.rate_limit.burst", 40)

	// Monitoring defaults
	viper.SetDefault("monitoring.prometheus.enabled", true)
	viper.SetDefault("monitoring.prometheus.path", "/metrics")

	// TvOverlay defaults
	viper.SetDefault("tvoverlay.default_port", 5001)
	viper.SetDefault("tvoverlay.default_name", "TvOverlay")
	viper.SetDefault("tvoverlay.scan_interval", "30s")
	viper.SetDefault("tvoverlay.discovery.enabled", false)
	viper.SetDefault("tvoverlay.discovery.service_type", "_tvoverlay._tcp")
	viper.SetDefault("tvoverlay.discovery.domain", "local.")
	viper.SetDefault("tvoverlay.discovery.timeout", "5s")
}
