// Package config defines the configuration of the pathway overlay service.
// No I/O lives in this file, only plain data types and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// InteractorsConfig configures the interaction resource and the overlay engine.
type InteractorsConfig struct {
	// ServerURL is the ContentService base URL.
	ServerURL string `mapstructure:"server_url"`
	// InitialResource is the resource loaded with every diagram; empty disables.
	InitialResource string `mapstructure:"initial_resource"`
	// DisclosureCap bounds dynamic links created per anchor resolution.
	DisclosureCap int           `mapstructure:"disclosure_cap"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryMax      int           `mapstructure:"retry_max"`
	RetryWait     time.Duration `mapstructure:"retry_wait"`
}

// ViewportConfig configures the viewport transform.
type ViewportConfig struct {
	Width   float64 `mapstructure:"width"`
	Height  float64 `mapstructure:"height"`
	Frame   float64 `mapstructure:"frame"`
	MinZoom float64 `mapstructure:"min_zoom"`
	MaxZoom float64 `mapstructure:"max_zoom"`
}

// LayoutConfig configures radial placement of dynamic interactors.
type LayoutConfig struct {
	Radius     float64 `mapstructure:"radius"`
	NodeWidth  float64 `mapstructure:"node_width"`
	NodeHeight float64 `mapstructure:"node_height"`
}

// DiagramsConfig locates diagram layout files.
type DiagramsConfig struct {
	Dir string `mapstructure:"dir"`
}

// RedisConfig holds the optional interaction payload cache.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds the optional overlay notification publisher.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	Namespace            string `mapstructure:"namespace"`
	EnableProcessMetrics bool   `mapstructure:"enable_process_metrics"`
	EnableGoMetrics      bool   `mapstructure:"enable_go_metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         logging.LogConfig `mapstructure:"log"`
	Interactors InteractorsConfig `mapstructure:"interactors"`
	Viewport    ViewportConfig    `mapstructure:"viewport"`
	Layout      LayoutConfig      `mapstructure:"layout"`
	Diagrams    DiagramsConfig    `mapstructure:"diagrams"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// Validate checks required fields and value ranges.  It is called after
// ApplyDefaults, so zero values here mean the operator set them explicitly.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Interactors.ServerURL == "" {
		return fmt.Errorf("config: interactors.server_url is required")
	}
	if u, err := url.Parse(c.Interactors.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: interactors.server_url %q is not an absolute URL", c.Interactors.ServerURL)
	}
	if c.Interactors.DisclosureCap < 0 {
		return fmt.Errorf("config: interactors.disclosure_cap must not be negative")
	}
	if c.Interactors.RetryMax < 0 {
		return fmt.Errorf("config: interactors.retry_max must not be negative")
	}
	if c.Viewport.Width < 0 || c.Viewport.Height < 0 {
		return fmt.Errorf("config: viewport size must not be negative")
	}
	if c.Viewport.Frame < 0 {
		return fmt.Errorf("config: viewport.frame must not be negative")
	}
	if c.Viewport.MinZoom <= 0 || c.Viewport.MaxZoom < c.Viewport.MinZoom {
		return fmt.Errorf("config: viewport zoom range [%g, %g] is invalid", c.Viewport.MinZoom, c.Viewport.MaxZoom)
	}
	if c.Layout.Radius <= 0 || c.Layout.NodeWidth <= 0 || c.Layout.NodeHeight <= 0 {
		return fmt.Errorf("config: layout radius and node size must be positive")
	}
	if c.Diagrams.Dir == "" {
		return fmt.Errorf("config: diagrams.dir is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required when kafka is enabled")
		}
	}
	if c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required")
	}
	return nil
}
