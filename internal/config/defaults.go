package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 8080
	DefaultServerReadTimeout     = 15 * time.Second
	DefaultServerWriteTimeout    = 30 * time.Second
	DefaultServerShutdownTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultInteractorsServerURL = "https://reactome.org"
	DefaultInitialResource      = "static"
	DefaultDisclosureCap        = 10
	DefaultInteractorsTimeout   = 20 * time.Second
	DefaultInteractorsRetryMax  = 3
	DefaultInteractorsRetryWait = 500 * time.Millisecond

	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
	DefaultViewportFrame  = 40
	DefaultMinZoom        = 0.05
	DefaultMaxZoom        = 64

	DefaultLayoutRadius     = 120
	DefaultLayoutNodeWidth  = 60
	DefaultLayoutNodeHeight = 24

	DefaultDiagramsDir = "./diagrams"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisPoolSize  = 10
	DefaultRedisTimeout   = 3 * time.Second
	DefaultRedisTTL       = 30 * time.Minute
	DefaultRedisKeyPrefix = "overlay:"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaTopic        = "overlay.events"
	DefaultKafkaBatchTimeout = 10 * time.Millisecond
	DefaultKafkaWriteTimeout = 10 * time.Second
	DefaultKafkaMaxAttempts  = 3

	DefaultMetricsNamespace = "pathway_overlay"
)

// ApplyDefaults fills every zero-value field in cfg with its default.
// Explicitly set values are left unchanged.  InitialResource, Frame and
// RetryMax are meaningful at zero and only receive defaults through viper.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Interactors ───────────────────────────────────────────────────────────
	if cfg.Interactors.ServerURL == "" {
		cfg.Interactors.ServerURL = DefaultInteractorsServerURL
	}
	if cfg.Interactors.DisclosureCap == 0 {
		cfg.Interactors.DisclosureCap = DefaultDisclosureCap
	}
	if cfg.Interactors.Timeout == 0 {
		cfg.Interactors.Timeout = DefaultInteractorsTimeout
	}
	if cfg.Interactors.RetryWait == 0 {
		cfg.Interactors.RetryWait = DefaultInteractorsRetryWait
	}

	// ── Viewport ──────────────────────────────────────────────────────────────
	if cfg.Viewport.Width == 0 {
		cfg.Viewport.Width = DefaultViewportWidth
	}
	if cfg.Viewport.Height == 0 {
		cfg.Viewport.Height = DefaultViewportHeight
	}
	if cfg.Viewport.MinZoom == 0 {
		cfg.Viewport.MinZoom = DefaultMinZoom
	}
	if cfg.Viewport.MaxZoom == 0 {
		cfg.Viewport.MaxZoom = DefaultMaxZoom
	}

	// ── Layout ────────────────────────────────────────────────────────────────
	if cfg.Layout.Radius == 0 {
		cfg.Layout.Radius = DefaultLayoutRadius
	}
	if cfg.Layout.NodeWidth == 0 {
		cfg.Layout.NodeWidth = DefaultLayoutNodeWidth
	}
	if cfg.Layout.NodeHeight == 0 {
		cfg.Layout.NodeHeight = DefaultLayoutNodeHeight
	}

	// ── Diagrams ──────────────────────────────────────────────────────────────
	if cfg.Diagrams.Dir == "" {
		cfg.Diagrams.Dir = DefaultDiagramsDir
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = DefaultRedisTimeout
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultRedisTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = DefaultKafkaBatchTimeout
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}
	if cfg.Kafka.MaxAttempts == 0 {
		cfg.Kafka.MaxAttempts = DefaultKafkaMaxAttempts
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// viperDefaults lists every key with a default so that environment variables
// are honoured even when no config file mentions the key.
func viperDefaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":             DefaultServerHost,
		"server.port":             DefaultServerPort,
		"server.read_timeout":     DefaultServerReadTimeout,
		"server.write_timeout":    DefaultServerWriteTimeout,
		"server.shutdown_timeout": DefaultServerShutdownTimeout,

		"log.level":  DefaultLogLevel,
		"log.format": DefaultLogFormat,

		"interactors.server_url":       DefaultInteractorsServerURL,
		"interactors.initial_resource": DefaultInitialResource,
		"interactors.disclosure_cap":   DefaultDisclosureCap,
		"interactors.timeout":          DefaultInteractorsTimeout,
		"interactors.retry_max":        DefaultInteractorsRetryMax,
		"interactors.retry_wait":       DefaultInteractorsRetryWait,

		"viewport.width":    DefaultViewportWidth,
		"viewport.height":   DefaultViewportHeight,
		"viewport.frame":    DefaultViewportFrame,
		"viewport.min_zoom": DefaultMinZoom,
		"viewport.max_zoom": DefaultMaxZoom,

		"layout.radius":      DefaultLayoutRadius,
		"layout.node_width":  DefaultLayoutNodeWidth,
		"layout.node_height": DefaultLayoutNodeHeight,

		"diagrams.dir": DefaultDiagramsDir,

		"redis.enabled":     false,
		"redis.addr":        DefaultRedisAddr,
		"redis.password":    "",
		"redis.db":          0,
		"redis.default_ttl": DefaultRedisTTL,
		"redis.key_prefix":  DefaultRedisKeyPrefix,

		"kafka.enabled": false,
		"kafka.brokers": []string{DefaultKafkaBroker},
		"kafka.topic":   DefaultKafkaTopic,

		"metrics.namespace":              DefaultMetricsNamespace,
		"metrics.enable_process_metrics": false,
		"metrics.enable_go_metrics":      false,
	}
}
