package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Interactors.InitialResource = DefaultInitialResource
	cfg.Viewport.Frame = DefaultViewportFrame
	return cfg
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"server url missing", func(c *Config) { c.Interactors.ServerURL = "" }, "server_url is required"},
		{"server url relative", func(c *Config) { c.Interactors.ServerURL = "/ContentService" }, "absolute URL"},
		{"negative cap", func(c *Config) { c.Interactors.DisclosureCap = -1 }, "disclosure_cap"},
		{"negative retries", func(c *Config) { c.Interactors.RetryMax = -1 }, "retry_max"},
		{"negative frame", func(c *Config) { c.Viewport.Frame = -1 }, "viewport.frame"},
		{"inverted zoom", func(c *Config) { c.Viewport.MinZoom = 4; c.Viewport.MaxZoom = 2 }, "zoom range"},
		{"zero radius", func(c *Config) { c.Layout.Radius = 0 }, "layout"},
		{"diagrams dir", func(c *Config) { c.Diagrams.Dir = "" }, "diagrams.dir"},
		{"redis addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"kafka topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "kafka.topic"},
		{"namespace", func(c *Config) { c.Metrics.Namespace = "" }, "metrics.namespace"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:9090", ServerConfig{Host: "127.0.0.1", Port: 9090}.Addr())
}
