package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Issues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"negative port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"huge port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad bind", func(c *Config) { c.Server.Bind = "tailnet" }, "server.bind"},
		{"custom bind without host", func(c *Config) { c.Server.Bind = "custom" }, "server.customBindHost"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad style", func(c *Config) { c.Logging.ConsoleStyle = "fancy" }, "logging.consoleStyle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.Len(t, issues, 1)
			assert.Equal(t, tt.path, issues[0].Path)
			assert.Contains(t, issues[0].String(), tt.path)
		})
	}
}

func TestValidate_ValidVariants(t *testing.T) {
	for _, bind := range []string{"lan", "loopback", ""} {
		cfg := Defaults()
		cfg.Server.Bind = bind
		assert.Empty(t, Validate(&cfg), "bind %q should be valid", bind)
	}

	cfg := Defaults()
	cfg.Server.Bind = "custom"
	cfg.Server.CustomBindHost = "10.0.0.2"
	cfg.Server.Port = 0
	assert.Empty(t, Validate(&cfg))
}
