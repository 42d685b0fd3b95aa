// Package config loads server configuration from YAML and the environment.
package config

import "fmt"

// Defaults used when neither the file nor the environment set a value.
const (
	DefaultPort      = 3003
	DefaultBind      = "lan"
	DefaultStaticDir = "frontend"
	DefaultDataDir   = "/app/data"
	DBFileName       = "counts.db"
	PageviewFileName = "pageviews.log"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      DefaultPort,
			Bind:      DefaultBind,
			StaticDir: DefaultStaticDir,
		},
		Storage: StorageConfig{
			DataDir: DefaultDataDir,
		},
		Pageviews: PageviewsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
