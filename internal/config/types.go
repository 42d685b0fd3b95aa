package config

// Config is the root configuration for the counter server.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Auth      AuthConfig      `yaml:"auth,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	Pageviews PageviewsConfig `yaml:"pageviews,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "lan" | "loopback" | "custom"
	CustomBindHost string   `yaml:"customBindHost,omitempty"`
	StaticDir      string   `yaml:"staticDir,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// AuthConfig holds the shared secret guarding the write endpoint.
// An empty secret leaves writes open.
type AuthConfig struct {
	Secret string `yaml:"secret,omitempty"`
}

// StorageConfig selects where the counts database lives.
type StorageConfig struct {
	DataDir string `yaml:"dataDir,omitempty"` // used when it exists on disk
	DBPath  string `yaml:"dbPath,omitempty"`  // explicit override
}

// PageviewsConfig controls the homepage access log.
type PageviewsConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"logPath,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}
