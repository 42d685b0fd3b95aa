package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultBaseDir = ".absolutelyright"

// Paths holds resolved filesystem paths for the CLI's own files.
type Paths struct {
	Base   string // ~/.absolutelyright
	Config string // ~/.absolutelyright/config.yaml
}

// ResolvePaths computes the standard paths from the home directory.
// If ABSOLUTELYRIGHT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("ABSOLUTELYRIGHT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
	}, nil
}

// ResolveDB picks the database file: the explicit path, else counts.db inside
// the data directory when that directory exists, else counts.db in the
// working directory.
func (s StorageConfig) ResolveDB() string {
	if s.DBPath != "" {
		return s.DBPath
	}
	return inDataDir(s.DataDir, DBFileName)
}

// ResolvePageviewLog picks the access log file using the same data directory
// rule as the database.
func (c Config) ResolvePageviewLog() string {
	if c.Pageviews.LogPath != "" {
		return c.Pageviews.LogPath
	}
	return inDataDir(c.Storage.DataDir, PageviewFileName)
}

func inDataDir(dir, name string) string {
	if dir != "" && isDir(dir) {
		return filepath.Join(dir, name)
	}
	return name
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// blockedKeys are keys that must never appear in config paths.
var blockedKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// ParseConfigPath splits a dot-separated config path into segments.
// Returns an error if any segment is blocked or empty.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
		if blockedKeys[p] {
			return nil, &ConfigError{Message: "config path contains blocked key: " + p}
		}
	}
	return parts, nil
}

// GetValueAtPath traverses a nested map using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}
