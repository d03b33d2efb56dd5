/*
Package config loads the KV engine's runtime configuration from
environment variables, with defaults, and lets flags (wired in
cmd/kvengine) override them.
*/
package config

import (
	"os"
	"strconv"
)

// Config holds every setting the server needs to start.
type Config struct {
	Port          int
	DBPath        string
	LogPath       string
	AuthToken     string
	MaxValueBytes int
}

// Default values, used when neither an env var nor a flag overrides them.
const (
	DefaultPort          = 8080
	DefaultDBPath        = "kvengine.sqlite"
	DefaultLogPath       = "kvengine.log"
	DefaultMaxValueBytes = 10 << 20 // 10 MiB
)

// FromEnv reads KVENGINE_* environment variables into a Config,
// falling back to the package defaults for anything unset or
// unparsable. Flags parsed afterward by the caller take precedence
// over whatever this returns.
func FromEnv() Config {
	return Config{
		Port:          envInt("KVENGINE_PORT", DefaultPort),
		DBPath:        envString("KVENGINE_DB_PATH", DefaultDBPath),
		LogPath:       envString("KVENGINE_LOG_PATH", DefaultLogPath),
		AuthToken:     envString("KVENGINE_AUTH_TOKEN", ""),
		MaxValueBytes: envInt("KVENGINE_MAX_VALUE_BYTES", DefaultMaxValueBytes),
	}
}

func envString(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
