package config

import (
	"flag"
	"os"
)

type Config struct {
	// Session protocol listener.
	Listen string

	DataDir  string
	LogLevel string

	// Auth settings.
	AuthEnabled bool
	AuthSecret  string

	// Ambient HTTP host: health probe, CORS, read-only session listing.
	HTTPAddr string
}

func Parse() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", ":7781", "session protocol TCP listen address")
	flag.StringVar(&cfg.DataDir, "data-dir", defaultDataDir(), "data directory for SQLite and saved session WAVs")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.AuthEnabled, "auth", false, "enable session auth_token gate (default: open for local use)")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", "", "shared secret checked against start.auth_token when -auth is set")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", ":7782", "ambient HTTP host address (health probe, CORS, sessions API)")

	flag.Parse()
	return cfg
}

func defaultDataDir() string {
	if dir := os.Getenv("RHYTHM_COACH_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rhythm-coach"
	}
	return home + "/.rhythm-coach"
}
