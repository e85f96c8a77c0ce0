// Package config loads server tuning knobs from JSON (§6) with
// WSEARCHD_-prefixed environment-variable overrides, and hot-reloads the
// file via github.com/fsnotify/fsnotify, generalizing the teacher's own
// fsnotify-driven reload in cmd/zoekt-indexserver/config.go from "indexed
// repo configuration" to "server tuning knobs".
package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Config holds every knob from the external-interface table (§6) plus the
// two implementation-only additions from §4.8/4.9.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	Mode string `json:"mode"` // default mode for the threaded server

	MaxWorkers                int   `json:"max_workers"`
	RequestTimeoutSeconds     int   `json:"request_timeout"`
	MaxPatternLength          int   `json:"max_pattern_length"`
	CacheSize                 int   `json:"cache_size"`
	MaxConcurrentConnections  int   `json:"max_concurrent_connections"`
	MaxQuestions              int   `json:"max_questions"`
	MaxStars                  int   `json:"max_stars"`
	MemorySoftLimitBytes      int64 `json:"memory_soft_limit_bytes"`

	ConfigPath string `json:"-"` // set by Load, not read from JSON
	HealthAddr string `json:"health_addr"`
}

// Default returns the documented defaults from §6.
func Default() Config {
	return Config{
		Host:                     "127.0.0.1",
		Port:                     8080,
		Mode:                     "partial",
		MaxWorkers:               50,
		RequestTimeoutSeconds:    30,
		MaxPatternLength:         1000,
		CacheSize:                100,
		MaxConcurrentConnections: 1000,
		MaxQuestions:             5000,
		MaxStars:                 50,
	}
}

// Load reads path (JSON) over the defaults, then applies WSEARCHD_*
// environment overrides. A missing file is not an error: defaults (plus
// env overrides) are used, matching "load on best effort" semantics for
// what is explicitly an external-collaborator concern (§1).
func Load(path string) (Config, error) {
	cfg := Default()
	cfg.ConfigPath = path

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if jerr := json.Unmarshal(data, &cfg); jerr != nil {
				return cfg, errors.Wrapf(jerr, "parsing config %q", path)
			}
			cfg.ConfigPath = path
		} else if !os.IsNotExist(err) {
			return cfg, errors.Wrapf(err, "reading config %q", path)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("WSEARCHD_" + key); ok {
			*dst = v
		}
	}
	intv := func(key string, dst *int) {
		if v, ok := os.LookupEnv("WSEARCHD_" + key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	i64 := func(key string, dst *int64) {
		if v, ok := os.LookupEnv("WSEARCHD_" + key); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}

	str("HOST", &cfg.Host)
	intv("PORT", &cfg.Port)
	str("MODE", &cfg.Mode)
	intv("MAX_WORKERS", &cfg.MaxWorkers)
	intv("REQUEST_TIMEOUT", &cfg.RequestTimeoutSeconds)
	intv("MAX_PATTERN_LENGTH", &cfg.MaxPatternLength)
	intv("CACHE_SIZE", &cfg.CacheSize)
	intv("MAX_CONCURRENT_CONNECTIONS", &cfg.MaxConcurrentConnections)
	intv("MAX_QUESTIONS", &cfg.MaxQuestions)
	intv("MAX_STARS", &cfg.MaxStars)
	i64("MEMORY_SOFT_LIMIT_BYTES", &cfg.MemorySoftLimitBytes)
	str("HEALTH_ADDR", &cfg.HealthAddr)
}
