package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds client settings and the demo server section.
type Config struct {
	APIBind           string
	Debounce          time.Duration
	MaxInFlight       int
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	RefreshInterval   time.Duration
	LogFile           string
	LogLevel          string
	Server            Server
}

// Server configures `tickbox serve`.
type Server struct {
	Bind     string
	DBPath   string
	Latency  time.Duration
	FailRate float64
	Seed     []string
}

const (
	defaultConfigPath     = "~/.config/tickbox/config.toml"
	defaultLogFile        = "~/.local/state/tickbox/tickbox.log"
	defaultDBPath         = "~/.local/share/tickbox/todos.db"
	defaultAPIBind        = "127.0.0.1:7480"
	defaultDebounce       = 500 * time.Millisecond
	defaultRequestTimeout = 5 * time.Second
	defaultRefresh        = 10 * time.Second
	defaultLogLevel       = "info"
)

var defaultSeed = []string{
	"Buy milk",
	"Water the plants",
	"Book dentist appointment",
	"Reply to Sam",
	"Take out recycling",
}

type rawConfig struct {
	APIBind           string   `toml:"api_bind"`
	DebounceMS        *int     `toml:"debounce_ms"`
	MaxInFlight       *int     `toml:"max_in_flight"`
	RequestsPerSecond *float64 `toml:"requests_per_second"`
	RequestTimeoutMS  *int     `toml:"request_timeout_ms"`
	RefreshSeconds    *int     `toml:"refresh_seconds"`
	LogFile           string   `toml:"log_file"`
	LogLevel          string   `toml:"log_level"`
	Server            struct {
		Bind      string   `toml:"bind"`
		DBPath    string   `toml:"db_path"`
		LatencyMS *int     `toml:"latency_ms"`
		FailRate  *float64 `toml:"fail_rate"`
		Seed      []string `toml:"seed"`
	} `toml:"server"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBind:         defaultAPIBind,
		Debounce:        defaultDebounce,
		RequestTimeout:  defaultRequestTimeout,
		RefreshInterval: defaultRefresh,
		LogFile:         mustExpand(defaultLogFile),
		LogLevel:        defaultLogLevel,
		Server: Server{
			Bind:   defaultAPIBind,
			DBPath: mustExpand(defaultDBPath),
			Seed:   append([]string(nil), defaultSeed...),
		},
	}
}

// Load locates and parses the config file, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.apply(raw); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(raw rawConfig) error {
	if v := strings.TrimSpace(raw.APIBind); v != "" {
		c.APIBind = v
	}
	if raw.DebounceMS != nil {
		if *raw.DebounceMS <= 0 {
			return fmt.Errorf("debounce_ms must be positive, got %d", *raw.DebounceMS)
		}
		c.Debounce = time.Duration(*raw.DebounceMS) * time.Millisecond
	}
	if raw.MaxInFlight != nil {
		if *raw.MaxInFlight < 0 {
			return fmt.Errorf("max_in_flight must not be negative, got %d", *raw.MaxInFlight)
		}
		c.MaxInFlight = *raw.MaxInFlight
	}
	if raw.RequestsPerSecond != nil {
		c.RequestsPerSecond = max(*raw.RequestsPerSecond, 0)
	}
	if raw.RequestTimeoutMS != nil && *raw.RequestTimeoutMS > 0 {
		c.RequestTimeout = time.Duration(*raw.RequestTimeoutMS) * time.Millisecond
	}
	if raw.RefreshSeconds != nil {
		c.RefreshInterval = time.Duration(max(*raw.RefreshSeconds, 0)) * time.Second
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		c.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		c.LogLevel = strings.ToLower(v)
	}

	if v := strings.TrimSpace(raw.Server.Bind); v != "" {
		c.Server.Bind = v
	}
	if v := strings.TrimSpace(raw.Server.DBPath); v != "" {
		if v == ":memory:" {
			c.Server.DBPath = v
		} else {
			c.Server.DBPath = mustExpand(v)
		}
	}
	if raw.Server.LatencyMS != nil {
		c.Server.Latency = time.Duration(max(*raw.Server.LatencyMS, 0)) * time.Millisecond
	}
	if raw.Server.FailRate != nil {
		rate := *raw.Server.FailRate
		if rate < 0 || rate > 1 {
			return fmt.Errorf("server.fail_rate must be within 0..1, got %g", rate)
		}
		c.Server.FailRate = rate
	}
	if raw.Server.Seed != nil {
		c.Server.Seed = raw.Server.Seed
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
