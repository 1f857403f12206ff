package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const appName = "GameMyCourse"

type Config struct {
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`
	Agent    struct {
		Address            string   `json:"address"`
		URL                string   `json:"url"`
		SnapshotSchedule   string   `json:"snapshot_schedule"`
		IdleThreshold      Duration `json:"idle_threshold"`
		PlayerPollInterval Duration `json:"player_poll_interval"`
	} `json:"agent"`
	Collector struct {
		Address     string   `json:"address"`
		Database    string   `json:"database"`
		IngestURL   string   `json:"ingest_url"`
		SnapshotURL string   `json:"snapshot_url"`
		Timeout     Duration `json:"timeout"`
		MaxInFlight int64    `json:"max_in_flight"`
	} `json:"collector"`
}

// Duration is a time.Duration written as a string such as "60s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultDataDir is the platform application directory.
func DefaultDataDir() string {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		homeDirectory = os.Getenv("HOME")
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDirectory, "Library", "Application Support", appName)
	case "windows":
		return filepath.Join(homeDirectory, "AppData", "Roaming", appName)
	default: // linux and others
		return filepath.Join(homeDirectory, ".local", "share", appName)
	}
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.json")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:  DefaultDataDir(),
		LogLevel: "info",
	}
	cfg.Agent.Address = "127.0.0.1:8123"
	cfg.Agent.SnapshotSchedule = "@every 10s"
	cfg.Agent.IdleThreshold = Duration(60 * time.Second)
	cfg.Agent.PlayerPollInterval = Duration(2 * time.Second)
	cfg.Collector.Address = "127.0.0.1:8000"
	cfg.Collector.IngestURL = "http://127.0.0.1:8000/events/ingest"
	cfg.Collector.Timeout = Duration(5 * time.Second)
	cfg.Collector.MaxInFlight = 4
	return cfg
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if address := os.Getenv("GAMEMYCOURSE_ADDRESS"); address != "" {
		cfg.Agent.Address = address
	}
	if address := os.Getenv("GAMEMYCOURSE_COLLECTOR_ADDRESS"); address != "" {
		cfg.Collector.Address = address
	}
	if ingestURL := os.Getenv("GAMEMYCOURSE_INGEST_URL"); ingestURL != "" {
		cfg.Collector.IngestURL = ingestURL
	}
	if snapshotURL := os.Getenv("GAMEMYCOURSE_SNAPSHOT_URL"); snapshotURL != "" {
		cfg.Collector.SnapshotURL = snapshotURL
	}
	if level := os.Getenv("GAMEMYCOURSE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if cfg.Collector.Database == "" {
		cfg.Collector.Database = filepath.Join(cfg.DataDir, "engagement.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Agent.IdleThreshold <= 0 {
		return fmt.Errorf("agent.idle_threshold must be positive")
	}
	if c.Agent.PlayerPollInterval <= 0 {
		return fmt.Errorf("agent.player_poll_interval must be positive")
	}
	if c.Collector.Timeout <= 0 {
		return fmt.Errorf("collector.timeout must be positive")
	}
	if c.Collector.MaxInFlight <= 0 {
		return fmt.Errorf("collector.max_in_flight must be positive")
	}
	return nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename default config: %w", err)
	}
	return nil
}
