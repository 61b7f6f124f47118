// Package config loads muxcmd's TOML configuration. All fields have
// working defaults so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full configuration tree.
type Config struct {
	Session SessionConfig `toml:"session"`
	Relay   RelayConfig   `toml:"relay"`
	Result  ResultConfig  `toml:"result"`
	Probe   ProbeConfig   `toml:"probe"`
	Policy  PolicyConfig  `toml:"policy"`
}

// SessionConfig controls the tmux session commands dispatch into.
type SessionConfig struct {
	Name         string `toml:"name"`
	StartDir     string `toml:"start_dir"`
	HistoryLimit int    `toml:"history_limit"`
	// WaitTimeoutSeconds bounds the rendezvous wait. Zero blocks until
	// the signal fires.
	WaitTimeoutSeconds int `toml:"wait_timeout_seconds"`
	// Socket names an isolated tmux server (-L). Empty uses the default.
	Socket string `toml:"socket"`
}

// WaitTimeout returns the rendezvous bound as a duration.
func (s SessionConfig) WaitTimeout() time.Duration {
	return time.Duration(s.WaitTimeoutSeconds) * time.Second
}

// RelayConfig controls both sides of the WebSocket relay.
type RelayConfig struct {
	// URL is where the agent connects, e.g. ws://host:8765.
	URL string `toml:"url"`
	// ListenAddr is where `muxcmd serve` binds.
	ListenAddr string `toml:"listen_addr"`
	// ClientID is the agent's identity on the hub. Empty generates one.
	ClientID string `toml:"client_id"`
}

// ResultConfig controls result persistence.
type ResultConfig struct {
	// MirrorPath is where the last sanitized output is mirrored for
	// other processes. Empty keeps results in memory only.
	MirrorPath string `toml:"mirror_path"`
}

// ProbeConfig tunes the prompt readiness probe and settle delay.
type ProbeConfig struct {
	Attempts   int `toml:"attempts"`
	IntervalMs int `toml:"interval_ms"`
	SettleMs   int `toml:"settle_ms"`
}

// Interval returns the probe interval as a duration.
func (p ProbeConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMs) * time.Millisecond
}

// Settle returns the settle delay as a duration.
func (p ProbeConfig) Settle() time.Duration {
	return time.Duration(p.SettleMs) * time.Millisecond
}

// PolicyConfig points at an optional exit-code rules file.
type PolicyConfig struct {
	RulesFile string `toml:"rules_file"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Session: SessionConfig{
			Name:         "muxcmd",
			HistoryLimit: 50000,
		},
		Relay: RelayConfig{
			URL:        "ws://localhost:8765",
			ListenAddr: "localhost:8765",
		},
		Result: ResultConfig{
			MirrorPath: filepath.Join(stateDir(), "last-output"),
		},
		Probe: ProbeConfig{
			Attempts:   10,
			IntervalMs: 200,
			SettleMs:   100,
		},
	}
}

// DefaultPath returns ~/.config/muxcmd/config.toml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "muxcmd", "config.toml")
}

// stateDir is where muxcmd keeps runtime files (result mirror, lock).
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".local", "state", "muxcmd")
}

// LockPath returns the dispatch lock file for a session name.
func LockPath(session string) string {
	return filepath.Join(stateDir(), session+".lock")
}

// Load reads the file at path, or the default location when path is
// empty. A missing file yields defaults; a malformed one is an error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Session.Name == "" {
		return fmt.Errorf("session.name must not be empty")
	}
	if c.Session.HistoryLimit < 0 {
		return fmt.Errorf("session.history_limit must not be negative")
	}
	if c.Session.WaitTimeoutSeconds < 0 {
		return fmt.Errorf("session.wait_timeout_seconds must not be negative")
	}
	if c.Probe.Attempts < 0 {
		return fmt.Errorf("probe.attempts must not be negative")
	}
	return nil
}
