// Package config loads the optional habitsync.toml file and resolves the
// effective settings from file, environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/julianstephens/habitsync/internal/constants"
)

// Duration wraps time.Duration so it can be written as "5m" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the on-disk configuration file.
type Config struct {
	User      string     `toml:"user"`
	RemoteDSN string     `toml:"remote_dsn"`
	Sync      SyncConfig `toml:"sync"`
}

type SyncConfig struct {
	WatchInterval       Duration `toml:"watch_interval"`
	WatchDebounce       Duration `toml:"watch_debounce"`
	ConnectivityTimeout Duration `toml:"connectivity_timeout"`
}

// Default returns a config populated with built-in defaults.
func Default() Config {
	return Config{
		Sync: SyncConfig{
			WatchInterval:       Duration{constants.DefaultWatchInterval},
			WatchDebounce:       Duration{constants.DefaultWatchDebounce},
			ConnectivityTimeout: Duration{constants.DefaultConnectivityTimeout},
		},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file is
// not an error. Zero durations in the file fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	path, err := ExpandPath(path)
	if err != nil {
		return cfg, err
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Default(), fmt.Errorf("unknown keys in config %s: %v", path, undecoded)
	}

	def := Default()
	if cfg.Sync.WatchInterval.Duration <= 0 {
		cfg.Sync.WatchInterval = def.Sync.WatchInterval
	}
	if cfg.Sync.WatchDebounce.Duration <= 0 {
		cfg.Sync.WatchDebounce = def.Sync.WatchDebounce
	}
	if cfg.Sync.ConnectivityTimeout.Duration <= 0 {
		cfg.Sync.ConnectivityTimeout = def.Sync.ConnectivityTimeout
	}

	if cfg.RemoteDSN != "" && HasEmbeddedPassword(cfg.RemoteDSN) {
		return Default(), fmt.Errorf("config %s: remote_dsn must not contain a password, store it with 'habitsync remote set'", path)
	}

	return cfg, nil
}

// Save writes cfg to path as TOML, creating the parent directory.
func Save(path string, cfg Config) error {
	path, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// ResolveUser picks the user from flag, then environment, then file.
func (c Config) ResolveUser(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(constants.EnvUser); env != "" {
		return env
	}
	return c.User
}

// ResolveRemoteDSN picks the remote DSN from flag, then environment, then file.
// The keyring is consulted by the caller when all three are empty.
func (c Config) ResolveRemoteDSN(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(constants.EnvRemoteDSN); env != "" {
		return env
	}
	return c.RemoteDSN
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// HasEmbeddedPassword reports whether a PostgreSQL connection string (URL or
// key=value DSN) carries a password.
func HasEmbeddedPassword(dsn string) bool {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return false
		}
		_, isSet := u.User.Password()
		return isSet
	}
	for _, pair := range strings.Fields(dsn) {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), "password") {
			return true
		}
	}
	return false
}
