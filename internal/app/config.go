package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Config carries everything the server process needs at startup. Values
// resolve in three layers: defaults, then an optional YAML file, then
// environment overrides.
type Config struct {
	// Addr is the fixed TCP port all table clients dial.
	Addr string `yaml:"addr"`
	// WSAddr enables the websocket bridge when non-empty.
	WSAddr string `yaml:"ws_addr"`
	// AccountsPath is the flat account-record file.
	AccountsPath string `yaml:"accounts_path"`
	// WatchAccounts reloads the store when the file is edited on disk.
	WatchAccounts bool `yaml:"watch_accounts"`

	BroadcastQueue   int `yaml:"broadcast_queue"`
	SubscriberBuffer int `yaml:"subscriber_buffer"`

	// LogJSONPath adds the newline-delimited JSON event sink.
	LogJSONPath string `yaml:"log_json_path"`
}

// DefaultConfig matches what existing clients expect: port 8001, accounts under
// data/.
func DefaultConfig() Config {
	return Config{
		Addr:             ":8001",
		AccountsPath:     "data/accounts.txt",
		WatchAccounts:    true,
		BroadcastQueue:   256,
		SubscriberBuffer: 64,
	}
}

// LoadConfig resolves the layered configuration. A missing file at path is
// fine; a malformed one is an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults plus env is a complete configuration.
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TABLETOP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("TABLETOP_WS_ADDR"); v != "" {
		cfg.WSAddr = v
	}
	if v := os.Getenv("TABLETOP_ACCOUNTS"); v != "" {
		cfg.AccountsPath = v
	}
	if v := os.Getenv("TABLETOP_LOG_JSON"); v != "" {
		cfg.LogJSONPath = v
	}
	if v := os.Getenv("TABLETOP_WATCH_ACCOUNTS"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.WatchAccounts = parsed
		}
	}
}
