// Package config loads service configuration from compiled defaults, a
// JSON file backend, and BRAIN_* environment variables, in ascending
// precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Brain   BrainConfig
	API     APIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	MCPMode string // "stdio" or "off"
}

type StorageConfig struct {
	DataDir string
}

type BrainConfig struct {
	CollectorTimeout time.Duration
	GapThreshold     int
	MaxPromptTokens  int
	EventPollMs      int
}

type APIConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPMode: "stdio",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Brain: BrainConfig{
			CollectorTimeout: 3 * time.Second,
			GapThreshold:     30,
			MaxPromptTokens:  4000,
			EventPollMs:      500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/brain/config.json, then applies BRAIN_* environment
// overrides. A missing API token is generated and persisted on first load.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		token, err := EnsureAPIToken(b)
		if err != nil {
			return Config{}, fmt.Errorf("initializing API token: %w", err)
		}
		cfg.API.Token = token
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return cfg, nil
}

func applyBackend(cfg *Config, b Backend) error {
	if v, ok, err := b.GetInt("server.port"); err != nil {
		return err
	} else if ok {
		cfg.Server.Port = v
	}
	if v, ok, err := b.GetString("server.mcp_mode"); err != nil {
		return err
	} else if ok {
		cfg.Server.MCPMode = v
	}
	if v, ok, err := b.GetString("storage.data_dir"); err != nil {
		return err
	} else if ok {
		cfg.Storage.DataDir = v
	}
	if v, ok, err := b.GetString("brain.collector_timeout"); err != nil {
		return err
	} else if ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid brain.collector_timeout %q: %w", v, err)
		}
		cfg.Brain.CollectorTimeout = d
	}
	if v, ok, err := b.GetInt("brain.gap_threshold"); err != nil {
		return err
	} else if ok {
		cfg.Brain.GapThreshold = v
	}
	if v, ok, err := b.GetInt("brain.max_prompt_tokens"); err != nil {
		return err
	} else if ok {
		cfg.Brain.MaxPromptTokens = v
	}
	if v, ok, err := b.GetInt("brain.event_poll_ms"); err != nil {
		return err
	} else if ok {
		cfg.Brain.EventPollMs = v
	}
	if v, ok, err := b.GetString("api.token"); err != nil {
		return err
	} else if ok {
		cfg.API.Token = v
	}
	if v, ok, err := b.GetString("log.level"); err != nil {
		return err
	} else if ok {
		cfg.Log.Level = v
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BRAIN_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("BRAIN_MCP_MODE"); v != "" {
		cfg.Server.MCPMode = v
	}
	if v := os.Getenv("BRAIN_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("BRAIN_COLLECTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Brain.CollectorTimeout = d
		}
	}
	if v := os.Getenv("BRAIN_GAP_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Brain.GapThreshold = n
		}
	}
	if v := os.Getenv("BRAIN_MAX_PROMPT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Brain.MaxPromptTokens = n
		}
	}
	if v := os.Getenv("BRAIN_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("BRAIN_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
