package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir    string `json:"data_dir"`
	ListenAddr string `json:"listen_addr"`
	LogLevel   string `json:"log_level"`
	Database   struct {
		Path string `json:"path"`
	} `json:"database"`
	Telemetry struct {
		Enabled bool `json:"enabled"`
	} `json:"telemetry"`
	Preferences struct {
		BaseURL string `json:"base_url"`
		APIKey  string `json:"api_key"`
	} `json:"preferences"`
	History struct {
		RetentionDays    int    `json:"retention_days"`
		CleanupSchedule  string `json:"cleanup_schedule"`
		CleanupBatchSize int    `json:"cleanup_batch_size"`
	} `json:"history"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:    filepath.Join(os.Getenv("HOME"), ".coursestate"),
		ListenAddr: ":8080",
	}
	cfg.LogLevel = "info"
	cfg.Telemetry.Enabled = true
	cfg.History.RetentionDays = 730
	cfg.History.CleanupSchedule = "0 3 * * *"
	cfg.History.CleanupBatchSize = 1000

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "coursestate.db")
	}

	// Override from env (highest precedence)
	if addr := os.Getenv("COURSESTATE_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if dbPath := os.Getenv("COURSESTATE_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if baseURL := os.Getenv("USER_API_BASE_URL"); baseURL != "" {
		cfg.Preferences.BaseURL = baseURL
	}
	if apiKey := os.Getenv("USER_API_KEY"); apiKey != "" {
		cfg.Preferences.APIKey = apiKey
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config back to disk.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}

// ListValues returns the config as a flat map of dot-separated keys. When
// masked is true, secret values are partially hidden.
func ListValues(cfg *Config, masked bool) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, err
	}
	flat := Flatten(nested)
	if masked {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// SetValue sets a dot-separated key to the given value and returns the
// updated config.
func SetValue(cfg *Config, key string, value any) (*Config, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, err
	}
	flat := Flatten(nested)
	if _, ok := flat[key]; !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	flat[key] = value

	merged, err := json.Marshal(Unflatten(flat))
	if err != nil {
		return nil, err
	}
	out := &Config{}
	if err := json.Unmarshal(merged, out); err != nil {
		return nil, err
	}
	return out, nil
}
