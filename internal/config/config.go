package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	API          APIConfig      `toml:"api"`
	Organization OrgConfig      `toml:"organization"`
	Defaults     DefaultsConfig `toml:"defaults"`
	Refresh      RefreshConfig  `toml:"refresh"`
	Log          LogConfig      `toml:"log"`
}

type APIConfig struct {
	Key     string `toml:"key"`
	BaseURL string `toml:"base_url"`
}

// OrgConfig holds the organization selected at login time together with
// the membership id seeded from it. MemberID may go stale independently
// of this file; writers re-derive it when it is missing.
type OrgConfig struct {
	ID       string `toml:"id"`
	MemberID string `toml:"member_id"`
}

type DefaultsConfig struct {
	Billable bool `toml:"billable"`
}

// RefreshConfig configures the two periodic refresh triggers, in
// seconds. Zero disables a trigger.
type RefreshConfig struct {
	ActiveSeconds  int `toml:"active_seconds"`
	CatalogSeconds int `toml:"catalog_seconds"`
}

type LogConfig struct {
	Debug bool `toml:"debug"`
}

func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "https://app.solidtime.io/api",
		},
		Refresh: RefreshConfig{
			ActiveSeconds:  30,
			CatalogSeconds: 600,
		},
	}
}

func ConfigDir() (string, error) {
	if dir := os.Getenv("SOLIDTIME_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "solidtime"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOLIDTIME_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("SOLIDTIME_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("SOLIDTIME_ORGANIZATION_ID"); v != "" {
		cfg.Organization.ID = v
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// SaveSelection persists the selected organization and member id using
// a read-modify-write approach to preserve other settings.
func SaveSelection(orgID, memberID string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	cfg := make(map[string]any)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	org, ok := cfg["organization"].(map[string]any)
	if !ok {
		org = make(map[string]any)
	}
	org["id"] = orgID
	org["member_id"] = memberID
	cfg["organization"] = org

	if err := EnsureConfigDir(); err != nil {
		return err
	}

	out, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, out, 0600)
}
