// Package config provides layered configuration loading for toechat.
// Values are resolved with the priority: environment variables > local .env >
// config-dir .env > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"toechat/internal/logger"
	"toechat/pkg/chattypes"
)

// Env variable names understood by toechat. All settings use the TOECHAT_
// prefix.
const (
	EnvAPIURL   = "TOECHAT_API_URL"
	EnvAPIToken = "TOECHAT_API_TOKEN"
	EnvPremium  = "TOECHAT_PREMIUM"
	EnvTimeout  = "TOECHAT_TIMEOUT_SECONDS"
	EnvCategory = "TOECHAT_DEFAULT_CATEGORY"
)

// Defaults applied before any file or environment source.
const (
	DefaultBaseURL        = "http://localhost:8000/api/v1"
	DefaultTimeoutSeconds = 30
)

// Config holds the resolved client settings.
type Config struct {
	BaseURL         string
	APIToken        string
	Premium         bool
	RequestTimeout  time.Duration
	DefaultCategory chattypes.Category

	// Loaded .env files, for diagnostics.
	ConfigEnvPath string
	LocalEnvPath  string
}

// Load resolves configuration from defaults, ~/.toechat/.env, ./.env, and the
// process environment, in increasing priority order.
func Load() (*Config, error) {
	values := map[string]string{
		EnvAPIURL:   DefaultBaseURL,
		EnvTimeout:  strconv.Itoa(DefaultTimeoutSeconds),
		EnvCategory: string(chattypes.CategoryNormal),
	}

	cfg := &Config{}

	// Config-dir .env is optional; a missing file is not an error.
	if configDir, err := userConfigDir(); err == nil {
		envPath := filepath.Join(configDir, ".env")
		if loaded, err := mergeDotEnv(values, envPath); err != nil {
			return nil, err
		} else if loaded {
			cfg.ConfigEnvPath = envPath
		}
	}

	// Local .env overrides the config-dir one.
	if loaded, err := mergeDotEnv(values, ".env"); err != nil {
		return nil, err
	} else if loaded {
		cfg.LocalEnvPath = ".env"
	}

	// Process environment wins over both files.
	for _, key := range []string{EnvAPIURL, EnvAPIToken, EnvPremium, EnvTimeout, EnvCategory} {
		if v := os.Getenv(key); v != "" {
			values[key] = v
		}
	}

	cfg.BaseURL = strings.TrimSuffix(values[EnvAPIURL], "/")
	cfg.APIToken = values[EnvAPIToken]
	cfg.Premium = parseBool(values[EnvPremium])

	seconds, err := strconv.Atoi(values[EnvTimeout])
	if err != nil || seconds <= 0 {
		return nil, fmt.Errorf("invalid %s value %q", EnvTimeout, values[EnvTimeout])
	}
	cfg.RequestTimeout = time.Duration(seconds) * time.Second

	category := chattypes.Category(strings.ToLower(values[EnvCategory]))
	if !category.Valid() {
		return nil, fmt.Errorf("invalid %s value %q", EnvCategory, values[EnvCategory])
	}
	cfg.DefaultCategory = category

	logger.Debug("Configuration loaded",
		"base_url", cfg.BaseURL,
		"premium", cfg.Premium,
		"timeout", cfg.RequestTimeout.String(),
		"default_category", string(cfg.DefaultCategory),
		"config_env", cfg.ConfigEnvPath,
		"local_env", cfg.LocalEnvPath)

	return cfg, nil
}

// userConfigDir returns the toechat configuration directory (~/.toechat).
func userConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".toechat"), nil
}

// mergeDotEnv loads envPath into values when the file exists. Returns whether
// the file was loaded.
func mergeDotEnv(values map[string]string, envPath string) (bool, error) {
	data, err := os.ReadFile(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", envPath, err)
	}

	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", envPath, err)
	}

	for key, value := range envMap {
		if strings.HasPrefix(key, "TOECHAT_") {
			values[key] = value
		}
	}
	return true, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
