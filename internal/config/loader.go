package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Loader loads configuration from environment variables. Tests can override
// Lookup to inject deterministic maps.
//
// When EnvFile is set, its values are consulted after the process environment,
// so a real variable always wins over the file. A missing file is not an error.
type Loader struct {
	Lookup  func(string) (string, bool)
	EnvFile string
}

// Load retrieves the relay configuration and validates it.
func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	lookup := l.Lookup
	if l.EnvFile != "" {
		fileEnv, err := readEnvFile(l.EnvFile)
		if err != nil {
			return Config{}, err
		}
		lookup = chainLookup(l.Lookup, fileEnv)
	}

	cfg := Config{
		ListenAddr:       DefaultListenAddr,
		CORSAllowOrigins: DefaultCORSAllowOrigins,
		DefaultVoiceID:   DefaultVoiceID,

		ProviderMaxAttempts: DefaultProviderMaxAttempts,
	}

	if raw, ok := lookup("RELAY_CONFIG"); ok && strings.TrimSpace(raw) != "" {
		if err := applyJSON(raw, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(lookup, "RELAY_LISTEN_ADDR", &cfg.ListenAddr)
	overrideString(lookup, "RELAY_HEALTH_LISTEN_ADDR", &cfg.HealthListenAddr)
	overrideString(lookup, "RELAY_LOG_LEVEL", &cfg.LogLevel)
	overrideString(lookup, "RELAY_CORS_ALLOW_ORIGINS", &cfg.CORSAllowOrigins)
	overrideString(lookup, "RELAY_DEFAULT_VOICE_ID", &cfg.DefaultVoiceID)
	overrideString(lookup, "RELAY_POLLY_ENDPOINT", &cfg.Endpoint)
	overrideString(lookup, "AWS_REGION", &cfg.Region)
	overrideString(lookup, "AWS_ACCESS_KEY_ID", &cfg.AccessKeyID)
	overrideString(lookup, "AWS_SECRET_ACCESS_KEY", &cfg.SecretAccessKey)
	overrideString(lookup, "AWS_SESSION_TOKEN", &cfg.SessionToken)

	if err := overrideBool(lookup, "RELAY_USE_STUB_PROVIDER", &cfg.UseStubProvider); err != nil {
		return Config{}, err
	}
	if err := overrideDuration(lookup, "RELAY_PROVIDER_TIMEOUT", &cfg.ProviderTimeout); err != nil {
		return Config{}, err
	}

	if err := overrideInt(lookup, "RELAY_PROVIDER_MAX_ATTEMPTS", &cfg.ProviderMaxAttempts); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func chainLookup(primary func(string) (string, bool), fallback map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}
		v, ok := fallback[key]
		return v, ok
	}
}

func applyJSON(raw string, cfg *Config) error {
	type jsonConfig struct {
		ListenAddr       string `json:"listen_addr"`
		HealthListenAddr string `json:"health_listen_addr"`
		LogLevel         string `json:"log_level"`
		CORSAllowOrigins string `json:"cors_allow_origins"`
		DefaultVoiceID   string `json:"default_voice_id"`
		ProviderTimeout  string `json:"provider_timeout"`
		MaxAttempts      *int   `json:"provider_max_attempts"`
		UseStubProvider  *bool  `json:"use_stub_provider"`
		Region           string `json:"region"`
		AccessKeyID      string `json:"access_key_id"`
		SecretAccessKey  string `json:"secret_access_key"`
		SessionToken     string `json:"session_token"`
		Endpoint         string `json:"endpoint"`
	}
	var payload jsonConfig
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return fmt.Errorf("config: decode RELAY_CONFIG: %w", err)
	}
	assignString(&cfg.ListenAddr, payload.ListenAddr)
	assignString(&cfg.HealthListenAddr, payload.HealthListenAddr)
	assignString(&cfg.LogLevel, payload.LogLevel)
	assignString(&cfg.CORSAllowOrigins, payload.CORSAllowOrigins)
	assignString(&cfg.DefaultVoiceID, payload.DefaultVoiceID)
	assignString(&cfg.Region, payload.Region)
	assignString(&cfg.AccessKeyID, payload.AccessKeyID)
	assignString(&cfg.SecretAccessKey, payload.SecretAccessKey)
	assignString(&cfg.SessionToken, payload.SessionToken)
	assignString(&cfg.Endpoint, payload.Endpoint)
	if payload.UseStubProvider != nil {
		cfg.UseStubProvider = *payload.UseStubProvider
	}
	if payload.MaxAttempts != nil {
		cfg.ProviderMaxAttempts = *payload.MaxAttempts
	}
	if payload.ProviderTimeout != "" {
		d, err := time.ParseDuration(payload.ProviderTimeout)
		if err != nil {
			return fmt.Errorf("config: decode RELAY_CONFIG provider_timeout: %w", err)
		}
		cfg.ProviderTimeout = d
	}
	return nil
}

func assignString(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = b
	return nil
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = n
	return nil
}
