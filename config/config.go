package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the vault-cli client configuration.
type Config struct {
	Endpoint     string `toml:"Endpoint"`
	KeystorePath string `toml:"KeystorePath"`
	Issuer       string `toml:"Issuer"`
	Audience     string `toml:"Audience"`
	SecretEnv    string `toml:"SecretEnv"`
	TokenTTL     string `toml:"TokenTTL"`
}

const (
	DefaultEndpoint  = "http://localhost:7090"
	DefaultAudience  = "vaultd"
	DefaultSecretEnv = "VAULT_HMAC_SECRET"
	DefaultTokenTTL  = 15 * time.Minute
)

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
	}
	applyDefaults(path, cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(path string, cfg *Config) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if strings.TrimSpace(cfg.KeystorePath) == "" {
		cfg.KeystorePath = defaultKeystorePath(path)
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		cfg.Audience = DefaultAudience
	}
	if strings.TrimSpace(cfg.SecretEnv) == "" {
		cfg.SecretEnv = DefaultSecretEnv
	}
}

// Validate checks the endpoint and token lifetime.
func Validate(cfg *Config) error {
	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config: invalid Endpoint %q", cfg.Endpoint)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("config: Endpoint scheme must be http or https")
	}
	if _, err := cfg.TTL(); err != nil {
		return err
	}
	return nil
}

// TTL returns the lifetime of minted tokens.
func (c *Config) TTL() (time.Duration, error) {
	raw := strings.TrimSpace(c.TokenTTL)
	if raw == "" {
		return DefaultTokenTTL, nil
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid TokenTTL: %w", err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("config: TokenTTL must be positive")
	}
	return ttl, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Endpoint:     DefaultEndpoint,
		KeystorePath: defaultKeystorePath(path),
		Audience:     DefaultAudience,
		SecretEnv:    DefaultSecretEnv,
		TokenTTL:     DefaultTokenTTL.String(),
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "vault.keystore")
}
