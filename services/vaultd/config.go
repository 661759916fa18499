package vaultd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"devquestvault/core/state"
	"devquestvault/gateway/middleware"
	"devquestvault/observability/logging"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for vaultd.
type Config struct {
	ListenAddress string                          `yaml:"listen"`
	DataDir       string                          `yaml:"data_dir"`
	Storage       string                          `yaml:"storage"`
	AllowMigrate  bool                            `yaml:"allow_migrate"`
	Rent          state.RentParams                `yaml:"rent"`
	Auth          AuthConfig                      `yaml:"auth"`
	RateLimit     map[string]middleware.RateLimit `yaml:"rate_limit"`
	CORSOrigins   []string                        `yaml:"cors_origins"`
	Audit         AuditConfig                     `yaml:"audit"`
	ExportDir     string                          `yaml:"export_dir"`
	PauseOnStart  bool                            `yaml:"pause_on_start"`
	Logging       LoggingConfig                   `yaml:"logging"`
	OperatorScope string                          `yaml:"operator_scope"`
}

// Ledger storage engines accepted by the storage key.
const (
	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"
)

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	HMACSecret     string   `yaml:"hmac_secret"`
	HMACSecretFile string   `yaml:"hmac_secret_file"`
	HMACSecretEnv  string   `yaml:"hmac_secret_env"`
	Issuer         string   `yaml:"issuer"`
	Audience       string   `yaml:"audience"`
	ClockSkew      Duration `yaml:"clock_skew"`
}

// AuditConfig selects the audit store. DSNs starting with postgres:// or
// postgresql:// use PostgreSQL; anything else is a sqlite path or DSN.
type AuditConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig configures the optional rotating log file.
type LoggingConfig struct {
	File logging.FileConfig `yaml:"file"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7090"
	}
	if cfg.Storage == "" {
		cfg.Storage = StorageLevelDB
	}
	defaults := state.DefaultRentParams()
	if cfg.Rent.PerByte == 0 {
		cfg.Rent.PerByte = defaults.PerByte
	}
	if cfg.Rent.ExemptionBytes == 0 {
		cfg.Rent.ExemptionBytes = defaults.ExemptionBytes
	}
	if cfg.Rent.Multiplier == 0 {
		cfg.Rent.Multiplier = defaults.Multiplier
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "vaultd"
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = map[string]middleware.RateLimit{
			routeGroupVaults: {RatePerSecond: 20, Burst: 40},
			routeGroupReads:  {RatePerSecond: 50, Burst: 100},
			routeGroupAdmin:  {RatePerSecond: 2, Burst: 5},
		}
	}
	if strings.TrimSpace(cfg.Audit.DSN) == "" {
		if cfg.DataDir != "" {
			cfg.Audit.DSN = filepath.Join(cfg.DataDir, "audit.db")
		} else {
			cfg.Audit.DSN = "file:vaultd-audit?mode=memory&cache=shared"
		}
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
		if cfg.DataDir != "" {
			cfg.ExportDir = filepath.Join(cfg.DataDir, "exports")
		}
	}
	if cfg.OperatorScope == "" {
		cfg.OperatorScope = "vault:operator"
	}
}

func validateConfig(cfg Config) error {
	switch cfg.Storage {
	case StorageLevelDB, StorageBolt:
	default:
		return fmt.Errorf("unsupported storage %q", cfg.Storage)
	}
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth hmac secret must be configured")
	}
	if len(strings.TrimSpace(cfg.Auth.HMACSecret)) < 16 {
		return fmt.Errorf("auth hmac secret must be at least 16 bytes")
	}
	for group, limit := range cfg.RateLimit {
		if limit.RatePerSecond < 0 || limit.Burst < 0 {
			return fmt.Errorf("rate_limit %s: values must not be negative", group)
		}
	}
	return nil
}

func (a *AuthConfig) normalise() error {
	if a == nil {
		return fmt.Errorf("auth configuration missing")
	}
	a.HMACSecret = strings.TrimSpace(a.HMACSecret)
	a.HMACSecretEnv = strings.TrimSpace(a.HMACSecretEnv)
	a.HMACSecretFile = strings.TrimSpace(a.HMACSecretFile)
	if a.HMACSecret != "" {
		return nil
	}
	switch {
	case a.HMACSecretEnv != "":
		value := strings.TrimSpace(os.Getenv(a.HMACSecretEnv))
		if value == "" {
			return fmt.Errorf("hmac_secret_env %s is empty", a.HMACSecretEnv)
		}
		a.HMACSecret = value
	case a.HMACSecretFile != "":
		contents, err := os.ReadFile(a.HMACSecretFile)
		if err != nil {
			return fmt.Errorf("read hmac_secret_file: %w", err)
		}
		a.HMACSecret = strings.TrimSpace(string(contents))
	default:
		return fmt.Errorf("hmac_secret is required")
	}
	return nil
}
