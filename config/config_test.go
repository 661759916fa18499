package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "cli.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.KeystorePath != filepath.Join(dir, "nested", "vault.keystore") {
		t.Fatalf("unexpected keystore path %q", cfg.KeystorePath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if *reloaded != *cfg {
		t.Fatalf("reloaded config mismatch: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadParsesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cli.toml")
	body := `Endpoint = "https://vault.example.com/"
KeystorePath = "/keys/admin.json"
Issuer = "vault-issuer"
Audience = "custody"
SecretEnv = "CUSTODY_SECRET"
TokenTTL = "2m"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Endpoint != "https://vault.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Endpoint)
	}
	if cfg.KeystorePath != "/keys/admin.json" || cfg.Issuer != "vault-issuer" || cfg.Audience != "custody" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SecretEnv != "CUSTODY_SECRET" {
		t.Fatalf("unexpected secret env %q", cfg.SecretEnv)
	}
	ttl, err := cfg.TTL()
	if err != nil || ttl != 2*time.Minute {
		t.Fatalf("unexpected ttl %v (%v)", ttl, err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field": "Endpoint = \"http://localhost:7090\"\nSigningKey = \"abc\"\n",
		"bad scheme":    "Endpoint = \"ftp://localhost\"\n",
		"no host":       "Endpoint = \"localhost\"\n",
		"bad ttl":       "TokenTTL = \"forever\"\n",
		"negative ttl":  "TokenTTL = \"-1m\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cli.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
