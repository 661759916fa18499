package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"devquestvault/core/state"
	"devquestvault/gateway/middleware"
	"devquestvault/services/vaultd"
	"devquestvault/storage"
)

const testSecret = "cli-test-secret-0123456789"

func setupCLI(t *testing.T) string {
	t.Helper()
	svc, err := vaultd.NewService(storage.NewMemDB(), state.DefaultRentParams())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	server := vaultd.NewServer(svc, vaultd.ServerConfig{
		Auth: middleware.AuthConfig{Enabled: true, HMACSecret: testSecret, Audience: "vaultd"},
	}, nil)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cli.toml")
	body := "Endpoint = \"" + ts.URL + "\"\nKeystorePath = \"" + filepath.Join(dir, "key.json") + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(passphraseEnv, "cli-passphrase")
	t.Setenv("VAULT_HMAC_SECRET", testSecret)
	return cfgPath
}

func runCLI(t *testing.T, cfgPath string, args ...string) (int, string, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run(append([]string{"--config", cfgPath}, args...), stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLIVaultRoundTrip(t *testing.T) {
	cfgPath := setupCLI(t)

	code, out, errOut := runCLI(t, cfgPath, "keygen", "--light")
	if code != 0 {
		t.Fatalf("keygen failed: %s", errOut)
	}
	if !strings.HasPrefix(out, "identity: dqv1") {
		t.Fatalf("unexpected keygen output %q", out)
	}

	code, out, errOut = runCLI(t, cfgPath, "address")
	if code != 0 {
		t.Fatalf("address failed: %s", errOut)
	}
	me := strings.TrimSpace(out)

	if code, _, errOut = runCLI(t, cfgPath, "keygen", "--light"); code == 0 || !strings.Contains(errOut, "already exists") {
		t.Fatalf("expected keygen to refuse overwrite, got %d %q", code, errOut)
	}

	if code, _, errOut = runCLI(t, cfgPath, "admin", "credit", "--account", me, "--amount", "10000000"); code != 0 {
		t.Fatalf("credit failed: %s", errOut)
	}
	if code, _, errOut = runCLI(t, cfgPath, "init"); code != 0 {
		t.Fatalf("init failed: %s", errOut)
	}
	if code, _, errOut = runCLI(t, cfgPath, "deposit", "--amount", "1000"); code != 0 {
		t.Fatalf("deposit failed: %s", errOut)
	}

	code, out, errOut = runCLI(t, cfgPath, "show")
	if code != 0 {
		t.Fatalf("show failed: %s", errOut)
	}
	var view struct {
		Admin   string `json:"admin"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode show output: %v", err)
	}
	reserve := state.DefaultRentParams().MinimumBalance(660)
	if view.Admin != me {
		t.Fatalf("unexpected admin %s", view.Admin)
	}
	if want := reserve + 1000; view.Balance != formatUint(want) {
		t.Fatalf("unexpected custody balance %s, want %d", view.Balance, want)
	}

	code, _, errOut = runCLI(t, cfgPath, "init")
	if code == 0 || !strings.Contains(errOut, "AlreadyInitialized") {
		t.Fatalf("expected AlreadyInitialized, got %d %q", code, errOut)
	}

	if code, _, errOut = runCLI(t, cfgPath, "close"); code != 0 {
		t.Fatalf("close failed: %s", errOut)
	}
	code, out, _ = runCLI(t, cfgPath, "balance", "--account", me)
	if code != 0 || !strings.Contains(out, `"balance": "10000000"`) {
		t.Fatalf("unexpected balance after close: %q", out)
	}
}

func TestCLIArgValidation(t *testing.T) {
	cfgPath := setupCLI(t)
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown command", []string{"launch"}, "Unknown command: launch"},
		{"missing payee", []string{"add-payee"}, "--payee is required"},
		{"bad payee", []string{"add-payee", "--payee", "dqv1xyz"}, "invalid --payee"},
		{"missing amount", []string{"deposit"}, "--amount is required"},
		{"claim needs vault", []string{"claim"}, "--vault is required"},
		{"positional", []string{"init", "extra"}, "unexpected positional arguments"},
		{"unknown admin", []string{"admin", "reboot"}, "Unknown admin subcommand: reboot"},
		{"balance both", []string{"balance", "--vault", "a", "--account", "b"}, "either --vault or --account"},
		{"no keystore", []string{"address"}, "run vault-cli keygen"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, cfgPath, tc.args...)
			if code != 1 {
				t.Fatalf("unexpected exit code %d", code)
			}
			if out != "" {
				t.Fatalf("expected empty stdout, got %q", out)
			}
			if !strings.Contains(errOut, tc.wantErr) {
				t.Fatalf("stderr %q does not contain %q", errOut, tc.wantErr)
			}
		})
	}
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
