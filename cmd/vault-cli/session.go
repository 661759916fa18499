package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"devquestvault/cmd/internal/passphrase"
	"devquestvault/config"
	"devquestvault/crypto"
	"devquestvault/gateway/middleware"
)

type cliEnv struct {
	cfg        *config.Config
	passphrase *passphrase.Source
	httpClient *http.Client
	now        func() time.Time
}

func newCLIEnv(cfg *config.Config) *cliEnv {
	return &cliEnv{
		cfg:        cfg,
		passphrase: passphrase.NewSource(passphraseEnv, "vault keystore"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

func (e *cliEnv) loadKey() (*crypto.PrivateKey, error) {
	if _, err := os.Stat(e.cfg.KeystorePath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("keystore %s not found; run vault-cli keygen", e.cfg.KeystorePath)
	}
	pass, err := e.passphrase.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(e.cfg.KeystorePath, pass)
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	return key, nil
}

func (e *cliEnv) identity() ([32]byte, error) {
	key, err := e.loadKey()
	if err != nil {
		return [32]byte{}, err
	}
	return key.PubKey().Address().Identity(), nil
}

func (e *cliEnv) mintToken(scopes []string) (string, error) {
	id, err := e.identity()
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(os.Getenv(e.cfg.SecretEnv))
	if secret == "" {
		return "", fmt.Errorf("%s must hold the vaultd HMAC secret", e.cfg.SecretEnv)
	}
	ttl, err := e.cfg.TTL()
	if err != nil {
		return "", err
	}
	return middleware.SignToken(secret, middleware.TokenRequest{
		Subject:  id,
		Issuer:   e.cfg.Issuer,
		Audience: e.cfg.Audience,
		Scopes:   scopes,
		TTL:      ttl,
		Now:      e.now(),
	})
}

func (e *cliEnv) client(scopes ...string) (*apiClient, error) {
	token, err := e.mintToken(scopes)
	if err != nil {
		return nil, err
	}
	return &apiClient{endpoint: e.cfg.Endpoint, token: token, http: e.httpClient}, nil
}

func (e *cliEnv) anonymousClient() *apiClient {
	return &apiClient{endpoint: e.cfg.Endpoint, http: e.httpClient}
}
