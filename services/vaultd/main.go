package vaultd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"devquestvault/core/state"
	"devquestvault/gateway/middleware"
	"devquestvault/native/vault"
	"devquestvault/observability/logging"
	telemetry "devquestvault/observability/otel"
	"devquestvault/storage"
)

// Main initialises and runs the vault daemon.
func Main() error {
	defaultPath := strings.TrimSpace(os.Getenv("VAULTD_CONFIG"))
	if defaultPath == "" {
		defaultPath = "services/vaultd/config.yaml"
	}
	var cfgPath string
	flag.StringVar(&cfgPath, "config", defaultPath, "path to vaultd configuration")
	flag.Parse()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("VAULT_ENV"))
	logger, logCloser := logging.SetupWithFile("vaultd", env, cfg.Logging.File)
	if logCloser != nil {
		defer logCloser.Close()
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("vaultd", env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := openDatabase(cfg.DataDir, cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()
	schema, err := state.EnsureSchema(db, cfg.AllowMigrate)
	if err != nil {
		return fmt.Errorf("ledger schema: %w", err)
	}

	audit, err := OpenAuditLog(cfg.Audit.DSN)
	if err != nil {
		return err
	}
	defer audit.Close()

	metrics := NewMetrics()
	pauses := NewPauseRegistry(metrics, nil)
	if cfg.PauseOnStart {
		pauses.Pause(vault.ModuleName)
	}
	svc, err := NewService(db, cfg.Rent,
		WithLogger(logger),
		WithMetrics(metrics),
		WithAudit(audit),
		WithPauses(pauses),
	)
	if err != nil {
		return err
	}

	server := NewServer(svc, ServerConfig{
		Auth: middleware.AuthConfig{
			Enabled:    true,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew.Duration,
		},
		RateLimit:     cfg.RateLimit,
		CORSOrigins:   cfg.CORSOrigins,
		ExportDir:     cfg.ExportDir,
		OperatorScope: cfg.OperatorScope,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening",
			"address", cfg.ListenAddress,
			"paused", cfg.PauseOnStart,
			"storage", cfg.Storage,
			"schema", schema.Version,
			slog.String("audit_dsn", logging.MaskDSN(cfg.Audit.DSN)),
			logging.MaskField("hmac_secret", cfg.Auth.HMACSecret),
		)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func openDatabase(dir, engine string) (storage.Database, error) {
	if strings.TrimSpace(dir) == "" {
		slog.Warn("vaultd: data_dir not set, ledger is in-memory")
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	var (
		db  storage.Database
		err error
	)
	switch engine {
	case StorageBolt:
		db, err = storage.NewBoltDB(filepath.Join(dir, "ledger.bolt"), nil)
	default:
		db, err = storage.NewLevelDB(filepath.Join(dir, "ledger"))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", engine, err)
	}
	return db, nil
}
