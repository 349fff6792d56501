package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sprobst76/vibedterm-sub001/internal/auth"
	"github.com/sprobst76/vibedterm-sub001/internal/logging"
	"github.com/sprobst76/vibedterm-sub001/internal/server"
	"github.com/sprobst76/vibedterm-sub001/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to vaultd config (yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "vaultd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := buildRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	priv, _, err := auth.GenerateEd25519()
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}
	signer := auth.NewJWTSigner(priv, cfg.JWTIssuer, cfg.TokenTTL)

	if cfg.DevOwner != "" {
		device := cfg.DevDevice
		if device == "" {
			device = "dev-device"
		}
		token, exp, err := signer.IssueToken(cfg.DevOwner, device)
		if err != nil {
			return err
		}
		log.Warn("dev token issued",
			zap.String("owner", cfg.DevOwner),
			zap.String("device", device),
			zap.Time("expires", exp),
			zap.String("token", token))
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.New(cfg, repo, signer, log).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("storage", cfg.Storage))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildRepository(ctx context.Context, cfg server.Config, log *zap.Logger) (storage.VaultRepository, func(), error) {
	switch cfg.Storage {
	case "memory":
		log.Warn("memory storage configured, vaults will not survive a restart")
		return storage.NewMemoryRepository(), func() {}, nil
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		repo, err := storage.NewMongoRepository(connectCtx, cfg.MongoURI, cfg.MongoDB, cfg.Collection)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		cleanup := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = repo.Close(closeCtx)
		}
		return repo, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
