package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/joshsymonds/vacationd/internal/config"
	"github.com/joshsymonds/vacationd/internal/credential"
	gc "github.com/joshsymonds/vacationd/internal/gmail"
	"github.com/joshsymonds/vacationd/internal/rate"
	"github.com/joshsymonds/vacationd/internal/reply"
	"github.com/joshsymonds/vacationd/internal/responder"
	"github.com/joshsymonds/vacationd/internal/runtime"
	"github.com/joshsymonds/vacationd/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flags := pflag.NewFlagSet("vacationd", pflag.ContinueOnError)
	config.Flags(flags)
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	cfg, err := config.FromFlags(flags)
	if err != nil {
		runtime.DefaultLogger().Error("vacationd: invalid configuration", "error", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("vacationd failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := runtime.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	slog.SetDefault(logger)

	store, err := tokenStore(cfg)
	if err != nil {
		return err
	}
	auth := &runtime.Authenticator{
		CredentialsFile: cfg.CredentialsFile,
		Store:           store,
		CallbackAddr:    cfg.AuthCallbackAddr,
		Log:             logger,
	}

	var limiter rate.Limiter = rate.Unlimited{}
	if cfg.RPS > 0 {
		limiter = rate.NewTokenBucket(cfg.RPS, cfg.RPS)
	}

	connect := func(ctx context.Context) (gc.Client, error) {
		hc, err := auth.Client(ctx)
		if err != nil {
			return nil, err
		}
		return runtime.NewGmailClient(ctx, hc, limiter)
	}

	svc := responder.NewService(ctx, connect, cfg.LabelName, logger, responder.Options{
		Interval:      cfg.Interval(),
		Drafter:       reply.Drafter{Body: cfg.ReplyBody},
		SkipAutomated: cfg.SkipAutomated,
		PollOnStart:   cfg.PollOnStart,
	})

	if cfg.Autostart {
		if _, err := svc.Start(ctx); err != nil {
			return fmt.Errorf("autostart: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.NewServer(svc, logger, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "label", cfg.LabelName)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if _, err := svc.Stop(shutdownCtx); err != nil &&
		!errors.Is(err, responder.ErrNotStarted) && !errors.Is(err, responder.ErrNotRunning) {
		logger.Warn("stop auto-reply", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

func tokenStore(cfg config.Config) (credential.TokenStore, error) {
	if cfg.TokenStore == config.StoreKeyring {
		ring, err := credential.OpenKeyring(filepath.Dir(cfg.TokenFile))
		if err != nil {
			return nil, err
		}
		return credential.NewKeyringStore(ring), nil
	}
	return credential.FileStore{Path: cfg.TokenFile}, nil
}
