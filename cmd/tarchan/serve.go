package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tarchan/tarchan"
	"github.com/tarchan/tarchan/config"
	tarchanhttp "github.com/tarchan/tarchan/http"
	"github.com/tarchan/tarchan/s3"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the channel server",
	Long:  `Start the tarchan HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default: :3000)")
	serveCmd.Flags().String("base-url", "", "externally advertised base URL (required)")
	serveCmd.Flags().String("endpoint", "", "object store endpoint URL")
	serveCmd.Flags().String("bucket", "", "bucket name (required)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	configFiles, _ := cmd.Flags().GetStringSlice("config")
	cfg, err := config.Load(configFiles, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := s3.NewClient(ctx, cfg.Storage.S3Config())
	if err != nil {
		return fmt.Errorf("create object store client: %w", err)
	}
	store := s3.NewStore(client, cfg.Storage.Bucket)
	slog.Info("connected to object store", "bucket", cfg.Storage.Bucket, "endpoint", cfg.Storage.Endpoint)

	registry := tarchan.NewRegistry(store, time.Duration(cfg.Registry.RefreshIntervalSeconds)*time.Second)

	// There is nothing to serve without channel data, so the first
	// refresh must succeed before the listener opens.
	snapshot, err := registry.RefreshOnce(ctx)
	if err != nil {
		return fmt.Errorf("initial channel refresh: %w", err)
	}
	slog.Info("loaded channel catalog", "channels", snapshot.Len())

	go registry.Run(ctx)

	verifier, err := buildVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	handlerConfig := tarchanhttp.HandlerConfig{
		BaseURL:    cfg.Server.BaseURL,
		PresignTTL: time.Duration(cfg.Storage.PresignTTLSeconds) * time.Second,
		Verifier:   verifier,
		CORS:       cfg.CORS,
	}
	handler := tarchanhttp.NewHandler(&handlerConfig, registry, store)

	server := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		hupCh := make(chan os.Signal, 1)
		signal.Notify(hupCh, syscall.SIGHUP)

		for {
			select {
			case <-hupCh:
				slog.Info("received SIGHUP, refreshing channels")
				registry.Poke()
			case <-sigCh:
				slog.Info("shutting down server...")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer shutdownCancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("server shutdown error", "err", err)
				}
				cancel()
				return
			}
		}
	}()

	slog.Info("starting server", "addr", cfg.Server.Listen, "base_url", cfg.Server.BaseURL,
		"auth", cfg.Auth.Enabled(), "refresh_interval", cfg.Registry.RefreshIntervalSeconds)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildVerifier returns nil when no public key is configured, which
// disables the auth gate entirely.
func buildVerifier(cfg config.AuthConfig) (tarchanhttp.RequestVerifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	pemBytes := []byte(cfg.PublicKey)
	if len(pemBytes) == 0 {
		var err error
		pemBytes, err = os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key file: %w", err)
		}
	}

	key, err := tarchan.ParsePublicKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("load auth public key: %w", err)
	}

	return tarchan.NewTokenVerifier(key), nil
}
