package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nupi-ai/tts-relay-polly/internal/config"
	"github.com/nupi-ai/tts-relay-polly/internal/health"
	"github.com/nupi-ai/tts-relay-polly/internal/httpapi"
	"github.com/nupi-ai/tts-relay-polly/internal/polly"
	"github.com/nupi-ai/tts-relay-polly/internal/relay"
	"github.com/nupi-ai/tts-relay-polly/internal/serviceinfo"
	"github.com/nupi-ai/tts-relay-polly/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Loader{EnvFile: ".env"}.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting relay",
		"service", serviceinfo.Info.Name,
		"version", serviceinfo.Version(),
		"listen_addr", cfg.ListenAddr,
		"health_listen_addr", cfg.HealthListenAddr,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"static_credentials", cfg.StaticCredentials(),
		"stub_provider", cfg.UseStubProvider,
		"default_voice_id", cfg.DefaultVoiceID,
		"provider_timeout", cfg.ProviderTimeout.String(),
		"provider_max_attempts", cfg.ProviderMaxAttempts,
	)

	recorder := telemetry.NewRecorder(logger)

	// Bind before the provider is ready so probes get an answer immediately.
	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to bind listener", "error", err)
		os.Exit(1)
	}
	logger.Info("listener bound", "addr", lis.Addr().String())

	api := httpapi.New(cfg, logger)
	serverErr := make(chan error, 2)
	go func() {
		if err := api.Serve(lis); err != nil {
			serverErr <- err
		}
	}()

	var healthSrv *health.Server
	if cfg.HealthListenAddr != "" {
		healthLis, err := net.Listen("tcp", cfg.HealthListenAddr)
		if err != nil {
			logger.Error("failed to bind health listener", "error", err)
			os.Exit(1)
		}
		healthSrv = health.New(logger)
		go func() {
			if err := healthSrv.Serve(healthLis); err != nil {
				serverErr <- err
			}
		}()
		logger.Info("health server started (NOT_SERVING while initializing)", "addr", healthLis.Addr().String())
	}

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize provider", "error", err)
		os.Exit(1)
	}

	api.SetService(relay.New(cfg, logger, provider, recorder))
	if healthSrv != nil {
		healthSrv.SetServing(true)
	}
	logger.Info("relay ready to serve requests")

	select {
	case err := <-serverErr:
		logger.Error("server terminated with error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("shutdown requested")
	if healthSrv != nil {
		healthSrv.Stop(shutdownTimeout)
	}
	if err := api.Shutdown(shutdownTimeout); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("relay stopped")
}

func newProvider(ctx context.Context, cfg config.Config, logger *slog.Logger) (polly.Provider, error) {
	if cfg.UseStubProvider {
		logger.Info("using STUB provider, responses are deterministic and NOT from AWS Polly")
		return polly.NewStubProvider(logger), nil
	}
	client, err := polly.NewClient(ctx, providerSettings(cfg))
	if err != nil {
		return nil, err
	}
	logger.Info("AWS Polly client initialized")
	return client, nil
}

func providerSettings(cfg config.Config) polly.Settings {
	return polly.Settings{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SessionToken:    cfg.SessionToken,
		Endpoint:        cfg.Endpoint,
		MaxAttempts:     cfg.ProviderMaxAttempts,
	}
}

func newLogger(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler)
}

func parseLevel(value string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
