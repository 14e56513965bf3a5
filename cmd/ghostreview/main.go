package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Embed CA roots so the binary works in scratch containers.
	_ "golang.org/x/crypto/x509roots/fallback"

	githubadapter "github.com/ghostfounder/ghostreview/internal/adapter/driven/github"
	openaiadapter "github.com/ghostfounder/ghostreview/internal/adapter/driven/openai"
	resendadapter "github.com/ghostfounder/ghostreview/internal/adapter/driven/resend"
	sqliteadapter "github.com/ghostfounder/ghostreview/internal/adapter/driven/sqlite"
	httphandler "github.com/ghostfounder/ghostreview/internal/adapter/driving/http"
	"github.com/ghostfounder/ghostreview/internal/application"
	"github.com/ghostfounder/ghostreview/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"openai_model", cfg.OpenAIModel,
		"webhook_url", cfg.WebhookURL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	projectStore := sqliteadapter.NewProjectRepo(db)
	runStore := sqliteadapter.NewRunRepo(db)
	host := githubadapter.NewClient(cfg.GitHubToken)
	analyzer := openaiadapter.NewAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	mailer := resendadapter.NewMailer(cfg.ResendAPIKey, cfg.MailFrom)

	// 6. Wire application services.
	pipeline := application.NewPipelineService(runStore, projectStore, host, analyzer, mailer)
	projectSvc := application.NewProjectService(projectStore, host, cfg.WebhookURL)

	// 7. Wire the HTTP driving adapter.
	logger := slog.Default()
	handler := httphandler.NewHandler(projectStore, runStore, projectSvc, pipeline, logger)
	webhooks := httphandler.NewWebhookHandler(projectStore, pipeline, logger)
	mux := httphandler.NewServeMux(handler, webhooks, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
		// Webhook-triggered analysis runs synchronously inside the request,
		// so the write timeout must cover a full pipeline execution.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ghostreview started", "listen_addr", cfg.ListenAddr)
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	// 8. Wait for shutdown signal or server failure.
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	// 9. Graceful shutdown with a drain window for in-flight analyses.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}
