// Package main is the entry point for the gateway server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/config"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/entitlement"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/handler"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/knowledge"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/llm"
	natsclient "github.com/capitalize-ai/seo-assistant-gateway/internal/nats"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/orchestrator"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/prompt"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/provider"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/quota"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/store/sqlite"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/throttle"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/tools"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "seo-assistant-gateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(context.Background(), tp)
		}
	}

	// Datastore
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal("failed to open datastore", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	defer store.Close()

	// Interaction events are optional
	var (
		events        *natsclient.EventStream
		natsPinger    handler.Pinger
		toolPublisher tools.EventPublisher
		usagePub      handler.UsagePublisher
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		events = natsclient.NewEventStream(natsClient)
		if err := events.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		natsPinger = natsClient
		toolPublisher = events
		usagePub = events
	} else {
		log.Info("NATS_URL not set, interaction events disabled")
	}

	// Completion backend
	backend, err := llm.NewOpenAIClient(llm.Config{
		BaseURL:       cfg.BackendBaseURL,
		APIKey:        cfg.BackendAPIKey,
		ProbeTimeout:  cfg.ProbeTimeout,
		StreamTimeout: cfg.StreamTimeout,
	})
	if err != nil {
		log.Fatal("failed to create completion backend client", zap.Error(err))
	}

	// Tools
	seo := provider.New(provider.Config{
		BaseURL:  cfg.ProviderBaseURL,
		Login:    cfg.ProviderLogin,
		Password: cfg.ProviderPassword,
		Timeout:  cfg.ProviderTimeout,
	})
	if cfg.ProviderLogin == "" {
		log.Warn("SEO provider credentials not set, data tools will report unavailable")
	}
	catalog, err := tools.NewCatalog(seo, store, knowledge.MustLoad(), log)
	if err != nil {
		log.Fatal("failed to build tool catalog", zap.Error(err))
	}
	dispatcher := tools.NewDispatcher(catalog, toolPublisher, log, tools.DispatcherConfig{
		Timeout:     cfg.ToolTimeout,
		Concurrency: cfg.ToolConcurrency,
	})

	orch := orchestrator.New(backend, dispatcher, catalog.OpenAITools(), log, orchestrator.Config{
		StreamRetries:  cfg.StreamRetries,
		RetryBaseDelay: cfg.StreamRetryBaseDelay,
	})

	// Policy
	resolver := entitlement.NewResolver(store, log)
	ledger := quota.NewLedger(store, quota.DefaultLimits().WithOverrides(cfg.QuotaLimits))
	limiter := throttle.New(cfg.ThrottleRequests, cfg.ThrottleWindow)
	go limiter.Run(ctx, cfg.ThrottleSweepInterval)

	// Handlers
	chatHandler := handler.NewChatHandler(
		resolver,
		limiter,
		ledger,
		prompt.NewBuilder(store, catalog.Summary(), log),
		orch,
		usagePub,
		log,
		handler.ChatConfig{DefaultModel: cfg.DefaultModel, AllowedModels: cfg.AllowedModels},
	)
	router := handler.NewRouter(log, handler.RouterConfig{
		JWTSecret:           cfg.JWTSecret,
		AllowedOrigins:      cfg.AllowedOrigins,
		IPRateLimitRequests: cfg.IPRateLimitRequests,
		IPRateLimitWindow:   cfg.IPRateLimitWindow,
	},
		handler.NewHealthHandler(store, natsPinger),
		chatHandler,
		handler.NewUsageHandler(resolver, ledger, log),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
