// Package main is the entry point for the flight-search bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flightfinder-eu/flightbot/internal/amadeus"
	"github.com/flightfinder-eu/flightbot/internal/config"
	"github.com/flightfinder-eu/flightbot/internal/gateway"
	"github.com/flightfinder-eu/flightbot/internal/handler"
	"github.com/flightfinder-eu/flightbot/internal/llm"
	"github.com/flightfinder-eu/flightbot/internal/middleware"
	natsclient "github.com/flightfinder-eu/flightbot/internal/nats"
	"github.com/flightfinder-eu/flightbot/internal/service"
	"github.com/flightfinder-eu/flightbot/internal/telegram"
	"github.com/flightfinder-eu/flightbot/pkg/logger"
	"github.com/flightfinder-eu/flightbot/pkg/tracing"
)

const serviceName = "flightbot"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.FromEnv(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("bot stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting bot")

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(shutdownCtx, tp); err != nil {
					log.Warn("failed to flush traces", zap.Error(err))
				}
			}()
		}
	}

	// A missing key is not fatal; interpretation then fails per request and
	// users get the "not understood" reply.
	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), llmAPIKey(cfg), cfg.LLMModel)
	if err != nil {
		log.Warn("LLM client unavailable, requests will not be understood", zap.Error(err))
		llmClient = nil
	} else {
		log.Info("LLM client ready", zap.String("provider", llmClient.Name()))
	}

	searchClient := amadeus.NewClient(amadeus.Config{
		BaseURL:   cfg.AmadeusBaseURL,
		APIKey:    cfg.AmadeusAPIKey,
		APISecret: cfg.AmadeusAPISecret,
	})

	interpreter := service.NewInterpreter(llmClient, log.Named("interpreter"))
	fetcher := service.NewFetcher(searchClient, service.FetcherConfig{
		Currency:   cfg.SearchCurrency,
		MaxResults: cfg.SearchMaxResults,
	}, log.Named("fetcher"))
	presenter := service.NewPresenter(llmClient, log.Named("presenter"))

	checks := map[string]handler.ReadinessCheck{}

	var publisher gateway.EventPublisher = gateway.NopPublisher{}
	var natsClient *natsclient.Client
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log.Named("nats"))
		if err != nil {
			return err
		}
		defer natsClient.Close()

		publisher = natsclient.NewEventPublisher(natsClient)
		checks["nats"] = func(context.Context) error {
			if !natsClient.IsConnected() {
				return errors.New("NATS not connected")
			}
			return nil
		}
	}

	gw := gateway.New(interpreter, fetcher, presenter, publisher, log.Named("gateway"))

	g, gctx := errgroup.WithContext(ctx)
	transports := 0

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, gw, log.Named("telegram"), cfg.TelegramPollTimeout)
		if err != nil {
			return err
		}
		g.Go(func() error { return bot.Run(gctx) })
		transports++
	} else {
		log.Warn("TELEGRAM_TOKEN not set, telegram transport disabled")
	}

	if natsClient != nil {
		responder := natsclient.NewResponder(natsClient, gw, log.Named("nats"))
		g.Go(func() error { return responder.Run(gctx) })
		transports++
	}

	if cfg.HTTPEnabled {
		server := &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      newRouter(cfg, gw, checks, log),
			ReadTimeout:  cfg.ServerReadTimeout,
			WriteTimeout: cfg.ServerWriteTimeout,
			IdleTimeout:  120 * time.Second,
		}
		g.Go(func() error {
			log.Info("server listening", zap.String("port", cfg.ServerPort))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		transports++
	}

	if transports == 0 {
		return errors.New("no transport enabled: set TELEGRAM_TOKEN, NATS_URL or HTTP_ENABLED")
	}

	return g.Wait()
}

func llmAPIKey(cfg *config.Config) string {
	if llm.Provider(cfg.LLMProvider) == llm.ProviderOpenAI {
		return cfg.OpenAIAPIKey
	}
	return cfg.AnthropicAPIKey
}

func newRouter(cfg *config.Config, gw gateway.Handler, checks map[string]handler.ReadinessCheck, log *logger.Logger) http.Handler {
	healthHandler := handler.NewHealthHandler(checks)
	searchHandler := handler.NewSearchHandler(gw, log.Named("http"))

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log.Named("http")))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RequireScope(middleware.ScopeSearch))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/search", searchHandler.Search)
	})

	return otelhttp.NewHandler(r, serviceName)
}
