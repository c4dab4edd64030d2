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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agentmesh/agentmesh/internal/adapter/a2aclient"
	amhttp "github.com/agentmesh/agentmesh/internal/adapter/http"
	"github.com/agentmesh/agentmesh/internal/adapter/litellm"
	amnats "github.com/agentmesh/agentmesh/internal/adapter/nats"
	"github.com/agentmesh/agentmesh/internal/adapter/otel"
	"github.com/agentmesh/agentmesh/internal/adapter/ristretto"
	"github.com/agentmesh/agentmesh/internal/config"
	"github.com/agentmesh/agentmesh/internal/directory"
	"github.com/agentmesh/agentmesh/internal/logger"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
	"github.com/agentmesh/agentmesh/internal/resilience"
	"github.com/agentmesh/agentmesh/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"llm_model", cfg.LLM.Model,
	)

	// --- Infrastructure ---

	artifacts, err := ristretto.NewStore(cfg.Cache)
	if err != nil {
		return fmt.Errorf("artifact store: %w", err)
	}
	defer artifacts.Close()

	resolver := a2aclient.NewCardResolver(cfg.Router.SendTimeout)

	dial := func(card a2a.AgentCard) directory.Transport {
		client := a2aclient.NewClient(card.URL, cfg.Router.SendTimeout)
		client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))
		return client
	}

	dir := directory.New(resolver, dial)

	// NATS broadcasting is optional; an empty URL disables it.
	var broadcaster *amnats.Broadcaster
	if cfg.NATS.URL != "" {
		broadcaster, err = amnats.Connect(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer broadcaster.Close()
		dir.SetBroadcaster(broadcaster)
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}

	// --- Services ---

	engine := litellm.New(cfg.LLM)
	engine.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout))

	sessions := service.NewSessionStore(cfg.Router.SessionHistoryCap)
	tasks := service.NewTaskStore()

	router := service.NewRouter(dir, artifacts)
	router.SetObserver(service.NewTaskUpdater(tasks))

	orch := service.NewOrchestrator(engine, router, sessions, dir, cfg.Router)
	executor := service.NewExecutor(orch, tasks)
	if broadcaster != nil {
		executor.SetBroadcaster(broadcaster)
	}

	// --- HTTP ---

	card := a2a.AgentCard{
		Name:        cfg.Card.Name,
		Description: cfg.Card.Description,
		URL:         cfg.Card.URL,
		Version:     cfg.Card.Version,
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []a2a.AgentSkill{{
			ID:          "delegate",
			Name:        "Delegate to registered agents",
			Description: "Routes a request to the registered remote agent best suited to handle it.",
			Tags:        []string{"routing", "delegation"},
		}},
	}

	handlers := amhttp.NewHandlers(dir, executor, artifacts, card)
	handlers.SetEngineHealth(engine.Healthy)

	r := chi.NewRouter()
	r.Use(amhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(amhttp.RequestID)
	r.Use(amhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(otel.Middleware("agentmesh"))

	amhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: message/stream responses stay open for the
		// length of a turn.
		IdleTimeout: 120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
