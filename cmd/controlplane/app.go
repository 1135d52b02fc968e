package main

import (
	"context"
	"fmt"
	"log"

	"github.com/getsentry/sentry-go"

	"github.com/triageops/controlplane/internal/agent"
	"github.com/triageops/controlplane/internal/agent/tools"
	"github.com/triageops/controlplane/internal/auth"
	"github.com/triageops/controlplane/internal/client"
	"github.com/triageops/controlplane/internal/config"
	"github.com/triageops/controlplane/internal/embedding"
	"github.com/triageops/controlplane/internal/engine"
	"github.com/triageops/controlplane/internal/executor"
	"github.com/triageops/controlplane/internal/ingress"
	"github.com/triageops/controlplane/internal/metrics"
	"github.com/triageops/controlplane/internal/registry"
	"github.com/triageops/controlplane/internal/sink"
	"github.com/triageops/controlplane/internal/store"
)

// app bundles every long-lived component the serve and reconcile-once
// commands share, so each command only decides which of these to start.
type app struct {
	cfg      config.Config
	store    store.Store
	registry *registry.Registry
	engine   *engine.Engine
	ingress  *ingress.Dispatcher
	auth     *auth.Service
	metrics  *metrics.Registry
	sentryOK bool
}

// buildApp constructs every component of the control plane from cfg, but
// starts none of them: callers decide what to run (serve starts the
// engine workers, HTTP server, and controller loop; reconcile-once runs
// reconciliation alone and exits).
func buildApp(ctx context.Context, cfg config.Config, kubeconfigFlag string) (*app, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := registry.New(st)
	if err := reg.Rehydrate(ctx); err != nil {
		return nil, fmt.Errorf("rehydrate registry: %w", err)
	}

	authSvc, err := auth.NewService(st, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}
	if cfg.Auth.AdminUsername != "" && cfg.Auth.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			return nil, fmt.Errorf("ensure admin user: %w", err)
		}
	}

	clientset, err := buildKubeClient(kubeconfigFlag)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes client: %w", err)
	}

	provider, err := buildProvider(cfg.Agent)
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}

	toolRegistry := tools.NewRegistry(
		tools.NewKubectlTool(clientset),
		tools.NewPromQLTool(cfg.Agent.Endpoint),
		tools.NewCurlTool(),
	)

	safety := agent.NewSafetyValidator(agent.DefaultSafetyConfig())
	runtime := agent.NewRuntime(provider, safety, cfg.Agent.MaxIterations, cfg.Agent.Timeout)

	var embeddings executor.SimilarIncidentIndex
	if cfg.Embedding.APIKey != "" {
		embedClient, err := embedding.NewClient(ctx, cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("build embedding client: %w", err)
		}
		embeddings = embedding.NewService(embedClient, st)
	}

	podRunner := client.NewPodRunner(clientset, "default", "bitnami/kubectl:latest")
	exec := executor.New(podRunner, executor.AgentDispatch{
		Runtime:    runtime,
		Registry:   toolRegistry,
		Embeddings: embeddings,
	})

	// engine and sink.Dispatcher depend on each other (engine dispatches
	// to sinks on completion; a "workflow" sink re-enqueues into the
	// engine), so the engine is built first with sinks wired in after.
	eng := engine.New(st, exec, nil, cfg.Engine.QueueCapacity, cfg.Engine.Workers)
	sinkDispatcher := sink.NewDispatcher(reg, st, eng)
	eng.SetSinks(sinkDispatcher)

	ingressDispatcher := ingress.NewDispatcher(reg, st, eng, cfg.Engine.DedupWindow)

	metricsReg := metrics.New()

	sentryOK := false
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			log.Printf("sentry init failed, continuing without it: %v", err)
		} else {
			sentryOK = true
		}
	}

	return &app{
		cfg:      cfg,
		store:    st,
		registry: reg,
		engine:   eng,
		ingress:  ingressDispatcher,
		auth:     authSvc,
		metrics:  metricsReg,
		sentryOK: sentryOK,
	}, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.Postgres.DatabaseURL == "" && cfg.Postgres.User == "" {
		log.Println("no postgres configuration found, using the in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.NewPostgresStore(ctx, cfg.Postgres)
}

func buildProvider(cfg config.AgentConfig) (agent.LLMProvider, error) {
	switch cfg.Provider {
	case "anthropic":
		return agent.NewAnthropicProvider(cfg.APIKey, cfg.Model, cfg.Endpoint), nil
	case "openai":
		return agent.NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.Endpoint), nil
	case "mock", "":
		return agent.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
}
