package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/triageops/controlplane/internal/config"
	"github.com/triageops/controlplane/internal/controller"
	"github.com/triageops/controlplane/internal/handler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane's API, workflow engine, and controllers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := config.Load()

		application, err := buildApp(ctx, cfg, kubeconfig)
		if err != nil {
			return err
		}

		application.engine.Start(ctx)

		mgr := controller.NewManager(application.registry)
		go mgr.Run(ctx)

		router := handler.NewRouter(handler.Deps{
			Auth:       application.auth,
			Registry:   application.registry,
			Store:      application.store,
			Ingress:    application.ingress,
			Metrics:    application.metrics,
			RunStream:  application.engine,
			Engine:     application.engine,
			SentryUsed: application.sentryOK,
		}, cfg.HTTP.AllowedOrigins)

		log.Printf("listening on %s", cfg.HTTP.Addr)
		return runHTTPServer(ctx, cfg.HTTP.Addr, router)
	},
}
