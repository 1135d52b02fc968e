package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/triageops/controlplane/internal/config"
	"github.com/triageops/controlplane/internal/controller"
)

var reconcileOnceCmd = &cobra.Command{
	Use:   "reconcile-once",
	Short: "Reconcile every Source/Workflow/Sink once and exit, without starting the API or engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.Load()

		application, err := buildApp(ctx, cfg, kubeconfig)
		if err != nil {
			return err
		}

		mgr := controller.NewManager(application.registry)
		mgr.ReconcileOnce()
		log.Println("reconcile-once complete")
		return nil
	},
}
