// Package main wires the control plane's composition root: config,
// storage, the declarative resource registry and its controllers, the
// agent runtime and tool registry, the workflow engine, sink and ingress
// dispatch, auth, and the HTTP router, then starts them under a single
// root command. Subcommand layout follows
// den-vasyliev-agentregistry-inventory/pkg/cli/root.go's rootCmd +
// PersistentFlags + init()-registered subcommands idiom.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var kubeconfig string

var rootCmd = &cobra.Command{
	Use:   "controlplane",
	Short: "Incident response control plane",
	Long:  `controlplane runs the Source/Workflow/Sink pipeline engine and its management API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// A missing .env is not an error: production deploys set the
	// environment directly.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "path to kubeconfig (defaults to in-cluster config, then $KUBECONFIG, then ~/.kube/config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileOnceCmd)
}

func main() {
	Execute()
}
