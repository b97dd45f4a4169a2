package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/stackzner/cmd/stackzner/handlers"
)

// Plan returns the command that prints the tiered execution plan.
//
// Planning is a pure computation over the manifest: it validates the
// dependency graph and shows which resources would be realized
// concurrently, without contacting the cloud.
func Plan() *cobra.Command {
	var configPath string
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the execution plan without touching the cloud",
		Long: `Show the order resources would be realized in.

Resources in the same tier have no dependency relationship and are created
concurrently; a tier starts only after the previous one has fully settled.
The listing is deterministic for a given manifest.

Example:
  stackzner plan -m deployment.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Plan(cmd.Context(), configPath, manifestPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: stackzner.yaml)")
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to deployment manifest (default: deployment.yaml)")

	return cmd
}
