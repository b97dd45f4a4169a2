package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/stackzner/cmd/stackzner/handlers"
)

// Destroy returns the destroy command.
//
// The destroy command removes the deployment's resources from Hetzner
// Cloud in reverse dependency order: pool rules and instances first,
// networks and storage last. Missing resources are skipped, and a failed
// delete does not stop the remaining teardown.
func Destroy() *cobra.Command {
	var opts handlers.DestroyOptions

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the deployment and all its resources",
		Long: `Destroy removes all of the deployment's resources from Hetzner Cloud.

Every resource the manifest declares is checked and, if present, deleted in
reverse dependency order. Stored artifact payloads and their bucket are
removed as well.

Example:
  stackzner destroy --yes

WARNING: This operation is irreversible. All deployment data will be lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: stackzner.yaml)")
	cmd.Flags().StringVarP(&opts.ManifestPath, "manifest", "m", "", "Path to deployment manifest (default: deployment.yaml)")
	cmd.Flags().BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&opts.NoTUI, "no-tui", false, "Disable the live dashboard")

	return cmd
}
