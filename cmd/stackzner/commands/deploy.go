package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/stackzner/cmd/stackzner/handlers"
)

// Deploy returns the command that provisions a deployment end to end.
//
// The command loads configuration and manifest, publishes artifact payloads,
// realizes resources tier by tier, and gates load balancer membership on
// endpoint health. Re-running it is safe: existing resources are adopted.
//
// Optional flags:
//
//	--config, -c: Path to the configuration file (default: stackzner.yaml)
//	--manifest, -m: Path to the deployment manifest (default: deployment.yaml)
//	--no-tui: Plain console output instead of the live dashboard
//
// Environment variables:
//
//	HCLOUD_TOKEN: Hetzner Cloud API token (required)
//	HETZNER_S3_ACCESS_KEY / HETZNER_S3_SECRET_KEY: object storage
//	credentials (required when the manifest declares artifacts or
//	storage resources)
func Deploy() *cobra.Command {
	var opts handlers.DeployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update the deployment",
		Long: `Create or update your deployment.

This command publishes artifact payloads, provisions all declared resources
on Hetzner Cloud in dependency order, and registers instances with their
load balancer pools once they probe healthy.

If no files are specified, it looks for stackzner.yaml and deployment.yaml
in the current directory. Use 'stackzner init' to scaffold both.

Examples:
  # Deploy using stackzner.yaml and deployment.yaml in current directory
  stackzner deploy

  # Deploy a specific configuration and manifest
  stackzner deploy -c production.yaml -m stack.yaml

  # Re-run after manifest changes, without the dashboard
  stackzner deploy --no-tui`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Deploy(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: stackzner.yaml)")
	cmd.Flags().StringVarP(&opts.ManifestPath, "manifest", "m", "", "Path to deployment manifest (default: deployment.yaml)")
	cmd.Flags().BoolVar(&opts.NoTUI, "no-tui", false, "Disable the live dashboard")

	return cmd
}
