package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/stackzner/cmd/stackzner/handlers"
)

// Init returns the init command.
func Init() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a configuration and starter manifest interactively",
		Long: `Init walks through an interactive wizard and writes a stackzner.yaml
configuration plus a deployment.yaml starter manifest to the current
directory.

The starter manifest describes a small web stack: a private network, a
firewall, a load balancer and a set of instances behind it. Edit it to
match your deployment, then run 'stackzner deploy'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context())
		},
	}
}
