// Package cli implements the order-desk command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcmexdev/order-desk/internal/pkg/config"
	"github.com/jcmexdev/order-desk/internal/pkg/telemetry"
)

// NewRootCommand builds the command tree. version is printed by the version
// subcommand.
func NewRootCommand(version string) *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "order-desk",
		Short:         "Order-taking API over a versioned document store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			level, _ := loaded.Log.SlogLevel()
			telemetry.InitLogger(cmd.ErrOrStderr(), level)
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	loaded := func() *config.Config { return cfg }
	root.AddCommand(newServeCommand(loaded))
	root.AddCommand(newSeedCommand(loaded))
	root.AddCommand(newVersionCommand(version))
	return root
}

// Execute runs the command line and reports a failure on stderr.
func Execute(version string) error {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
