package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jcmexdev/order-desk/internal/pkg/config"
)

func newSeedCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default admin and user accounts if no account exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, cfg())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.users.EnsureSeeded(ctx); err != nil {
				return err
			}
			users, err := a.users.ListAll(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, u := range users {
				fmt.Fprintf(out, "%s\t%s\t%s\n", u.ID, u.Login, u.Role)
			}
			return nil
		},
	}
}
