package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kylejryan/claims-manager/internal/backend"
)

func migrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables of the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				msg, err := backend.Migrate(ctx, s.store)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]string{"backend": s.env.Backend, "result": msg})
			})
		},
	}
}
