package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kylejryan/claims-manager/internal/api"
	"github.com/kylejryan/claims-manager/internal/models"
)

func claimsCmd(opts *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "claims",
		Short: "Inspect and move claims",
	}

	c.AddCommand(claimsListCmd(opts))
	c.AddCommand(claimsGetCmd(opts))
	c.AddCommand(claimsCreateCmd(opts))
	c.AddCommand(claimsStatusCmd(opts))
	return c
}

func claimsListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List claims with their damages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				claims, err := s.engine.ListClaims(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.NewClaimResponses(claims))
			})
		},
	}
}

func claimsGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <claim-id>",
		Short: "Show one claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				c, err := s.engine.GetClaim(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.NewClaimResponse(c))
			})
		},
	}
}

func claimsCreateCmd(opts *options) *cobra.Command {
	var (
		title       string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a PENDING claim",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var desc *string
			if cmd.Flags().Changed("description") {
				desc = &description
			}
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				c, err := s.engine.CreateClaim(ctx, title, desc)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.NewClaimResponse(c))
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Claim title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Claim description")
	return cmd
}

func claimsStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <claim-id> <PENDING|IN_REVIEW|FINALIZED|CANCELED>",
		Short: "Move a claim to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := models.ParseClaimStatus(args[1])
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				c, err := s.engine.AttemptTransition(ctx, args[0], target)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.NewClaimResponse(c))
			})
		},
	}
}
