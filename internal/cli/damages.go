package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kylejryan/claims-manager/internal/api"
	"github.com/kylejryan/claims-manager/internal/validate"
)

func damagesCmd(opts *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "damages",
		Short: "Manage the damages of PENDING claims",
	}

	c.AddCommand(damagesListCmd(opts))
	c.AddCommand(damagesAddCmd(opts))
	c.AddCommand(damagesUpdateCmd(opts))
	c.AddCommand(damagesDeleteCmd(opts))
	return c
}

// damageFlags collects a damage from flags. Price and score travel as
// json.Number so they are normalized exactly like an HTTP body.
type damageFlags struct {
	part     string
	severity string
	imageURL string
	price    string
	score    string
}

func (f *damageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.part, "part", "", "Damaged part, e.g. front bumper")
	cmd.Flags().StringVar(&f.severity, "severity", "", "LOW, MEDIUM or HIGH")
	cmd.Flags().StringVar(&f.imageURL, "image-url", "", "Absolute URL of the damage photo")
	cmd.Flags().StringVar(&f.price, "price", "", "Repair price, rounded to 2 decimals")
	cmd.Flags().StringVar(&f.score, "score", "", "Integer score between 1 and 10")
}

func (f *damageFlags) input() validate.DamageInput {
	in := validate.DamageInput{Part: f.part, Severity: f.severity, ImageURL: f.imageURL}
	if f.price != "" {
		in.Price = json.Number(f.price)
	}
	if f.score != "" {
		in.Score = json.Number(f.score)
	}
	return in
}

func damagesListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every damage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				damages, err := s.engine.ListDamages(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.NewDamageResponses(damages))
			})
		},
	}
}

func damagesAddCmd(opts *options) *cobra.Command {
	var f damageFlags

	cmd := &cobra.Command{
		Use:   "add <claim-id>",
		Short: "Add a damage to a PENDING claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				d, err := s.engine.AttemptDamageCreate(ctx, args[0], f.input())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.NewDamageResponse(d))
			})
		},
	}

	f.register(cmd)
	return cmd
}

func damagesUpdateCmd(opts *options) *cobra.Command {
	var f damageFlags

	cmd := &cobra.Command{
		Use:   "update <damage-id>",
		Short: "Replace every field of a damage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				d, err := s.engine.AttemptDamageUpdate(ctx, args[0], f.input())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), api.NewDamageResponse(d))
			})
		},
	}

	f.register(cmd)
	return cmd
}

func damagesDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <damage-id>",
		Short: "Delete a damage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, s *session) error {
				if err := s.engine.AttemptDamageDelete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			})
		},
	}
}
