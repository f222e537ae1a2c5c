// Package cli implements claimsctl, the administrative command line for the claim store.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kylejryan/claims-manager/internal/backend"
	"github.com/kylejryan/claims-manager/internal/config"
	"github.com/kylejryan/claims-manager/internal/lifecycle"
	"github.com/kylejryan/claims-manager/internal/logging"
	"github.com/kylejryan/claims-manager/internal/storage"
)

type options struct {
	configPath string
	debug      bool
	openStore  func(ctx context.Context, env config.Env) (storage.Store, error)
}

// Execute runs claimsctl with the process arguments and exits non-zero on failure.
func Execute() {
	cmd := newRootCmd(&options{openStore: openStore})
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore(ctx context.Context, env config.Env) (storage.Store, error) {
	return backend.Open(ctx, env, nil)
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "claimsctl",
		Short:        "Manage claims and damages",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (environment variables override it)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log debug events to stderr")

	cmd.AddCommand(migrateCmd(opts))
	cmd.AddCommand(claimsCmd(opts))
	cmd.AddCommand(damagesCmd(opts))
	return cmd
}

// session is one command's view of the configured store.
type session struct {
	env    config.Env
	store  storage.Store
	engine *lifecycle.Engine
}

func (o *options) open(ctx context.Context, errOut io.Writer) (*session, error) {
	env, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	level := env.LogLevel
	if o.debug {
		level = "debug"
	}
	store, err := o.openStore(ctx, env)
	if err != nil {
		return nil, err
	}
	return &session{
		env:    env,
		store:  store,
		engine: lifecycle.NewEngine(store, logging.New(errOut, level)),
	}, nil
}

func (s *session) Close() error { return s.store.Close() }

// run opens a session, calls fn and closes the session again.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := o.open(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(ctx, s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
