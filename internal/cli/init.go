package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lcagraph/internal/config"
	"github.com/roach88/lcagraph/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Seed bool
}

// InitResult is the init command's output.
type InitResult struct {
	Cache     string `json:"cache"`
	Store     string `json:"store"`
	Seeded    bool   `json:"seeded"`
	Subgraphs int    `json:"subgraphs"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the cache directory and graph store",
		Long: `Create the bundle cache directory and the graph store schema.

With --seed, also installs the basic data: the "US EEIO 1.1" database and
the "Climate Change" impact category with its midpoint. Running init again
is safe.

Examples:
  lcagraph init --cache ./cache
  lcagraph init --seed
  lcagraph init --pg postgres://lca@localhost/lca`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "install basic data")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := resolveConfig(opts.RootOptions)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	if err := os.MkdirAll(cfg.Cache, 0o755); err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, fmt.Errorf("create cache directory: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, fmt.Errorf("open graph store: %w", err))
	}
	defer st.Close()

	if opts.Seed {
		if err := store.SeedBasicData(ctx, st); err != nil {
			return out.Fail(ExitFailure, ErrCodeStore, err)
		}
	}

	subgraphs, err := st.ListSubgraphs(ctx)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeStore, err)
	}

	result := InitResult{
		Cache:     cfg.Cache,
		Store:     storeLabel(cfg),
		Seeded:    opts.Seed,
		Subgraphs: len(subgraphs),
	}
	if out.IsJSON() {
		return out.Success(result)
	}

	w := out.Writer
	fmt.Fprintf(w, "✓ Initialized cache at %s\n", result.Cache)
	fmt.Fprintf(w, "  Graph store: %s\n", result.Store)
	fmt.Fprintf(w, "  Subgraphs:   %d\n", result.Subgraphs)
	return nil
}

// storeLabel names the store without leaking Postgres credentials.
func storeLabel(cfg *config.Config) string {
	if cfg.UsePostgres() {
		return "postgres"
	}
	return cfg.DatabasePath()
}
