package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/lcagraph/internal/cache"
	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/store"
)

// ProcessOptions holds flags for the process command.
type ProcessOptions struct {
	*RootOptions
	All         bool
	Publish     bool
	Concurrency int
}

// NewProcessCommand creates the process command.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process [subgraph...]",
		Short: "Compile subgraphs into matrix bundles",
		Long: `Compile subgraphs into bundles in the cache directory.

Subgraphs are named by id or by name. Databases produce a biosphere and a
technosphere resource; impact categories produce one characterization
resource. Reprocessing replaces the previous bundle atomically.

With --publish, every bundle is also uploaded to the configured S3 bucket.

Examples:
  lcagraph process "US EEIO 1.1"
  lcagraph process 1 2
  lcagraph process --all --concurrency 4
  lcagraph process --all --publish`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "process every subgraph")
	cmd.Flags().BoolVar(&opts.Publish, "publish", false, "upload bundles to S3")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 1, "subgraphs compiled in parallel with --all")

	return cmd
}

func runProcess(opts *ProcessOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts.RootOptions, cmd)

	if opts.All == (len(args) > 0) {
		return out.Fail(ExitCommandError, ErrCodeGeneric, fmt.Errorf("name subgraphs to process or pass --all"))
	}
	if opts.Concurrency < 1 {
		return out.Fail(ExitCommandError, ErrCodeGeneric, fmt.Errorf("concurrency must be at least 1, got %d", opts.Concurrency))
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.cache(opts.Publish)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	var results []cache.Result
	if opts.All {
		results, err = c.ProcessAll(ctx, opts.Concurrency)
		if err != nil {
			return out.FailPipeline(err)
		}
	} else {
		for _, arg := range args {
			sg, err := resolveSubgraph(ctx, s.store, arg)
			if err != nil {
				return out.FailPipeline(err)
			}
			res, err := c.Process(ctx, sg.ID)
			if err != nil {
				return out.FailPipeline(err)
			}
			results = append(results, res)
		}
	}

	if out.IsJSON() {
		return out.Success(results)
	}

	w := out.Writer
	for _, res := range results {
		fmt.Fprintf(w, "✓ %s (%s) -> %s\n", res.Subgraph.Name, res.Subgraph.Kind, res.Path)
		for _, r := range res.Resources {
			fmt.Fprintf(w, "    %-40s %-26s %d\n", r.Name, r.Matrix, r.Length)
		}
		if res.Published != "" {
			fmt.Fprintf(w, "    published: %s\n", res.Published)
		}
	}
	return nil
}

// resolveSubgraph accepts a numeric id or a subgraph name. A number that is
// not an id is tried as a name, so subgraphs named "2024" stay reachable.
func resolveSubgraph(ctx context.Context, st store.GraphStore, arg string) (graph.Subgraph, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		sg, err := st.Subgraph(ctx, id)
		if !graph.IsNotFound(err) {
			return sg, err
		}
	}
	return st.SubgraphByName(ctx, arg)
}
