package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// ListEntry describes one stored subgraph.
type ListEntry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Modified  time.Time `json:"modified"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	Bundle    string    `json:"bundle"`
	Processed bool      `json:"processed"`
	Published *bool     `json:"published,omitempty"`
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Remote bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subgraphs and their bundles",
		Long: `List every subgraph in the graph store with its node and edge counts
and the bundle path it is processed to. With --remote, also report which
bundles are published in the configured S3 bucket.

Examples:
  lcagraph list --format json
  lcagraph list --remote`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "check published bundles in S3")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	out := s.out

	c, err := s.cache(opts.Remote)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	var published map[string]bool
	if opts.Remote {
		names, err := c.Published(ctx)
		if err != nil {
			return out.Fail(ExitFailure, ErrCodePublish, err)
		}
		published = make(map[string]bool, len(names))
		for _, name := range names {
			published[name] = true
		}
	}

	subgraphs, err := s.store.ListSubgraphs(ctx)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeStore, err)
	}

	entries := make([]ListEntry, 0, len(subgraphs))
	for _, sg := range subgraphs {
		stats, err := s.store.Stats(ctx, sg.ID)
		if err != nil {
			return out.Fail(ExitFailure, ErrCodeStore, err)
		}
		path := c.BundlePath(sg)
		_, statErr := os.Stat(path)
		entry := ListEntry{
			ID:        sg.ID,
			Name:      sg.Name,
			Kind:      string(sg.Kind),
			Modified:  sg.Modified,
			Nodes:     stats.Nodes,
			Edges:     stats.Edges,
			Bundle:    path,
			Processed: statErr == nil,
		}
		if published != nil {
			ok := published[filepath.Base(path)]
			entry.Published = &ok
		}
		entries = append(entries, entry)
	}

	if out.IsJSON() {
		return out.Success(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out.Writer, "No subgraphs. Run 'lcagraph import' or 'lcagraph init --seed'.")
		return nil
	}

	tw := tabwriter.NewWriter(out.Writer, 0, 4, 2, ' ', 0)
	header := "ID\tNAME\tKIND\tNODES\tEDGES\tBUNDLE"
	if opts.Remote {
		header += "\tPUBLISHED"
	}
	fmt.Fprintln(tw, header)
	for _, e := range entries {
		bundle := "-"
		if e.Processed {
			bundle = e.Bundle
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s", e.ID, e.Name, e.Kind, e.Nodes, e.Edges, bundle)
		if e.Published != nil {
			fmt.Fprintf(tw, "\t%t", *e.Published)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
