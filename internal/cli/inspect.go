package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/lcagraph/internal/bundle"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Entries int
	Remote  bool
}

// InspectResult is the inspect command's output.
type InspectResult struct {
	Path      string            `json:"path"`
	Manifest  bundle.Manifest   `json:"manifest"`
	Resources []InspectResource `json:"resources"`
}

// InspectResource summarizes one resource and up to --entries of its values.
type InspectResource struct {
	Name        string         `json:"name"`
	Matrix      string         `json:"matrix"`
	Length      int            `json:"length"`
	Flipped     bool           `json:"flipped"`
	GlobalIndex *int           `json:"global_index,omitempty"`
	Entries     []InspectEntry `json:"entries,omitempty"`
}

// InspectEntry is one matrix coordinate and its value.
type InspectEntry struct {
	Row   int32   `json:"row"`
	Col   int32   `json:"col"`
	Value float64 `json:"value"`
	Flip  bool    `json:"flip,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <subgraph|bundle.zip>",
		Short: "Show the contents of a bundle",
		Long: `Show the manifest and resources of a processed bundle.

The argument is either a bundle file or a subgraph id or name, in which case
the subgraph's bundle in the cache directory is read. With --remote the
subgraph's published bundle is downloaded from the configured S3 bucket.

Examples:
  lcagraph inspect "US EEIO 1.1" --entries 10
  lcagraph inspect "US EEIO 1.1" --remote
  lcagraph inspect ./cache/us_eeio_1.1.zip --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Entries, "entries", 0, "print up to N entries per resource")
	cmd.Flags().BoolVar(&opts.Remote, "remote", false, "read the published bundle from S3")

	return cmd
}

func runInspect(opts *InspectOptions, arg string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts.RootOptions, cmd)

	var pkg *bundle.Package
	if info, err := os.Stat(arg); err == nil && !info.IsDir() && !opts.Remote {
		out.VerboseLog("Reading bundle file %s", arg)
		pkg, err = bundle.Load(arg)
		if err != nil {
			return out.FailPipeline(err)
		}
	} else {
		s, err := openSession(opts.RootOptions, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		c, err := s.cache(opts.Remote)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeConfig, err)
		}
		sg, err := resolveSubgraph(ctx, s.store, arg)
		if err != nil {
			return out.FailPipeline(err)
		}
		if opts.Remote {
			pkg, err = c.FetchPublished(ctx, sg.ID)
		} else {
			pkg, err = c.Load(ctx, sg.ID)
		}
		if err != nil {
			return out.FailPipeline(err)
		}
	}

	result := newInspectResult(pkg, opts.Entries)
	if out.IsJSON() {
		return out.Success(result)
	}
	writeInspectText(out.Writer, result)
	return nil
}

func newInspectResult(pkg *bundle.Package, limit int) InspectResult {
	result := InspectResult{
		Path:      pkg.Path,
		Manifest:  pkg.Manifest,
		Resources: make([]InspectResource, 0, len(pkg.Resources)),
	}
	for _, r := range pkg.Resources {
		ir := InspectResource{
			Name:        r.Name,
			Matrix:      r.Matrix,
			Length:      r.Len(),
			Flipped:     r.HasFlip(),
			GlobalIndex: r.GlobalIndex,
		}
		for i := 0; i < r.Len() && i < limit; i++ {
			e := InspectEntry{Row: r.Indices[i].Row, Col: r.Indices[i].Col, Value: r.Data[i]}
			if r.HasFlip() {
				e.Flip = r.Flip[i]
			}
			ir.Entries = append(ir.Entries, e)
		}
		result.Resources = append(result.Resources, ir)
	}
	return result
}

// writeInspectText prints the bundle without its directory so output is
// stable across cache locations.
func writeInspectText(w io.Writer, r InspectResult) {
	m := r.Manifest
	fmt.Fprintf(w, "Bundle:  %s\n", filepath.Base(r.Path))
	fmt.Fprintf(w, "Name:    %s\n", m.Name)
	fmt.Fprintf(w, "ID:      %s\n", m.ID)
	fmt.Fprintf(w, "Profile: %s\n", m.Profile)
	fmt.Fprintf(w, "Duplicates: intra=%s inter=%s\n", duplicatePolicy(m.SumIntraDuplicates), duplicatePolicy(m.SumInterDuplicates))

	fmt.Fprintf(w, "\n=== Resources (%d) ===\n", len(r.Resources))
	for _, res := range r.Resources {
		fmt.Fprintf(w, "\n  %s\n", res.Name)
		fmt.Fprintf(w, "    matrix: %s\n", res.Matrix)
		fmt.Fprintf(w, "    length: %d\n", res.Length)
		if res.Flipped {
			fmt.Fprintf(w, "    flip:   yes\n")
		}
		if res.GlobalIndex != nil {
			fmt.Fprintf(w, "    global index: %d\n", *res.GlobalIndex)
		}
		for _, e := range res.Entries {
			flip := ""
			if e.Flip {
				flip = " (flip)"
			}
			fmt.Fprintf(w, "    (%d, %d) %g%s\n", e.Row, e.Col, e.Value, flip)
		}
		if len(res.Entries) > 0 && len(res.Entries) < res.Length {
			fmt.Fprintf(w, "    ... %d more\n", res.Length-len(res.Entries))
		}
	}
}

func duplicatePolicy(summed bool) string {
	if summed {
		return "summed"
	}
	return "kept"
}
