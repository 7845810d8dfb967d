// Package cache runs the processing pipeline: it compiles subgraphs into
// bundles under a cache directory, keeps recently loaded bundles in memory
// and optionally publishes new bundles to object storage.
//
// Each subgraph owns exactly one bundle path, derived from its sanitized
// name. Two subgraphs whose names sanitize to the same token cannot be
// processed: the second would silently overwrite the first.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/lcagraph/internal/bundle"
	"github.com/roach88/lcagraph/internal/compiler"
	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/naming"
	"github.com/roach88/lcagraph/internal/publish"
)

// DefaultLRUSize is the number of loaded bundles kept in memory.
const DefaultLRUSize = 16

// Processing policy. Inter-resource duplicates are left to consumers.
const (
	sumIntraDuplicates = true
	sumInterDuplicates = false
)

// Cache compiles and serves bundles for one store and one directory.
type Cache struct {
	store     graph.Reader
	root      string
	logger    *slog.Logger
	lruSize   int
	publisher publish.Publisher
	registry  *naming.Registry
	packages  *lru.Cache[string, loaded]
}

// loaded is a package together with the file stamp it was read at.
type loaded struct {
	pkg     *bundle.Package
	modTime time.Time
	size    int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithLRUSize sets how many loaded bundles are kept in memory.
func WithLRUSize(n int) Option {
	return func(c *Cache) { c.lruSize = n }
}

// WithPublisher uploads every bundle written by Process.
func WithPublisher(p publish.Publisher) Option {
	return func(c *Cache) { c.publisher = p }
}

// New creates a cache rooted at root.
func New(st graph.Reader, root string, opts ...Option) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	c := &Cache{
		store:    st,
		root:     root,
		logger:   slog.Default(),
		lruSize:  DefaultLRUSize,
		registry: naming.NewRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}

	packages, err := lru.New[string, loaded](c.lruSize)
	if err != nil {
		return nil, fmt.Errorf("bundle cache: %w", err)
	}
	c.packages = packages
	return c, nil
}

// Root returns the cache directory.
func (c *Cache) Root() string {
	return c.root
}

// BundlePath is the one path a subgraph's bundle is written to.
func (c *Cache) BundlePath(sg graph.Subgraph) string {
	return filepath.Join(c.root, naming.BundleFilename(sg.Name))
}

// ResourceSummary describes one resource of a processed bundle.
type ResourceSummary struct {
	Name        string `json:"name"`
	Matrix      string `json:"matrix"`
	Length      int    `json:"length"`
	Flipped     bool   `json:"flipped,omitempty"`
	GlobalIndex *int   `json:"global_index,omitempty"`
}

// Result reports a processed subgraph.
type Result struct {
	Subgraph  graph.Subgraph    `json:"subgraph"`
	Path      string            `json:"path"`
	Resources []ResourceSummary `json:"resources"`
	Published string            `json:"published,omitempty"`
}

// Process compiles one subgraph and writes its bundle. Nothing is written
// when the subgraph's kind is unsupported or its name collides with another
// subgraph.
func (c *Cache) Process(ctx context.Context, subgraphID int64) (Result, error) {
	sg, err := c.store.Subgraph(ctx, subgraphID)
	if err != nil {
		return Result{}, err
	}

	all, err := c.store.ListSubgraphs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list subgraphs: %w", err)
	}
	return c.process(ctx, sg, naming.Collisions(all))
}

func (c *Cache) process(ctx context.Context, sg graph.Subgraph, collisions map[string][]int64) (Result, error) {
	token := naming.Sanitize(sg.Name)
	if ids := collisions[token]; len(ids) > 1 {
		err := graph.NewCollisionError(token, ids...)
		err.SubgraphID = sg.ID
		return Result{}, err
	}
	if _, err := c.registry.Claim(sg.ID, sg.Name); err != nil {
		return Result{}, err
	}

	vectors, err := compiler.Compile(ctx, c.store, sg)
	if err != nil {
		return Result{}, err
	}

	path := c.BundlePath(sg)
	w := bundle.Create(path, token, sumIntraDuplicates, sumInterDuplicates)
	for _, v := range vectors {
		if v.Len() == 0 {
			c.logger.Warn("empty selection",
				"code", graph.ErrCodeEmptySelection,
				"subgraph", sg.ID,
				"resource", v.Name,
				"matrix", v.Matrix)
		}
		if err := w.AddVector(v); err != nil {
			return Result{}, fmt.Errorf("subgraph %d: %w", sg.ID, err)
		}
	}
	if err := w.Finalize(); err != nil {
		return Result{}, err
	}
	c.packages.Remove(path)

	res := Result{Subgraph: sg, Path: path, Resources: summarize(w.Manifest())}
	c.logger.Info("processed subgraph",
		"subgraph", sg.ID,
		"name", sg.Name,
		"kind", sg.Kind,
		"path", path,
		"resources", len(res.Resources))

	if c.publisher != nil {
		key, err := c.publishBundle(ctx, path)
		if err != nil {
			return res, fmt.Errorf("publish subgraph %d: %w", sg.ID, err)
		}
		res.Published = key
		c.logger.Info("published bundle", "subgraph", sg.ID, "key", key)
	}
	return res, nil
}

func (c *Cache) publishBundle(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read bundle: %w", err)
	}
	return c.publisher.Publish(ctx, filepath.Base(path), content)
}

// ProcessAll compiles every subgraph, at most concurrency at a time. Name
// collisions are checked for the whole store before anything is written.
// Results are ordered by subgraph id.
func (c *Cache) ProcessAll(ctx context.Context, concurrency int) ([]Result, error) {
	all, err := c.store.ListSubgraphs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subgraphs: %w", err)
	}
	if err := naming.CheckCollisions(all); err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(all))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, sg := range all {
		g.Go(func() error {
			res, err := c.process(gctx, sg, nil)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Load returns a subgraph's bundle, from memory when the file has not
// changed since it was last read.
func (c *Cache) Load(ctx context.Context, subgraphID int64) (*bundle.Package, error) {
	sg, err := c.store.Subgraph(ctx, subgraphID)
	if err != nil {
		return nil, err
	}
	return c.LoadPath(c.BundlePath(sg))
}

// LoadPath returns the bundle at path through the in-memory cache. A cached
// package is served only while the file keeps the size and modification
// time it had when read, so rewrites by other processes are picked up.
func (c *Cache) LoadPath(path string) (*bundle.Package, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.packages.Remove(path)
		return bundle.Load(path)
	}
	if e, ok := c.packages.Get(path); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.pkg, nil
	}
	pkg, err := bundle.Load(path)
	if err != nil {
		return nil, err
	}
	c.packages.Add(path, loaded{pkg: pkg, modTime: info.ModTime(), size: info.Size()})
	return pkg, nil
}

// FetchPublished downloads a subgraph's bundle from the publisher.
func (c *Cache) FetchPublished(ctx context.Context, subgraphID int64) (*bundle.Package, error) {
	if c.publisher == nil {
		return nil, fmt.Errorf("fetch published bundle: no publisher configured")
	}
	sg, err := c.store.Subgraph(ctx, subgraphID)
	if err != nil {
		return nil, err
	}

	filename := naming.BundleFilename(sg.Name)
	key := publish.ObjectKey(filename)
	data, err := c.publisher.Fetch(ctx, filename)
	if errors.Is(err, publish.ErrNotFound) {
		return nil, &graph.Error{Code: graph.ErrCodeNotFound, Message: "published bundle not found", SubgraphID: sg.ID, Path: key, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	c.logger.Debug("fetched published bundle", "subgraph", sg.ID, "key", key, "bytes", len(data))
	return bundle.LoadBytes(data, key)
}

// Published lists the bundle filenames held by the publisher.
func (c *Cache) Published(ctx context.Context) ([]string, error) {
	if c.publisher == nil {
		return nil, fmt.Errorf("list published bundles: no publisher configured")
	}
	names, err := c.publisher.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published bundles: %w", err)
	}
	return names, nil
}

// summarize folds manifest entries into one summary per resource.
func summarize(m bundle.Manifest) []ResourceSummary {
	var out []ResourceSummary
	seen := make(map[string]bool)
	for _, e := range m.Resources {
		if e.Kind == bundle.KindFlip {
			out[len(out)-1].Flipped = true
		}
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		out = append(out, ResourceSummary{
			Name:        e.Name,
			Matrix:      e.Matrix,
			Length:      e.Length,
			GlobalIndex: e.GlobalIndex,
		})
	}
	return out
}
