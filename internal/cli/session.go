package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/lcagraph/internal/cache"
	"github.com/roach88/lcagraph/internal/config"
	"github.com/roach88/lcagraph/internal/publish"
	"github.com/roach88/lcagraph/internal/store"
)

// session is what a command works with: resolved config, an open store
// and a logger. Close releases the store.
type session struct {
	cfg    *config.Config
	store  store.GraphStore
	logger *slog.Logger
	out    *OutputFormatter
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger configures structured logging based on the verbose flag.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolveConfig loads config and applies flag overrides.
func resolveConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Cache != "" {
		cfg.Cache = opts.Cache
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.PostgresDSN != "" {
		cfg.PostgresDSN = opts.PostgresDSN
	}
	return cfg, nil
}

// openStore opens the configured graph store.
func openStore(cfg *config.Config) (store.GraphStore, error) {
	if cfg.UsePostgres() {
		return store.OpenPostgres(cfg.PostgresDSN)
	}
	return store.Open(cfg.DatabasePath())
}

// openSession resolves config, validates the cache directory and opens the
// store. Errors are reported through the formatter.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	out := newFormatter(opts, cmd)

	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, err)
	}

	logger := newLogger(opts, cmd.ErrOrStderr())
	logger.Debug("opening graph store", "postgres", cfg.UsePostgres(), "db", cfg.DatabasePath())
	st, err := openStore(cfg)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeStore, fmt.Errorf("open graph store: %w", err))
	}

	return &session{cfg: cfg, store: st, logger: logger, out: out}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing graph store", "error", err)
	}
}

// cache builds the processing cache, with publishing when requested.
func (s *session) cache(withPublish bool) (*cache.Cache, error) {
	opts := []cache.Option{
		cache.WithLogger(s.logger),
		cache.WithLRUSize(s.cfg.BundleCacheSize),
	}
	if withPublish {
		s3 := s.cfg.S3.Publisher()
		if !s3.Enabled() {
			return nil, fmt.Errorf("publishing requires %s and %s", config.EnvS3Endpoint, config.EnvS3Bucket)
		}
		pub, err := publish.NewS3Publisher(s3)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cache.WithPublisher(pub))
	}
	return cache.New(s.store, s.cfg.Cache, opts...)
}
