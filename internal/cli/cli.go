package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/buildinfo"
	"github.com/matzehuels/treesearch/pkg/cache"
	"github.com/matzehuels/treesearch/pkg/config"
	"github.com/matzehuels/treesearch/pkg/pipeline"
	"github.com/matzehuels/treesearch/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "treesearch"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	config     *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Treesearch finds optimal phylogenetic trees by rearrangement search",
		Long: `Treesearch is a CLI tool for heuristic tree search: starting from a seed tree,
it applies rearrangements (NNI or SPR) and keeps every equally good tree it finds
until no rearrangement improves the score.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default "+config.DefaultPath()+")")

	// Register all subcommands
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.resumeCommand())
	root.AddCommand(c.scoreCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())
	for _, cmd := range root.Commands() {
		registerFlagCompletions(cmd)
	}

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// backendOpts selects which backends a runner gets.
type backendOpts struct {
	noCache bool // disable the score cache
	noStore bool // do not archive runs
}

// newRunner creates a pipeline runner from the loaded configuration.
// The caller must call the returned cleanup function.
func (c *CLI) newRunner(ctx context.Context, opts backendOpts) (*pipeline.Runner, func(), error) {
	sc, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return nil, nil, err
	}
	if reason, off := cache.IsNull(sc); off {
		c.Logger.Debugf("Scores are not cached (%s)", reason)
	}
	var runs store.Store
	if !opts.noStore {
		if runs, err = c.newStore(ctx); err != nil {
			_ = sc.Close()
			return nil, nil, err
		}
	}

	runner := pipeline.NewRunner(sc, nil, runs, c.Logger)
	runner.CacheTTL = c.config.Cache.TTL.Duration
	cleanup := func() {
		_ = sc.Close()
		if runs != nil {
			_ = runs.Close()
		}
	}
	return runner, cleanup, nil
}

// newCache opens the configured score cache. An unreachable Redis server
// degrades to no caching.
func (c *CLI) newCache(ctx context.Context, disabled bool) (cache.Cache, error) {
	cfg := c.config.Cache
	if disabled {
		return cache.Disabled("--no-cache"), nil
	}
	if cfg.Backend == config.BackendNone {
		return cache.Disabled("cache backend none"), nil
	}
	if cfg.Backend == config.BackendRedis {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:   cfg.RedisAddr,
			DB:     cfg.RedisDB,
			Prefix: appName + ":",
		})
		if err != nil {
			c.Logger.Warnf("Score cache disabled: %v", err)
			return cache.Disabled("redis unreachable"), nil
		}
		return rc, nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		return cache.Disabled("no cache directory"), nil
	}
	return cache.NewFileCache(dir)
}

// newStore opens the configured run archive, nil when archiving is off.
func (c *CLI) newStore(ctx context.Context) (store.Store, error) {
	cfg := c.config.Store
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMongo:
		return store.NewMongoStore(ctx, store.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
	default:
		return store.NewFileStore(cfg.Dir)
	}
}

// openStore is like newStore but fails when archiving is off.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	runs, err := c.newStore(ctx)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		return nil, errNoStore
	}
	return runs, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, or the XDG default.
func (c *CLI) cacheDir() (string, error) {
	if c.config.Cache.Dir != "" {
		return c.config.Cache.Dir, nil
	}
	return cacheDir()
}

// cacheDir returns the cache directory using XDG standard (~/.cache/treesearch/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
