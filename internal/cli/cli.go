package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/yushimatenjin/gaea-mcp/pkg/buildinfo"
	"github.com/yushimatenjin/gaea-mcp/pkg/cache"
	"github.com/yushimatenjin/gaea-mcp/pkg/config"
	"github.com/yushimatenjin/gaea-mcp/pkg/edit"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "gaea-mcp"

	// redisPingTimeout bounds the connectivity check of the redis lock backend.
	redisPingTimeout = 3 * time.Second
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
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), cfg: config.Default()}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Edit and build Gaea terrain projects from the command line or as a tool server",
		Long: `gaea-mcp edits Gaea .terrain project files node by node without the Gaea editor,
builds them with Gaea.Swarm, and serves the same operations as tools over JSON-RPC.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/gaea-mcp/config.toml)")

	root.AddCommand(c.createCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.nodeCommand())
	root.AddCommand(c.connectCommand())
	root.AddCommand(c.disconnectCommand())
	root.AddCommand(c.typesCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.detectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Editor Factory
// =============================================================================

// newEditor creates the editor for the configured lock backend. The returned
// func releases the backend connection.
func (c *CLI) newEditor(ctx context.Context) (*edit.Editor, func(), error) {
	lc := c.cfg.Lock
	if lc.Backend != config.LockRedis {
		return edit.New(nil, c.Logger).WithLockWait(lc.Wait.Duration), func() {}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{lc.RedisAddr},
		DB:    lc.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, gerrors.Wrap(gerrors.ErrCodeIO, err, "connect to redis at %s", lc.RedisAddr)
	}
	c.Logger.Debug("using redis locks", "addr", lc.RedisAddr, "db", lc.RedisDB)

	locker := edit.NewRedisLocker(client, edit.RedisOptions{Prefix: lc.Prefix, TTL: lc.TTL.Duration})
	ed := edit.New(locker, c.Logger).WithLockWait(lc.Wait.Duration)
	return ed, func() { client.Close() }, nil
}

// =============================================================================
// Cache Factory
// =============================================================================

func (c *CLI) newCache(noCache bool) (cache.Cache, error) {
	if noCache || c.cfg.Cache.Disabled {
		return cache.NewNullCache(), nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the configured cache directory, or the XDG default.
func (c *CLI) cacheDir() (string, error) {
	if c.cfg != nil && c.cfg.Cache.Dir != "" {
		return c.cfg.Cache.Dir, nil
	}
	return cacheDir()
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/gaea-mcp/).
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

// =============================================================================
// Argument Helpers
// =============================================================================

// parseID parses a node id argument.
func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || id < 0 {
		return 0, gerrors.New(gerrors.ErrCodeInvalidInput, "invalid node id %q", s)
	}
	return id, nil
}

// parseEndpoint parses "id" or "id:port", using def when no port is given.
func parseEndpoint(s, def string) (int, string, error) {
	idPart, port, found := strings.Cut(s, ":")
	if !found || port == "" {
		port = def
	}
	id, err := parseID(idPart)
	return id, port, err
}

// parseValue reads a property value from the command line. Valid JSON is
// used as is; anything else is taken as a string, so Style=Basic needs no
// quoting.
func parseValue(s string) tree.Value {
	if v, err := tree.Parse([]byte(s)); err == nil {
		return v
	}
	return tree.String(s)
}

// parseAssignment splits "key=value".
func parseAssignment(s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" {
		return "", "", gerrors.New(gerrors.ErrCodeInvalidInput, "expected key=value, got %q", s)
	}
	return k, v, nil
}

// defaultOutput replaces the extension of input with ext.
func defaultOutput(input, ext string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
