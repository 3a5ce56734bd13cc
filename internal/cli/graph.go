package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yushimatenjin/gaea-mcp/pkg/cache"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/observability"
	"github.com/yushimatenjin/gaea-mcp/pkg/render/dot"
	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
)

// graphFlags holds the rendering flags shared by the graph subcommands.
type graphFlags struct {
	output   string
	detailed bool
	rankdir  string
}

func (f *graphFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file")
	cmd.Flags().BoolVar(&f.detailed, "detailed", false, "show node types and scalar properties")
	cmd.Flags().StringVar(&f.rankdir, "rankdir", "LR", "layout direction: LR, TB, RL or BT")
}

func (f *graphFlags) options() (dot.Options, error) {
	switch strings.ToUpper(f.rankdir) {
	case "LR", "TB", "RL", "BT":
	default:
		return dot.Options{}, gerrors.New(gerrors.ErrCodeInvalidInput, "invalid rankdir %q: use LR, TB, RL or BT", f.rankdir)
	}
	return dot.Options{Detailed: f.detailed, RankDir: f.rankdir}, nil
}

// graphCommand creates the "graph" command and its subcommands.
func (c *CLI) graphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export a project's node graph as DOT or SVG",
	}

	cmd.AddCommand(c.graphDOTCommand())
	cmd.AddCommand(c.graphSVGCommand())

	return cmd
}

// graphDOTCommand creates the "graph dot" subcommand.
func (c *CLI) graphDOTCommand() *cobra.Command {
	var flags graphFlags

	cmd := &cobra.Command{
		Use:   "dot <file.terrain>",
		Short: "Print the node graph as Graphviz DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			src, _, err := c.loadDOT(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			if flags.output == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), src)
				return err
			}
			if err := os.WriteFile(flags.output, []byte(src), 0o644); err != nil {
				return gerrors.Wrap(gerrors.ErrCodeIO, err, "write %s", flags.output)
			}
			printSuccess("Wrote DOT")
			printFile(flags.output)
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}

// graphSVGCommand creates the "graph svg" subcommand.
func (c *CLI) graphSVGCommand() *cobra.Command {
	var (
		flags   graphFlags
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "svg <file.terrain>",
		Short: "Render the node graph to SVG",
		Long: `Render lays out the node graph with Graphviz and writes an SVG next to the
project. Results are cached by content, so rendering an unchanged project
again is instant.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := flags.options()
			if err != nil {
				return err
			}
			src, stats, err := c.loadDOT(ctx, args[0], opts)
			if err != nil {
				return err
			}

			svg, cached, err := c.renderSVG(ctx, src, opts, noCache)
			if err != nil {
				return err
			}

			out := flags.output
			if out == "" {
				out = defaultOutput(args[0], ".svg")
			}
			if err := os.WriteFile(out, svg, 0o644); err != nil {
				return gerrors.Wrap(gerrors.ErrCodeIO, err, "write %s", out)
			}
			printSuccess("Rendered graph")
			printGraphStats(stats.nodes, stats.connections, cached)
			printFile(out)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "render even when a cached SVG exists")

	return cmd
}

type graphStats struct {
	nodes       int
	connections int
}

// loadDOT reads the project at path and converts it to DOT.
func (c *CLI) loadDOT(ctx context.Context, path string, opts dot.Options) (string, graphStats, error) {
	var (
		src   string
		stats graphStats
	)
	err := c.view(ctx, path, func(d *terrain.Document) error {
		src = dot.ToDOT(d, opts)
		stats = graphStats{nodes: d.NodeCount(), connections: len(d.Connections())}
		return nil
	})
	return src, stats, err
}

// renderSVG renders src through the artifact cache. The DOT text already
// reflects every rendering option, so its hash identifies the SVG.
func (c *CLI) renderSVG(ctx context.Context, src string, opts dot.Options, noCache bool) ([]byte, bool, error) {
	logger := loggerFromContext(ctx)
	hooks := observability.Cache()

	store, err := c.newCache(noCache)
	if err != nil {
		return nil, false, err
	}
	defer store.Close()

	key := cache.ArtifactKey(cache.Hash([]byte(src)), cache.ArtifactKeyOpts{
		Format:   "svg",
		Detailed: opts.Detailed,
		RankDir:  strings.ToUpper(opts.RankDir),
	})
	if data, ok, err := store.Get(ctx, key); err != nil {
		logger.Warn("cache read failed", "err", err)
	} else if ok {
		hooks.OnCacheHit(ctx, "svg")
		logger.Debug("cache hit", "key", key)
		return data, true, nil
	}
	hooks.OnCacheMiss(ctx, "svg")

	prog := newProgress(logger)
	svg, err := dot.RenderSVG(src)
	if err != nil {
		return nil, false, gerrors.Wrap(gerrors.ErrCodeInternal, err, "render svg")
	}
	prog.done("Rendered with Graphviz")

	if err := store.Set(ctx, key, svg, c.cfg.Cache.TTL.Duration); err != nil {
		logger.Warn("cache write failed", "err", err)
	} else {
		hooks.OnCacheSet(ctx, "svg", len(svg))
	}
	return svg, false, nil
}
