package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yushimatenjin/gaea-mcp/pkg/config"
	"github.com/yushimatenjin/gaea-mcp/pkg/edit"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/swarm"
	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
)

// buildFlags holds the options of the "build" command.
type buildFlags struct {
	profile     string
	region      string
	seed        int
	ignoreCache bool
	vars        []string
	timeout     time.Duration
	watch       bool
}

// buildCommand creates the "build" command.
func (c *CLI) buildCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build <file.terrain>",
		Short: "Build a project with Gaea.Swarm",
		Long: `Build checks the project's references, then runs Gaea.Swarm on it and
relays the renderer's log. With --watch the project is rebuilt each time it
is saved until interrupted.`,
		Example: `  gaea-mcp build world.terrain
  gaea-mcp build world.terrain --seed 42 --var Scale=2 --var Style=Basic
  gaea-mcp build world.terrain --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path, err := edit.Resolve(args[0])
			if err != nil {
				return err
			}

			opts := swarm.Options{
				File:        path,
				Profile:     flags.profile,
				Region:      flags.region,
				IgnoreCache: flags.ignoreCache,
				Verbose:     c.Logger.GetLevel() <= LogDebug,
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed = &flags.seed
			}
			if len(flags.vars) > 0 {
				opts.Variables = make(map[string]string, len(flags.vars))
				for _, v := range flags.vars {
					k, val, err := parseAssignment(v)
					if err != nil {
						return err
					}
					opts.Variables[k] = val
				}
			}
			timeout := flags.timeout
			if !cmd.Flags().Changed("timeout") {
				timeout = c.cfg.BuildTimeout.Duration
			}

			exe, err := swarm.Detect(c.cfg.SwarmPath)
			if err != nil {
				return err
			}
			c.Logger.Debug("using renderer", "exe", exe)

			if err := c.build(ctx, exe, opts, timeout); err != nil && !flags.watch {
				return err
			}
			if !flags.watch {
				return nil
			}

			printInfo("Watching %s for changes (Ctrl+C to stop)", args[0])
			return swarm.Watch(ctx, path, swarm.DefaultDebounce, c.Logger, func(ctx context.Context) error {
				return c.build(ctx, exe, opts, timeout)
			})
		},
	}

	cmd.Flags().StringVar(&flags.profile, "profile", "", "build profile stored in the project")
	cmd.Flags().StringVar(&flags.region, "region", "", "only build this region")
	cmd.Flags().IntVar(&flags.seed, "seed", 0, "override the project seed")
	cmd.Flags().BoolVar(&flags.ignoreCache, "ignore-cache", false, "recompute every node")
	cmd.Flags().StringArrayVar(&flags.vars, "var", nil, "variable override as name=value (repeatable)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "abort the build after this long (default from config)")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild whenever the project is saved")

	return cmd
}

// build checks the project's structure and runs the renderer on it while holding
// the project lock, so no edit lands mid-build.
func (c *CLI) build(ctx context.Context, exe string, opts swarm.Options, timeout time.Duration) error {
	var res *swarm.Result
	err := c.view(ctx, opts.File, func(d *terrain.Document) error {
		if err := d.Validate(); err != nil {
			return err
		}
		var err error
		res, err = swarm.Build(ctx, exe, opts, swarm.RunOptions{Timeout: timeout, Logger: c.Logger})
		return err
	})
	if err != nil {
		if gerrors.Is(err, gerrors.ErrCodeBuildFailed) {
			printError("Build failed")
		}
		return err
	}
	printSuccess("Built %s in %s", opts.File, res.Duration.Round(time.Millisecond))
	return nil
}

// detectCommand creates the "detect" command.
func (c *CLI) detectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Locate the Gaea.Swarm executable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := swarm.Detect(c.cfg.SwarmPath)
			if err != nil {
				printWarning("Gaea.Swarm not found")
				printDetail("Set swarm_path in the config file or %s", config.EnvSwarmPath)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), exe)
			return nil
		},
	}
}
