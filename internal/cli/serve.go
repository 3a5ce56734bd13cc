package cli

import (
	"os"

	"github.com/spf13/cobra"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/mcp"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

// serveCommand creates the "serve" command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		transport string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project tools over JSON-RPC",
		Long: `Serve exposes project editing and building as tools to an assistant client.

The stdio transport reads one JSON-RPC message per line on stdin and writes
responses to stdout; logs go to stderr. The http transport accepts POST
requests on /mcp and reports liveness on /healthz.`,
		Example: `  gaea-mcp serve
  gaea-mcp serve --transport http --addr 127.0.0.1:8765`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ed, closeFn, err := c.newEditor(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			srv := mcp.New(mcp.Options{
				Editor:       ed,
				Logger:       c.Logger,
				SwarmPath:    c.cfg.SwarmPath,
				BuildTimeout: c.cfg.BuildTimeout.Duration,
			})

			switch transport {
			case transportStdio:
				// Reads from stdin do not observe ctx, so the loop runs
				// apart and is abandoned on cancel.
				errc := make(chan error, 1)
				go func() { errc <- srv.ServeStdio(ctx, cmd.InOrStdin(), os.Stdout) }()
				select {
				case err := <-errc:
					return err
				case <-ctx.Done():
					return nil
				}
			case transportHTTP:
				if !cmd.Flags().Changed("addr") {
					addr = c.cfg.Server.Addr
				}
				return srv.ListenAndServe(ctx, addr)
			default:
				return gerrors.New(gerrors.ErrCodeInvalidInput, "unknown transport %q: use %s or %s", transport, transportStdio, transportHTTP)
			}
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", transportStdio, "stdio or http")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address for http (default from config)")

	return cmd
}
