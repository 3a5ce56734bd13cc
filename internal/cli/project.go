package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
)

// createCommand creates the "create" command.
func (c *CLI) createCommand() *cobra.Command {
	var (
		name  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "create <file.terrain>",
		Short: "Create an empty Gaea project",
		Long: `Create writes a new project with an empty graph and default build settings.
An existing file is only replaced with --force.`,
		Example: `  gaea-mcp create world.terrain
  gaea-mcp create world.terrain --name "Alpine Valley"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ed, closeFn, err := c.newEditor(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if _, err := ed.Create(cmd.Context(), args[0], name, force); err != nil {
				return err
			}
			printSuccess("Created project")
			printFile(args[0])
			printNextStep("Add a node", fmt.Sprintf("gaea-mcp node add %s Mountain", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name stored in the metadata (default: the file name)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	return cmd
}

// projectSummary is the JSON form of "info".
type projectSummary struct {
	Path        string               `json:"path"`
	Name        string               `json:"name"`
	Nodes       int                  `json:"nodes"`
	Connections []terrain.Connection `json:"connections"`
	Missing     []string             `json:"missing_inputs,omitempty"`
	Problem     string               `json:"problem,omitempty"`
	Build       *buildSummary        `json:"build,omitempty"`
}

// buildSummary is the part of the project's build definition shown by "info".
type buildSummary struct {
	Destination string `json:"destination"`
	Resolution  int    `json:"resolution"`
}

// infoCommand creates the "info" command.
func (c *CLI) infoCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info <file.terrain>",
		Short: "Show a project's name, size and connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sum projectSummary
			err := c.view(cmd.Context(), args[0], func(d *terrain.Document) error {
				sum = projectSummary{
					Path:        args[0],
					Name:        d.ProjectName(),
					Nodes:       d.NodeCount(),
					Connections: d.Connections(),
				}
				for _, n := range d.AllNodes() {
					for _, p := range n.Ports() {
						if _, ok := p.Record(); p.Kind().IsRequired() && !ok {
							sum.Missing = append(sum.Missing, fmt.Sprintf("%s (#%d) %s", n.Name(), n.ID, p.Name()))
						}
					}
				}
				if err := d.Validate(); err != nil {
					sum.Problem = err.Error()
				}
				if bd := d.BuildDefinition(); bd != nil {
					sum.Build = &buildSummary{}
					sum.Build.Destination, _ = bd.String("Destination")
					sum.Build.Resolution, _ = bd.Int("Resolution")
				}
				return nil
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), sum)
			}

			printTitle(displayName(sum.Name, args[0]))
			printKeyValue("Nodes", fmt.Sprint(sum.Nodes))
			printKeyValue("Connections", fmt.Sprint(len(sum.Connections)))
			if sum.Build != nil {
				printKeyValue("Build", fmt.Sprintf("%d px to %s", sum.Build.Resolution, sum.Build.Destination))
			}
			for _, conn := range sum.Connections {
				printDetail("%s", conn)
			}
			for _, m := range sum.Missing {
				printWarning("Unconnected required input: %s", m)
			}
			if sum.Problem != "" {
				printWarning("%s", sum.Problem)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func displayName(name, path string) string {
	if name == "" {
		return path
	}
	return name
}

// edit applies fn to the project at path under the file lock and saves it.
func (c *CLI) edit(ctx context.Context, path string, fn func(*terrain.Document) error) error {
	ed, closeFn, err := c.newEditor(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return ed.Edit(ctx, path, fn)
}

// view runs fn on the project at path under the file lock without saving.
func (c *CLI) view(ctx context.Context, path string, fn func(*terrain.Document) error) error {
	ed, closeFn, err := c.newEditor(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return ed.View(ctx, path, fn)
}
