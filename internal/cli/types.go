package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/yushimatenjin/gaea-mcp/pkg/catalog"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// typesCommand creates the "types" command.
func (c *CLI) typesCommand() *cobra.Command {
	var (
		category string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the node types the catalog knows",
		Example: `  gaea-mcp types
  gaea-mcp types --category simulate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.Default()
			types := cat.InCategory(category)
			if len(types) == 0 {
				return gerrors.New(gerrors.ErrCodeNotFound, "unknown category %q (have %s)",
					category, strings.Join(cat.Categories(), ", "))
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), types)
			}

			current := ""
			for _, t := range types {
				if t.Category != current {
					current = t.Category
					printTitle(current)
				}
				ports := make([]string, 0, len(t.Ports))
				for _, p := range t.Ports {
					ports = append(ports, p.Name)
				}
				printKeyValue(t.Name, strings.Join(ports, ", "))
				if t.Description != "" {
					printDetail("%s", t.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "only list types of this category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}
