package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yushimatenjin/gaea-mcp/pkg/catalog"
	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
	"github.com/yushimatenjin/gaea-mcp/pkg/terrain"
	"github.com/yushimatenjin/gaea-mcp/pkg/tree"
)

// nodeCommand creates the "node" command and its subcommands.
func (c *CLI) nodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Add, change and remove nodes",
	}

	cmd.AddCommand(c.nodeAddCommand())
	cmd.AddCommand(c.nodeRemoveCommand())
	cmd.AddCommand(c.nodeListCommand())
	cmd.AddCommand(c.nodeMoveCommand())
	cmd.AddCommand(c.nodeRenameCommand())
	cmd.AddCommand(c.nodeSetCommand())

	return cmd
}

// nodeAddCommand creates the "node add" subcommand.
func (c *CLI) nodeAddCommand() *cobra.Command {
	var (
		name     string
		x, y     float64
		props    []string
		portDefs []string
	)

	cmd := &cobra.Command{
		Use:   "add <file.terrain> <type>",
		Short: "Add a node",
		Long: `Add creates a node of a catalog type, by short or full name, with the type's
ports and default properties. Types outside the catalog need the full type
string and one --port per port.`,
		Example: `  gaea-mcp node add world.terrain Mountain --prop Height=0.8
  gaea-mcp node add world.terrain Erosion2 --name "Main Erosion" --x 26400 --y 26000
  gaea-mcp node add world.terrain "Acme.Nodes.Custom, Acme" --port In=PrimaryIn --port Out=PrimaryOut`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, typeArg := args[0], args[1]

			var ports []terrain.PortSpec
			for _, def := range portDefs {
				pname, kind, err := parseAssignment(def)
				if err != nil {
					return err
				}
				ports = append(ports, terrain.PortSpec{Name: pname, Kind: terrain.PortKind(kind)})
			}
			typeName, ports, defaults, err := catalog.Default().Resolve(typeArg, ports)
			if err != nil {
				return err
			}
			for _, p := range props {
				k, v, err := parseAssignment(p)
				if err != nil {
					return err
				}
				defaults.Set(k, parseValue(v))
			}

			opts := terrain.NodeOptions{Name: name, Properties: defaults}
			if cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
				opts.Position = &terrain.Point{X: x, Y: y}
			}

			var id int
			err = c.edit(cmd.Context(), path, func(d *terrain.Document) error {
				var err error
				id, err = d.AddNode(typeName, ports, opts)
				return err
			})
			if err != nil {
				return err
			}
			printSuccess("Added %s as node #%d", terrain.ShortTypeName(typeName), id)
			printNextStep("Connect it", fmt.Sprintf("gaea-mcp connect %s <from> %d", path, id))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (default: the short type name)")
	cmd.Flags().Float64Var(&x, "x", 0, "canvas X position")
	cmd.Flags().Float64Var(&y, "y", 0, "canvas Y position")
	cmd.Flags().StringArrayVar(&props, "prop", nil, "property override as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&portDefs, "port", nil, "port as name=kind, replacing the catalog ports (repeatable)")

	return cmd
}

// nodeRemoveCommand creates the "node remove" subcommand.
func (c *CLI) nodeRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <file.terrain> <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a node and every connection into it",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			err = c.edit(cmd.Context(), args[0], func(d *terrain.Document) error {
				return d.RemoveNode(id)
			})
			if err != nil {
				return err
			}
			printSuccess("Removed node #%d", id)
			return nil
		},
	}
}

// nodeSummary is the JSON form of one "node list" entry.
type nodeSummary struct {
	ID         int                        `json:"id"`
	Name       string                     `json:"name"`
	Type       string                     `json:"type"`
	Position   terrain.Point              `json:"position"`
	Properties map[string]json.RawMessage `json:"properties,omitempty"`
	Inputs     []terrain.Connection       `json:"inputs,omitempty"`
}

// nodeListCommand creates the "node list" subcommand.
func (c *CLI) nodeListCommand() *cobra.Command {
	var (
		asJSON  bool
		details bool
	)

	cmd := &cobra.Command{
		Use:     "list <file.terrain>",
		Aliases: []string{"ls"},
		Short:   "List the nodes of a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var nodes []nodeSummary
			err := c.view(cmd.Context(), args[0], func(d *terrain.Document) error {
				for _, n := range d.AllNodes() {
					ns := nodeSummary{
						ID:       n.ID,
						Name:     n.Name(),
						Type:     n.ShortType(),
						Position: n.Position(),
						Inputs:   d.Inbound(n.ID),
					}
					if asJSON || details {
						ns.Properties = make(map[string]json.RawMessage)
						for _, k := range n.PropertyKeys() {
							v, _ := n.Property(k)
							b, err := tree.Marshal(v)
							if err != nil {
								return err
							}
							ns.Properties[k] = bytes.TrimSpace(b)
						}
					}
					nodes = append(nodes, ns)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if asJSON {
				if nodes == nil {
					nodes = []nodeSummary{}
				}
				return printJSON(cmd.OutOrStdout(), nodes)
			}

			if len(nodes) == 0 {
				printInfo("No nodes")
				return nil
			}
			for _, n := range nodes {
				printKeyValue("#"+strconv.Itoa(n.ID), fmt.Sprintf("%s (%s) at %g, %g", n.Name, n.Type, n.Position.X, n.Position.Y))
				for _, in := range n.Inputs {
					printDetail("%s", in)
				}
				if details {
					for _, k := range slices.Sorted(maps.Keys(n.Properties)) {
						printDetail("%s = %s", k, n.Properties[k])
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVarP(&details, "details", "d", false, "include property values")

	return cmd
}

// nodeMoveCommand creates the "node move" subcommand.
func (c *CLI) nodeMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <file.terrain> <id> <x> <y>",
		Short: "Move a node on the canvas",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			var p terrain.Point
			if p.X, err = strconv.ParseFloat(args[2], 64); err != nil {
				return gerrors.New(gerrors.ErrCodeInvalidInput, "invalid x %q", args[2])
			}
			if p.Y, err = strconv.ParseFloat(args[3], 64); err != nil {
				return gerrors.New(gerrors.ErrCodeInvalidInput, "invalid y %q", args[3])
			}
			err = c.edit(cmd.Context(), args[0], func(d *terrain.Document) error {
				return d.MoveNode(id, p)
			})
			if err != nil {
				return err
			}
			printSuccess("Moved node #%d to %g, %g", id, p.X, p.Y)
			return nil
		},
	}
}

// nodeRenameCommand creates the "node rename" subcommand.
func (c *CLI) nodeRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <file.terrain> <id> <name>",
		Short: "Change a node's display name",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			err = c.edit(cmd.Context(), args[0], func(d *terrain.Document) error {
				return d.RenameNode(id, args[2])
			})
			if err != nil {
				return err
			}
			printSuccess("Renamed node #%d to %q", id, args[2])
			return nil
		},
	}
}

// nodeSetCommand creates the "node set" subcommand.
func (c *CLI) nodeSetCommand() *cobra.Command {
	var unset bool

	cmd := &cobra.Command{
		Use:   "set <file.terrain> <id> <key> [value]",
		Short: "Set or remove a node property",
		Long: `Set stores a property on a node. Values that parse as JSON are stored as
JSON (numbers, booleans, objects); anything else is stored as a string.`,
		Example: `  gaea-mcp node set world.terrain 2 Duration 0.15
  gaea-mcp node set world.terrain 2 Style Basic
  gaea-mcp node set world.terrain 2 Duration --unset`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			key := args[2]

			if unset {
				if len(args) == 4 {
					return gerrors.New(gerrors.ErrCodeInvalidInput, "--unset takes no value")
				}
				err = c.edit(cmd.Context(), args[0], func(d *terrain.Document) error {
					return d.RemoveProperty(id, key)
				})
				if err != nil {
					return err
				}
				printSuccess("Removed %s from node #%d", key, id)
				return nil
			}

			if len(args) < 4 {
				return gerrors.New(gerrors.ErrCodeInvalidInput, "a value is required unless --unset is given")
			}
			v := parseValue(args[3])
			err = c.edit(cmd.Context(), args[0], func(d *terrain.Document) error {
				return d.SetProperty(id, key, v)
			})
			if err != nil {
				return err
			}
			printSuccess("Set %s on node #%d", key, id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unset, "unset", false, "remove the property instead of setting it")

	return cmd
}

// connectCommand creates the "connect" command.
func (c *CLI) connectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <file.terrain> <from[:port]> <to[:port]>",
		Short: "Connect an output port to an input port",
		Long: `Connect wires the output port of one node to the input port of another.
Ports default to Out and In. An existing connection into the input is replaced.`,
		Example: `  gaea-mcp connect world.terrain 1 2
  gaea-mcp connect world.terrain 2:Out 3:Input2`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, fromPort, err := parseEndpoint(args[1], "Out")
			if err != nil {
				return err
			}
			to, toPort, err := parseEndpoint(args[2], "In")
			if err != nil {
				return err
			}
			err = c.edit(cmd.Context(), args[0], func(d *terrain.Document) error {
				return d.ConnectPort(from, fromPort, to, toPort)
			})
			if err != nil {
				return err
			}
			printSuccess("Connected %d:%s -> %d:%s", from, fromPort, to, toPort)
			return nil
		},
	}
}

// disconnectCommand creates the "disconnect" command.
func (c *CLI) disconnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <file.terrain> <id> <port>",
		Short: "Remove the connection into a port",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			err = c.edit(cmd.Context(), args[0], func(d *terrain.Document) error {
				return d.DisconnectPort(id, args[2])
			})
			if err != nil {
				return err
			}
			printSuccess("Disconnected %d:%s", id, args[2])
			return nil
		},
	}
}
