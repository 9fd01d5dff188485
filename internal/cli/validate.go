package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/cv-container/internal/topology"
)

// NewValidateCommand creates the "validate" cobra command.
func NewValidateCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check a topology file against the container schema",
		Long: `Check that a topology file parses and matches the container schema.
Parent references are not resolved; use "plan" for that.

Examples:
  cv-container validate containers.yml
  cv-container validate -t containers.jsonc --json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("a topology file is required (argument or --topology)")
			}
			return runValidate(path, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&path, "topology", "t", "", "Topology file (.yml, .yaml, .json, .jsonc)")
	return cmd
}

func runValidate(path string, out io.Writer) error {
	topo, err := topology.LoadFile(path)
	if err != nil {
		return toCLIError(err)
	}

	if IsJSONOutput() {
		return writeJSON(out, map[string]interface{}{
			"valid":      true,
			"file":       path,
			"containers": topo.Names(),
		})
	}
	color.New(color.FgGreen).Fprintf(out, "%s is valid (%d containers)\n", path, topo.Len())
	return nil
}
