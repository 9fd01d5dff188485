package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/cv-container/internal/model"
	"github.com/shinji-kodama/cv-container/internal/topology"
)

// defaultRootName is the name CloudVision gives the provisioning root.
const defaultRootName = "Tenant"

// planFlags holds the flag values for the plan command.
type planFlags struct {
	topology string

	// root is the root container name to order against. plan works
	// offline, so it cannot ask CloudVision.
	root string
}

// NewPlanCommand creates the "plan" cobra command.
func NewPlanCommand() *cobra.Command {
	flags := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the order in which containers would be created",
		Long: `Load and validate a topology file and print the creation order, parents
first, without contacting CloudVision.

Examples:
  cv-container plan -t containers.yml
  cv-container plan -t containers.yml --root Tenant --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.topology, "topology", "t", "", "Topology file (.yml, .yaml, .json, .jsonc)")
	cmd.Flags().StringVar(&flags.root, "root", defaultRootName, "Name of the CloudVision root container")
	_ = cmd.MarkFlagRequired("topology")

	return cmd
}

// planStep is one row of the plan, also its JSON form.
type planStep struct {
	Step       int      `json:"step"`
	Name       string   `json:"name"`
	Parent     string   `json:"parent_container"`
	Devices    []string `json:"devices"`
	Configlets []string `json:"configlets"`
	Images     []string `json:"images"`
}

func runPlan(_ context.Context, flags *planFlags, out io.Writer) error {
	topo, err := topology.LoadFile(flags.topology)
	if err != nil {
		return toCLIError(err)
	}

	steps, err := buildPlan(topo, flags.root)
	if err != nil {
		return toCLIError(err)
	}

	if IsJSONOutput() {
		return writeJSON(out, map[string]interface{}{
			"root":  flags.root,
			"steps": steps,
		})
	}
	printPlanText(out, flags.root, steps)
	return nil
}

// buildPlan orders topo under rootName and returns one step per container.
func buildPlan(topo *model.Topology, rootName string) ([]planStep, error) {
	order, err := topology.ResolveCreationOrder(topo, rootName)
	if err != nil {
		return nil, err
	}

	steps := make([]planStep, 0, len(order))
	for i, name := range order {
		spec, _ := topo.Get(name)
		steps = append(steps, planStep{
			Step:       i + 1,
			Name:       spec.Name,
			Parent:     spec.ParentContainer,
			Devices:    nonNil(spec.Devices),
			Configlets: nonNil(spec.Configlets),
			Images:     nonNil(spec.Images),
		})
	}
	return steps, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var (
	planHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	planCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func printPlanText(w io.Writer, rootName string, steps []planStep) {
	if len(steps) == 0 {
		fmt.Fprintln(w, "No containers declared.")
		return
	}

	rows := make([][]string, 0, len(steps))
	for _, s := range steps {
		rows = append(rows, []string{
			strconv.Itoa(s.Step),
			s.Name,
			s.Parent,
			strings.Join(s.Devices, ", "),
			strings.Join(s.Configlets, ", "),
			strings.Join(s.Images, ", "),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return planHeaderStyle
			}
			return planCellStyle
		}).
		Headers("#", "CONTAINER", "PARENT", "DEVICES", "CONFIGLETS", "IMAGES").
		Rows(rows...)

	fmt.Fprintf(w, "Creation order under %q:\n", rootName)
	fmt.Fprintln(w, t.String())
}
