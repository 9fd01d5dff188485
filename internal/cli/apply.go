// apply.go implements the "cv-container apply" command.
//
// The apply command loads a topology file, connects to CloudVision and
// creates every declared container that does not exist yet, parents first.
// The result record is printed as text, JSON (--json) or through a Go
// template (--format).

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/cv-container/internal/model"
	"github.com/shinji-kodama/cv-container/internal/reconcile"
	"github.com/shinji-kodama/cv-container/internal/topology"
)

// applyFlags holds the flag values for the apply command.
type applyFlags struct {
	// topology is the path to the topology file.
	topology string

	// mode is merge, override or delete.
	mode string

	// check reports what would be created without creating anything.
	check bool

	// format is an optional Go template applied to the result.
	format string

	conn connFlags
}

// NewApplyCommand creates the "apply" cobra command.
func NewApplyCommand() *cobra.Command {
	flags := &applyFlags{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create missing CloudVision containers",
		Long: `Create the containers declared in a topology file that do not exist on
CloudVision yet. Containers are processed parents first; a container whose
parent is missing is reported and skipped.

Exit codes:
  0  success
  1  general error
  2  invalid topology
  3  CloudVision unreachable or login refused
  4  at least one container could not be created or verified

Examples:
  cv-container apply -t containers.yml --host cvp.lab -u cvpadmin
  cv-container apply -t containers.yml --check
  cv-container apply -t containers.jsonc --json
  cv-container apply -t containers.yml --format '{{ .Data.CreationResult.ListNewContainers | join "," }}'`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.topology, "topology", "t", "", "Topology file (.yml, .yaml, .json, .jsonc)")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", string(model.ModeMerge), "Mode: merge, override, delete")
	cmd.Flags().BoolVar(&flags.check, "check", false, "Report what would be created without changing anything")
	cmd.Flags().StringVar(&flags.format, "format", "", "Go template for the result (sprig functions available)")
	flags.conn.register(cmd)
	_ = cmd.MarkFlagRequired("topology")

	return cmd
}

// runApply is the main logic function for the apply command.
func runApply(ctx context.Context, flags *applyFlags, out io.Writer) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	// Step 1: Validate everything local before opening a session, so a
	// broken topology never costs a login.
	mode, err := model.ParseMode(flags.mode)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --mode", err)
	}
	if flags.format != "" {
		if _, err := parseFormat(flags.format); err != nil {
			return err
		}
	}
	topo, err := topology.LoadFile(flags.topology)
	if err != nil {
		return toCLIError(err)
	}
	logger.Debug().Str("topology", flags.topology).Int("containers", topo.Len()).Msg("topology loaded")

	// Step 2: Connect.
	client, err := connect(ctx, &flags.conn, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Debug().Err(err).Msg("logout failed")
		}
	}()

	// Step 3: Reconcile and report.
	return applyOnce(ctx, client, topo, mode, flags, logger, out)
}

// applyOnce runs one reconciliation against remote and prints the result.
// It returns a CLIError with ExitPartialFailure when a container failed.
// When the run stops early, the containers processed so far are printed
// before the error is returned.
func applyOnce(ctx context.Context, remote reconcile.Remote, topo *model.Topology, mode model.Mode, flags *applyFlags, logger zerolog.Logger, out io.Writer) error {
	result, err := reconcile.Run(ctx, remote, topo, reconcile.Options{
		Mode:      mode,
		CheckMode: flags.check,
		Logger:    &logger,
	})
	if err != nil {
		// An interrupted run may already have created containers; they
		// are still reported so their task IDs are not lost.
		if len(result.Data.Containers) > 0 {
			if perr := printResult(out, result, flags.format); perr != nil {
				logger.Warn().Err(perr).Msg("partial result not printed")
			}
		}
		return toCLIError(err)
	}

	if err := printResult(out, result, flags.format); err != nil {
		return err
	}

	if failures := result.Failures(); len(failures) > 0 {
		return model.NewCLIError(model.ExitPartialFailure,
			fmt.Sprintf("%d container(s) could not be created or verified", len(failures)))
	}
	return nil
}
