package cli

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/cv-container/internal/model"
	"github.com/shinji-kodama/cv-container/internal/reconcile"
	"github.com/shinji-kodama/cv-container/internal/topology"
)

// debounceDelay groups the burst of events editors emit on save into one
// reconcile pass.
const debounceDelay = 250 * time.Millisecond

// watchFlags holds the flag values for the watch command.
type watchFlags struct {
	applyFlags

	// interval between periodic passes; 0 disables them.
	interval time.Duration
}

// NewWatchCommand creates the "watch" cobra command.
func NewWatchCommand() *cobra.Command {
	flags := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-apply a topology whenever it changes",
		Long: `Apply a topology once, then again every time the file is saved and on a
fixed interval, until interrupted. One CloudVision session is kept open and
re-established after a failed pass.

Examples:
  cv-container watch -t containers.yml --host cvp.lab -u cvpadmin
  cv-container watch -t containers.yml --interval 5m --check`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.topology, "topology", "t", "", "Topology file (.yml, .yaml, .json, .jsonc)")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", string(model.ModeMerge), "Mode: merge, override, delete")
	cmd.Flags().BoolVar(&flags.check, "check", false, "Report what would be created without changing anything")
	cmd.Flags().StringVar(&flags.format, "format", "", "Go template for each result (sprig functions available)")
	cmd.Flags().DurationVar(&flags.interval, "interval", 30*time.Second, "Time between periodic passes (0 disables)")
	flags.conn.register(cmd)
	_ = cmd.MarkFlagRequired("topology")

	return cmd
}

func runWatch(ctx context.Context, flags *watchFlags, out io.Writer) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	mode, err := model.ParseMode(flags.mode)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --mode", err)
	}
	if flags.format != "" {
		if _, err := parseFormat(flags.format); err != nil {
			return err
		}
	}

	client, err := connect(ctx, &flags.conn, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(context.Background()) }()

	pass := newWatchPass(client, flags, mode, logger, out)
	return watchTopology(ctx, flags.topology, flags.interval, logger, pass)
}

// session is a Remote whose connection can be re-established.
type session interface {
	reconcile.Remote
	Connect(ctx context.Context) error
}

// newWatchPass returns the function run on every watch pass. After a pass
// fails with a RemoteError the next pass reconnects before applying.
func newWatchPass(client session, flags *watchFlags, mode model.Mode, logger zerolog.Logger, out io.Writer) func(context.Context) {
	reconnect := false
	pass := func(ctx context.Context) {
		if reconnect {
			if err := client.Connect(ctx); err != nil {
				logger.Error().Err(err).Msg("reconnect failed, will retry on the next pass")
				return
			}
			reconnect = false
		}

		// The file is reloaded on every pass; a broken save is reported
		// and the previous state on CloudVision is left as is.
		topo, err := topology.LoadFile(flags.topology)
		if err != nil {
			logger.Error().Err(err).Msg("topology not applied")
			return
		}

		err = applyOnce(ctx, client, topo, mode, &flags.applyFlags, logger, out)
		if err != nil {
			logger.Error().Err(err).Msg("reconcile pass failed")
			reconnect = model.IsRemoteError(err)
		}
	}
	return pass
}

// watchTopology calls pass once, then after every change to path and on
// every interval tick, until ctx is done. The parent directory is watched
// rather than the file so that editors replacing the file by rename are
// still seen.
func watchTopology(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, pass func(context.Context)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot start file watcher", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "cannot watch "+filepath.Dir(path), err)
	}

	pass(ctx)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	debounce := time.NewTimer(debounceDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("watch stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == path && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce.Reset(debounceDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("file watcher error")

		case <-debounce.C:
			logger.Info().Str("topology", path).Msg("topology changed, reconciling")
			pass(ctx)

		case <-tick:
			logger.Debug().Msg("periodic reconcile")
			pass(ctx)
		}
	}
}
