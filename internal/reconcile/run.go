package reconcile

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shinji-kodama/cv-container/internal/model"
	"github.com/shinji-kodama/cv-container/internal/topology"
)

// Options configures Run.
type Options struct {
	// Mode selects what Run does. Empty means merge.
	Mode model.Mode

	// CheckMode reports intended creations without sending any.
	CheckMode bool

	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger

	// Tracer defaults to the global OpenTelemetry provider.
	Tracer trace.Tracer
}

// Run reconciles topo against remote and returns the module result.
//
// For merge and override it reads the root container name, orders the
// topology and applies it. A RemoteError reading the root or a
// ConfigurationError from ordering is returned before any container is
// touched. Delete is accepted and returns an unchanged result.
//
// Per-container failures do not make Run fail; callers inspect
// ModuleResult.Failures. When remote also implements DeviceInventory the
// declared devices are checked after the containers and reported in
// ModuleResult.Data.Devices.
func Run(ctx context.Context, remote Remote, topo *model.Topology, opts Options) (model.ModuleResult, error) {
	mode := opts.Mode
	if mode == "" {
		mode = model.ModeMerge
	}
	result := model.NewModuleResult(mode, opts.CheckMode)
	if !mode.IsValid() {
		return result, model.NewConfigurationError("invalid mode", string(mode))
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	ctx, span := tracer.Start(ctx, "reconcile", trace.WithAttributes(
		attribute.String(attrMode, mode.String()),
		attribute.Bool(attrCheckMode, opts.CheckMode),
		attribute.Int("cvp.topology.size", topo.Len()),
	))
	defer span.End()

	err := runMode(ctx, remote, topo, mode, opts.CheckMode, logger, tracer, &result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(attribute.Int("cvp.containers.created", result.Data.CreationResult.CountNewContainers))
	return result, nil
}

func runMode(ctx context.Context, remote Remote, topo *model.Topology, mode model.Mode, checkMode bool, logger zerolog.Logger, tracer trace.Tracer, result *model.ModuleResult) error {
	if !mode.CreatesContainers() {
		logger.Warn().Str("mode", mode.String()).Msg("mode does not reconcile containers yet, nothing to do")
		return nil
	}

	rootName, err := remote.RootContainerName(ctx)
	if err != nil {
		return err
	}
	logger.Debug().Str("root", rootName).Msg("resolved root container")

	order, err := topology.ResolveCreationOrder(topo, rootName)
	if err != nil {
		return err
	}

	applier := NewApplier(remote,
		WithLogger(logger),
		WithTracer(tracer),
		WithCheckMode(checkMode),
	)
	containers, err := applier.Apply(ctx, topo, rootName, order)
	Summarize(result, containers)

	if inventory, ok := remote.(DeviceInventory); ok && err == nil {
		result.Data.Devices = CheckDevices(ctx, inventory, topo, logger, tracer)
	}

	logger.Info().
		Int("created", result.Data.CreationResult.CountNewContainers).
		Int("failed", len(result.Failures())).
		Bool("check_mode", checkMode).
		Msg("reconcile finished")
	return err
}

// Summarize records containers on result and derives the aggregate fields:
// created names in processing order, their count, the task IDs they
// spawned and the changed flag.
func Summarize(result *model.ModuleResult, containers []model.ContainerResult) {
	for _, c := range containers {
		result.Data.Containers = append(result.Data.Containers, c)
		if c.Outcome != model.OutcomeCreated {
			continue
		}
		result.Data.CreationResult.ListNewContainers = append(result.Data.CreationResult.ListNewContainers, c.Name)
		result.Data.TaskIDs = append(result.Data.TaskIDs, c.TaskIDs...)
	}
	result.Data.CreationResult.CountNewContainers = len(result.Data.CreationResult.ListNewContainers)
	result.Changed = result.Data.CreationResult.CountNewContainers > 0
}
