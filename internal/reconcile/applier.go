package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// tracerName is the instrumentation scope used when no tracer is injected.
const tracerName = "github.com/shinji-kodama/cv-container/internal/reconcile"

// Span attribute keys.
const (
	attrContainer = "cvp.container.name"
	attrParent    = "cvp.container.parent"
	attrOutcome   = "cvp.container.outcome"
	attrCheckMode = "cvp.check_mode"
	attrMode      = "cvp.mode"
)

// Applier creates missing containers one at a time in creation order.
//
// An Applier is not safe for concurrent use; create one per run.
type Applier struct {
	remote    Remote
	logger    zerolog.Logger
	tracer    trace.Tracer
	checkMode bool
}

// ApplierOption configures an Applier.
type ApplierOption func(*Applier)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) ApplierOption {
	return func(a *Applier) { a.logger = logger }
}

// WithTracer sets the tracer. The default comes from the global
// OpenTelemetry provider.
func WithTracer(tracer trace.Tracer) ApplierOption {
	return func(a *Applier) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// WithCheckMode makes the Applier report what it would create without
// sending any create request.
func WithCheckMode(check bool) ApplierOption {
	return func(a *Applier) { a.checkMode = check }
}

// NewApplier returns an Applier that talks to remote.
func NewApplier(remote Remote, opts ...ApplierOption) *Applier {
	a := &Applier{
		remote: remote,
		logger: zerolog.Nop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// runState holds what one Apply call has learned about CloudVision.
type runState struct {
	// present holds containers known to exist: the root, containers
	// confirmed by an existence check and containers created by this run.
	present map[string]bool

	// planned holds containers that check mode would have created.
	planned map[string]bool
}

// Apply processes every name in order, which must list each container of
// topo after its parent (see topology.ResolveCreationOrder), and returns
// one ContainerResult per container processed.
//
// Remote failures are recorded per container and never abort the loop.
// Apply returns an error, together with the results gathered so far, only
// when ctx is done or order names a container topo does not declare.
func (a *Applier) Apply(ctx context.Context, topo *model.Topology, rootName string, order []string) ([]model.ContainerResult, error) {
	state := &runState{
		present: map[string]bool{rootName: true},
		planned: make(map[string]bool),
	}

	results := make([]model.ContainerResult, 0, len(order))
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("reconcile interrupted before %q: %w", name, err)
		}

		spec, ok := topo.Get(name)
		if !ok {
			return results, model.NewConfigurationError("container order does not match topology", fmt.Sprintf("unknown container %q", name))
		}

		results = append(results, a.applyOne(ctx, state, spec))
	}
	return results, nil
}

// applyOne drives a single container to a terminal outcome.
func (a *Applier) applyOne(ctx context.Context, state *runState, spec model.ContainerSpec) model.ContainerResult {
	ctx, span := a.tracer.Start(ctx, "container "+spec.Name, trace.WithAttributes(
		attribute.String(attrContainer, spec.Name),
		attribute.String(attrParent, spec.ParentContainer),
		attribute.Bool(attrCheckMode, a.checkMode),
	))
	defer span.End()

	log := a.logger.With().
		Str("container", spec.Name).
		Str("parent", spec.ParentContainer).
		Logger()

	result := a.decide(ctx, state, spec, log)

	span.SetAttributes(attribute.String(attrOutcome, result.Outcome.String()))
	if result.Outcome.IsFailure() {
		span.SetStatus(codes.Error, result.Error)
	}
	return result
}

func (a *Applier) decide(ctx context.Context, state *runState, spec model.ContainerSpec, log zerolog.Logger) model.ContainerResult {
	result := model.ContainerResult{
		Name:    spec.Name,
		Parent:  spec.ParentContainer,
		Outcome: model.OutcomeUnknown,
	}
	parent := spec.ParentContainer
	parentPlanned := state.planned[parent]

	// Parent check.
	if !state.present[parent] && !parentPlanned {
		exists, err := a.remote.ContainerExists(ctx, parent)
		if err != nil {
			log.Warn().Err(err).Msg("could not verify parent container")
			return unverified(result, err)
		}
		if !exists {
			log.Warn().Msg("parent container does not exist, skipping")
			result.Outcome = model.OutcomeParentMissing
			return result
		}
		state.present[parent] = true
	}

	// Existence check. Under a planned parent the container cannot exist
	// yet, so the check is skipped.
	if !parentPlanned {
		exists, err := a.remote.ContainerExists(ctx, spec.Name)
		if err != nil {
			log.Warn().Err(err).Msg("could not verify container")
			return unverified(result, err)
		}
		if exists {
			log.Debug().Msg("container already exists")
			state.present[spec.Name] = true
			result.Outcome = model.OutcomeAlreadyExists
			return result
		}
	}

	var parentKey string
	if !parentPlanned {
		key, err := a.remote.ContainerKey(ctx, parent)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				log.Error().Err(err).Msg("parent container key not found")
			} else {
				log.Error().Err(err).Msg("could not look up parent container key")
			}
			return createFailed(result, err)
		}
		parentKey = key
	}

	if a.checkMode {
		log.Info().Msg("check mode: container would be created")
		state.planned[spec.Name] = true
		result.Outcome = model.OutcomeCreated
		result.Simulated = true
		return result
	}

	resp, err := a.remote.CreateContainer(ctx, spec.Name, parent, parentKey)
	if err != nil {
		log.Error().Err(err).Msg("container creation failed")
		return createFailed(result, err)
	}
	if !resp.Succeeded() {
		err := fmt.Errorf("cloudvision answered status %q", resp.Status)
		log.Error().Err(err).Msg("container creation was not accepted")
		return createFailed(result, err)
	}

	log.Info().Strs("task_ids", resp.TaskIDs).Msg("container created")
	state.present[spec.Name] = true
	result.Outcome = model.OutcomeCreated
	result.TaskIDs = append([]string(nil), resp.TaskIDs...)
	return result
}

func unverified(r model.ContainerResult, err error) model.ContainerResult {
	r.Outcome = model.OutcomeUnverified
	r.Error = err.Error()
	return r
}

func createFailed(r model.ContainerResult, err error) model.ContainerResult {
	r.Outcome = model.OutcomeCreateFailed
	r.Error = err.Error()
	return r
}
