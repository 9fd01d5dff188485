package reconcile

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// CheckDevices compares the devices declared in topo with the CloudVision
// inventory and returns one result per declared device, in declaration
// order. It reads the inventory once and changes nothing.
//
// A failed inventory read marks every device unverified; it is not
// returned as an error.
func CheckDevices(ctx context.Context, inventory DeviceInventory, topo *model.Topology, logger zerolog.Logger, tracer trace.Tracer) []model.DeviceResult {
	results := []model.DeviceResult{}
	declared := 0
	for _, spec := range topo.Specs() {
		declared += len(spec.Devices)
	}
	if declared == 0 {
		return results
	}

	ctx, span := tracer.Start(ctx, "device placement", trace.WithAttributes(
		attribute.Int("cvp.devices.declared", declared),
	))
	defer span.End()

	placement, err := inventory.DeviceContainers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Msg("device inventory not readable, placement unverified")
	}

	misplaced := 0
	for _, spec := range topo.Specs() {
		for _, host := range spec.Devices {
			res := model.DeviceResult{Hostname: host, Container: spec.Name}
			current, found := placement[host]
			switch {
			case err != nil:
				res.Outcome = model.DeviceUnverified
				res.Error = err.Error()
			case !found:
				res.Outcome = model.DeviceNotFound
			case current != spec.Name:
				res.Outcome = model.DeviceMisplaced
				res.Current = current
			default:
				res.Outcome = model.DeviceInPlace
			}
			if res.Outcome == model.DeviceMisplaced || res.Outcome == model.DeviceNotFound {
				misplaced++
				logger.Warn().
					Str("device", host).
					Str("container", spec.Name).
					Str("current", current).
					Str("outcome", res.Outcome.String()).
					Msg("device not in its declared container")
			}
			results = append(results, res)
		}
	}
	span.SetAttributes(attribute.Int("cvp.devices.misplaced", misplaced))
	return results
}
