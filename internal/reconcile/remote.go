package reconcile

import (
	"context"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// Remote is what the reconciler needs from CloudVision.
//
// Implementations return *model.RemoteError for any transport, status or
// decoding failure and never retry on their own.
type Remote interface {
	// RootContainerName returns the name of the topology root, usually
	// "Tenant".
	RootContainerName(ctx context.Context) (string, error)

	// ContainerExists reports whether a container called name exists.
	ContainerExists(ctx context.Context, name string) (bool, error)

	// ContainerKey returns the opaque key of the container called name, or
	// an error wrapping model.ErrNotFound when there is none.
	ContainerKey(ctx context.Context, name string) (string, error)

	// CreateContainer adds name under the parent identified by parentName
	// and parentKey, and saves the change.
	CreateContainer(ctx context.Context, name, parentName, parentKey string) (model.CreateResponse, error)
}

// DeviceInventory is implemented by remotes that can report where
// provisioned devices sit. Run uses it, when available, to check the
// devices a topology declares.
type DeviceInventory interface {
	// DeviceContainers maps every provisioned device, by hostname and by
	// FQDN, to the name of the container it sits in.
	DeviceContainers(ctx context.Context) (map[string]string, error)
}
