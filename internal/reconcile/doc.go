// Package reconcile brings CloudVision's container tree in line with the
// user's topology.
//
// This package handles:
//   - The Remote interface: the four CloudVision capabilities the
//     reconciler consumes, implemented by internal/cvp and by test fakes
//   - The Applier, which walks containers in creation order and drives each
//     one through parent check, existence check, key lookup and creation
//   - Run, which dispatches on the requested mode and assembles the
//     ModuleResult record printed by the CLI
//
// Every step is sequential. A failure talking to CloudVision about one
// container is recorded on that container and the run moves on; only a
// failure to read the root container or an unorderable topology stops the
// run before any change is made.
package reconcile
