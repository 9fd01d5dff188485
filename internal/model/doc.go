// Package model defines the domain types and value objects for the
// cv-container CLI.
//
// This package contains pure data structures with no external dependencies.
// All entities (ContainerSpec, Topology, ContainerResult, ModuleResult, ...)
// are rebuilt on every invocation. CloudVision itself is the only durable
// state; there are no state files on disk.
//
// The package also defines exit codes (ExitCode), a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling,
// and the typed domain errors (RemoteError, ConfigurationError).
package model
