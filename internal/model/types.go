// Package model defines the domain types for the cv-container CLI.
//
// The types in this package describe the user's intended container topology,
// what CloudVision reports about it, and the outcome of reconciling the two.
// They are passed between the loader, the reconciler and the CLI output layer.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode is the operating mode requested by the user.
//
// Only merge and override trigger container creation. Delete is accepted so
// that playbooks written for the full module keep working, but it does not
// change anything yet.
type Mode string

const (
	// ModeMerge creates missing containers and leaves extra ones alone.
	ModeMerge Mode = "merge"

	// ModeOverride behaves like merge for container creation.
	ModeOverride Mode = "override"

	// ModeDelete is accepted but not implemented by the reconciler.
	ModeDelete Mode = "delete"
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid checks whether the Mode value is one of the predefined modes.
func (m Mode) IsValid() bool {
	switch m {
	case ModeMerge, ModeOverride, ModeDelete:
		return true
	default:
		return false
	}
}

// CreatesContainers reports whether the mode triggers container creation.
func (m Mode) CreatesContainers() bool {
	return m == ModeMerge || m == ModeOverride
}

// ParseMode converts a string to a Mode. Matching is case-insensitive and
// an empty string selects the default mode (merge).
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModeMerge, nil
	}
	mode := Mode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid mode: %q (valid: merge, override, delete)", s)
	}
	return mode, nil
}

// ContainerSpec is the user's intent for a single CloudVision container.
// It is immutable once loaded.
type ContainerSpec struct {
	// Name is the unique container name. It is the key of the topology
	// mapping in the input file, not a field of the entry itself.
	Name string `json:"-" yaml:"-"`

	// ParentContainer is the name of the container this one lives under.
	// It must resolve to the CloudVision root container or to another
	// container in the same topology.
	ParentContainer string `json:"parent_container" yaml:"parent_container"`

	// Configlets attached to the container. Carried for completeness; the
	// container reconciler does not act on them.
	Configlets []string `json:"configlets,omitempty" yaml:"configlets,omitempty"`

	// Devices expected in the container.
	Devices []string `json:"devices,omitempty" yaml:"devices,omitempty"`

	// Images (EOS bundles) attached to the container.
	Images []string `json:"images,omitempty" yaml:"images,omitempty"`
}

// containerNameRegex mirrors the key pattern accepted by the topology schema.
var containerNameRegex = regexp.MustCompile(`^[A-Za-z0-9._%+ -]+$`)

// ValidateContainerName checks that name can be used as a container name.
func ValidateContainerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("container name must not be empty")
	}
	if !containerNameRegex.MatchString(name) {
		return fmt.Errorf("invalid container name %q: only letters, digits, spaces and . _ %% + - are allowed", name)
	}
	return nil
}

// Topology is the user's intended container tree: an ordered list of
// container specs keyed by unique name. The order is the order in which the
// containers appeared in the input mapping.
type Topology struct {
	specs []ContainerSpec
	index map[string]int
}

// NewTopology builds a Topology from specs, keeping their order.
// It fails if a name is invalid or used twice, or if a parent is missing.
func NewTopology(specs []ContainerSpec) (*Topology, error) {
	t := &Topology{
		specs: make([]ContainerSpec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		if err := ValidateContainerName(spec.Name); err != nil {
			return nil, err
		}
		if _, dup := t.index[spec.Name]; dup {
			return nil, fmt.Errorf("container %q is defined more than once", spec.Name)
		}
		if strings.TrimSpace(spec.ParentContainer) == "" {
			return nil, fmt.Errorf("container %q: parent_container is required", spec.Name)
		}
		t.index[spec.Name] = len(t.specs)
		t.specs = append(t.specs, spec)
	}
	return t, nil
}

// Len returns the number of containers in the topology.
func (t *Topology) Len() int {
	if t == nil {
		return 0
	}
	return len(t.specs)
}

// Specs returns a copy of the container specs in input order.
func (t *Topology) Specs() []ContainerSpec {
	if t == nil {
		return nil
	}
	out := make([]ContainerSpec, len(t.specs))
	copy(out, t.specs)
	return out
}

// Names returns the container names in input order.
func (t *Topology) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.specs))
	for _, s := range t.specs {
		names = append(names, s.Name)
	}
	return names
}

// Get returns the spec for name.
func (t *Topology) Get(name string) (ContainerSpec, bool) {
	if t == nil {
		return ContainerSpec{}, false
	}
	i, ok := t.index[name]
	if !ok {
		return ContainerSpec{}, false
	}
	return t.specs[i], true
}

// Has reports whether the topology declares a container called name.
func (t *Topology) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// RemoteContainer is a container as reported by CloudVision.
type RemoteContainer struct {
	Name string `json:"name"`

	// Key is CloudVision's opaque identifier (e.g. "container_1234_5678"
	// or "root").
	Key string `json:"key"`
}

// CreateResponse is CloudVision's answer to a container creation request.
type CreateResponse struct {
	// Status is "success" when CloudVision accepted the change.
	Status string `json:"status"`

	// TaskIDs lists tasks spawned by the change, if any.
	TaskIDs []string `json:"taskIds"`
}

// Succeeded reports whether CloudVision accepted the change.
func (r CreateResponse) Succeeded() bool {
	return r.Status == "success"
}

// ContainerOutcome is the terminal state of one container after a
// reconciliation pass.
//
//	unknown → parent checked → parent-missing
//	                         → already-exists
//	                         → created
//	                         → create-failed
//	(any remote check failure) → unverified
type ContainerOutcome string

const (
	// OutcomeUnknown means the container has not been processed.
	OutcomeUnknown ContainerOutcome = "unknown"

	// OutcomeParentMissing means the parent does not exist on CloudVision,
	// so nothing was attempted.
	OutcomeParentMissing ContainerOutcome = "parent-missing"

	// OutcomeAlreadyExists means the container was already present.
	OutcomeAlreadyExists ContainerOutcome = "already-exists"

	// OutcomeCreated means the container was created (or, in check mode,
	// would have been).
	OutcomeCreated ContainerOutcome = "created"

	// OutcomeCreateFailed means creation was attempted and did not succeed.
	OutcomeCreateFailed ContainerOutcome = "create-failed"

	// OutcomeUnverified means an existence check failed, so it is unknown
	// whether the container or its parent exists.
	OutcomeUnverified ContainerOutcome = "unverified"
)

// String returns the string representation of ContainerOutcome.
func (o ContainerOutcome) String() string {
	return string(o)
}

// IsFailure reports whether the outcome should count as a partial failure.
func (o ContainerOutcome) IsFailure() bool {
	return o == OutcomeCreateFailed || o == OutcomeUnverified
}

// ContainerResult records what happened to one container.
type ContainerResult struct {
	Name    string           `json:"name"`
	Parent  string           `json:"parent_container"`
	Outcome ContainerOutcome `json:"outcome"`

	// TaskIDs spawned by a successful creation.
	TaskIDs []string `json:"taskIds,omitempty"`

	// Simulated is set when the creation happened in check mode and no
	// request was sent.
	Simulated bool `json:"simulated,omitempty"`

	// Error is the message of the error that led to a failure outcome.
	Error string `json:"error,omitempty"`
}

// DeviceOutcome is the placement state of one declared device. Devices
// are only inspected, never moved.
type DeviceOutcome string

const (
	// DeviceInPlace means the device sits in its declared container.
	DeviceInPlace DeviceOutcome = "in-place"

	// DeviceMisplaced means the device is provisioned under another
	// container.
	DeviceMisplaced DeviceOutcome = "misplaced"

	// DeviceNotFound means the device is not in the CloudVision inventory.
	DeviceNotFound DeviceOutcome = "not-found"

	// DeviceUnverified means the inventory could not be read.
	DeviceUnverified DeviceOutcome = "unverified"
)

// String returns the string representation of DeviceOutcome.
func (o DeviceOutcome) String() string {
	return string(o)
}

// DeviceResult records where a declared device was found.
type DeviceResult struct {
	Hostname  string        `json:"hostname"`
	Container string        `json:"container"`
	Outcome   DeviceOutcome `json:"outcome"`

	// Current is the container the device sits in when it is misplaced.
	Current string `json:"current_container,omitempty"`

	Error string `json:"error,omitempty"`
}

// CreationResult is the aggregate of a container creation pass.
type CreationResult struct {
	CountNewContainers int      `json:"count_new_containers"`
	ListNewContainers  []string `json:"list_new_containers"`
}

// ModuleData is the "data" section of a ModuleResult.
type ModuleData struct {
	TaskIDs        []string          `json:"taskIds"`
	Tasks          []string          `json:"tasks"`
	CreationResult CreationResult    `json:"creation_result"`
	Containers     []ContainerResult `json:"containers"`

	// Devices is the placement report of every device the topology
	// declares, in declaration order.
	Devices []DeviceResult `json:"devices"`
}

// ModuleResult is the record returned by a full run.
type ModuleResult struct {
	Changed   bool       `json:"changed"`
	CheckMode bool       `json:"check_mode"`
	Mode      Mode       `json:"mode"`
	Data      ModuleData `json:"data"`
}

// NewModuleResult returns an empty result with non-nil slices so that JSON
// output shows [] instead of null.
func NewModuleResult(mode Mode, checkMode bool) ModuleResult {
	return ModuleResult{
		Mode:      mode,
		CheckMode: checkMode,
		Data: ModuleData{
			TaskIDs: []string{},
			Tasks:   []string{},
			CreationResult: CreationResult{
				ListNewContainers: []string{},
			},
			Containers: []ContainerResult{},
			Devices:    []DeviceResult{},
		},
	}
}

// Failures returns the container results whose outcome is a failure.
func (r ModuleResult) Failures() []ContainerResult {
	var out []ContainerResult
	for _, c := range r.Data.Containers {
		if c.Outcome.IsFailure() {
			out = append(out, c)
		}
	}
	return out
}

// Misplaced returns the device results not confirmed in their declared
// container. They are reported, not counted as failures.
func (r ModuleResult) Misplaced() []DeviceResult {
	var out []DeviceResult
	for _, d := range r.Data.Devices {
		if d.Outcome != DeviceInPlace {
			out = append(out, d)
		}
	}
	return out
}

// ExitCode defines standard CLI exit codes. These codes allow playbooks,
// scripts and CI systems to tell the outcome of a run apart.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidTopology indicates the topology failed to load, validate
	// or resolve.
	ExitInvalidTopology ExitCode = 2

	// ExitCVPUnreachable indicates CloudVision could not be reached or
	// refused the credentials.
	ExitCVPUnreachable ExitCode = 3

	// ExitPartialFailure indicates the run finished but at least one
	// container could not be created or verified.
	ExitPartialFailure ExitCode = 4
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
