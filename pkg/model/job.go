package model

import "time"

// JobState represents the lifecycle state of a Job.
type JobState string

const (
	JobStateEnqueued  JobState = "ENQUEUED"
	JobStateRunning   JobState = "RUNNING"
	JobStateSucceeded JobState = "SUCCEEDED"
	JobStateFailed    JobState = "FAILED"
	JobStateCancelled JobState = "CANCELLED"
)

// String returns the string representation of the job state.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if the job is in a final state.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// ValidJobTransitions defines the allowed state transitions for Jobs.
// RUNNING -> ENQUEUED is a halt caused by a newly violated constraint.
var ValidJobTransitions = map[JobState][]JobState{
	JobStateEnqueued: {JobStateRunning, JobStateCancelled},
	JobStateRunning:  {JobStateEnqueued, JobStateSucceeded, JobStateFailed, JobStateCancelled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s JobState) CanTransitionTo(next JobState) bool {
	for _, allowed := range ValidJobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NetworkRequirement is the network type a job declares.
type NetworkRequirement string

const (
	NetworkNone       NetworkRequirement = "NONE"
	NetworkAny        NetworkRequirement = "ANY"
	NetworkUnmetered  NetworkRequirement = "UNMETERED"
	NetworkNotRoaming NetworkRequirement = "NOT_ROAMING"
	NetworkMetered    NetworkRequirement = "METERED"
)

// ConditionKind returns the condition kind for the requirement, or "" for NONE.
func (r NetworkRequirement) ConditionKind() ConditionKind {
	switch r {
	case NetworkAny:
		return ConditionNetworkAny
	case NetworkUnmetered:
		return ConditionNetworkUnmetered
	case NetworkNotRoaming:
		return ConditionNetworkNotRoaming
	case NetworkMetered:
		return ConditionNetworkMetered
	}
	return ""
}

// Valid reports whether r is a known requirement. The empty string counts as NONE.
func (r NetworkRequirement) Valid() bool {
	switch r {
	case "", NetworkNone, NetworkAny, NetworkUnmetered, NetworkNotRoaming, NetworkMetered:
		return true
	}
	return false
}

// Constraints are the conditions a job requires before it may run.
type Constraints struct {
	RequiredNetwork       NetworkRequirement `json:"required_network,omitempty"`
	RequiresBatteryNotLow bool               `json:"requires_battery_not_low,omitempty"`
	RequiresCharging      bool               `json:"requires_charging,omitempty"`
	RequiresStorageNotLow bool               `json:"requires_storage_not_low,omitempty"`
}

// Kinds lists the condition kinds declared by c, in AllConditionKinds order.
func (c Constraints) Kinds() []ConditionKind {
	var kinds []ConditionKind
	if k := c.RequiredNetwork.ConditionKind(); k != "" {
		kinds = append(kinds, k)
	}
	if c.RequiresBatteryNotLow {
		kinds = append(kinds, ConditionBatteryNotLow)
	}
	if c.RequiresCharging {
		kinds = append(kinds, ConditionBatteryCharging)
	}
	if c.RequiresStorageNotLow {
		kinds = append(kinds, ConditionStorageNotLow)
	}
	return kinds
}

// Has reports whether c declares the given kind.
func (c Constraints) Has(kind ConditionKind) bool {
	for _, k := range c.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// Job is a persisted unit of background work gated by constraints.
type Job struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	State       JobState    `json:"state"`
	Constraints Constraints `json:"constraints"`
	HaltCount   int         `json:"halt_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}
