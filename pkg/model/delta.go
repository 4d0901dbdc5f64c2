package model

import "sort"

// JobSet is a sorted, de-duplicated list of job IDs.
type JobSet []string

// NewJobSet builds a JobSet from ids, dropping duplicates and empty IDs.
func NewJobSet(ids ...string) JobSet {
	seen := make(map[string]struct{}, len(ids))
	set := make(JobSet, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		set = append(set, id)
	}
	sort.Strings(set)
	return set
}

// Contains reports whether id is in the set.
func (s JobSet) Contains(id string) bool {
	i := sort.SearchStrings(s, id)
	return i < len(s) && s[i] == id
}

// Clone returns a copy of s that callers may keep.
func (s JobSet) Clone() JobSet {
	out := make(JobSet, len(s))
	copy(out, s)
	return out
}

// ConstraintDelta is the result of one controller evaluation: the jobs
// that became constrained and the jobs that became unconstrained for Kind.
// The two sets are disjoint.
type ConstraintDelta struct {
	Kind          ConditionKind `json:"kind"`
	Constrained   JobSet        `json:"constrained"`
	Unconstrained JobSet        `json:"unconstrained"`
}

// Empty reports whether the delta moves no jobs.
func (d ConstraintDelta) Empty() bool {
	return len(d.Constrained) == 0 && len(d.Unconstrained) == 0
}

// ConditionStatus summarizes one controller for status reporting.
type ConditionStatus struct {
	Kind        ConditionKind `json:"kind"`
	Source      Source        `json:"source"`
	Constrained bool          `json:"constrained"`
	Attached    bool          `json:"attached"`
	Tracked     int           `json:"tracked"`
	Error       string        `json:"error,omitempty"`
}
