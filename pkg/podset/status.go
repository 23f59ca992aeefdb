// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package podset

// Status is the rollout state of a supervised workload.
type Status string

const (
	// StatusUnknown is reported before the first sync and after a failed one.
	StatusUnknown     Status = "Unknown"
	StatusSyncing     Status = "Syncing"
	StatusStable      Status = "Stable"
	StatusProgressing Status = "Progressing"
	StatusFailed      Status = "Failed"
	StatusTimedOut    Status = "TimedOut"
)

// Terminal returns true for states the rollout does not leave.
func (s Status) Terminal() bool {
	switch s {
	case StatusStable, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// NeedsDiagnostics returns true for states that warrant printing events
// and logs.
func (s Status) NeedsDiagnostics() bool {
	return s == StatusFailed || s == StatusTimedOut
}

func (s Status) String() string {
	return string(s)
}
