// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"fmt"

	"sigs.k8s.io/rollout-utils/pkg/podset"
)

// Result is the terminal state of a single workload.
type Result struct {
	ID      string
	Status  podset.Status
	Message string
}

// Summary holds the results of a Run. It is written by the Run goroutine
// only and must be read after the CompletedEvent was received.
type Summary struct {
	order   []string
	results map[string]Result
}

// NewSummary returns an empty Summary for the workloads with the given IDs.
func NewSummary(ids ...string) *Summary {
	return &Summary{
		order:   ids,
		results: make(map[string]Result, len(ids)),
	}
}

// Record stores the terminal state of a workload.
func (s *Summary) Record(id string, status podset.Status, message string) {
	s.results[id] = Result{ID: id, Status: status, Message: message}
}

func (s *Summary) terminal(id string) bool {
	_, found := s.results[id]
	return found
}

func (s *Summary) allTerminal() bool {
	for _, id := range s.order {
		if !s.terminal(id) {
			return false
		}
	}
	return true
}

// Results returns the result of every workload, in the order they were
// passed to Run.
func (s *Summary) Results() []Result {
	results := make([]Result, 0, len(s.order))
	for _, id := range s.order {
		if r, found := s.results[id]; found {
			results = append(results, r)
		}
	}
	return results
}

// Result returns the result of the workload with the given ID.
func (s *Summary) Result(id string) (Result, bool) {
	r, found := s.results[id]
	return r, found
}

// Succeeded returns true if every workload became stable.
func (s *Summary) Succeeded() bool {
	for _, id := range s.order {
		if s.results[id].Status != podset.StatusStable {
			return false
		}
	}
	return true
}

// Count returns the number of workloads that ended in status.
func (s *Summary) Count(status podset.Status) int {
	n := 0
	for _, r := range s.results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Err returns nil if every workload became stable. Otherwise it returns a
// *FailureError when at least one workload failed, or a *TimeoutError
// when the others timed out.
func (s *Summary) Err() error {
	if s.Succeeded() {
		return nil
	}
	var failed, timedOut []Result
	for _, r := range s.Results() {
		switch r.Status {
		case podset.StatusFailed:
			failed = append(failed, r)
		case podset.StatusTimedOut:
			timedOut = append(timedOut, r)
		}
	}
	if len(failed) > 0 {
		return &FailureError{Failed: failed, Total: len(s.order)}
	}
	return &TimeoutError{TimedOut: timedOut, Total: len(s.order)}
}

// FailureError is returned when at least one workload failed.
type FailureError struct {
	Failed []Result
	Total  int
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%d of %d workloads failed", len(e.Failed), e.Total)
}

// TimeoutError is returned when no workload failed but some did not
// become stable in time.
type TimeoutError struct {
	TimedOut []Result
	Total    int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%d of %d workloads timed out", len(e.TimedOut), e.Total)
}
