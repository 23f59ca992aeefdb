// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"sigs.k8s.io/rollout-utils/pkg/diagnostics"
	"sigs.k8s.io/rollout-utils/pkg/podset"
)

// EventType identifies the kind of an Event.
type EventType int

const (
	// ResourceUpdateEvent reports a status change of a single workload.
	ResourceUpdateEvent EventType = iota
	// DiagnosticsEvent carries the events and logs of a workload that
	// failed or timed out.
	DiagnosticsEvent
	// ErrorEvent reports a sync failure. The workload is retried on the
	// next tick.
	ErrorEvent
	// CompletedEvent is the last event sent. It carries the Summary.
	CompletedEvent
)

func (t EventType) String() string {
	switch t {
	case ResourceUpdateEvent:
		return "ResourceUpdateEvent"
	case DiagnosticsEvent:
		return "DiagnosticsEvent"
	case ErrorEvent:
		return "ErrorEvent"
	case CompletedEvent:
		return "CompletedEvent"
	}
	return "UnknownEvent"
}

// Event is sent on the channel returned by Monitor.Run.
type Event struct {
	Type EventType

	// ID is the "Kind/name" key of the workload the event is about.
	// Empty for CompletedEvent.
	ID string

	Status  podset.Status
	Message string
	Error   error

	// Events and Logs are set on DiagnosticsEvent. Logs is nil when the
	// workload had no pods to fetch logs from.
	Events diagnostics.Events
	Logs   *diagnostics.RemoteLogs

	Summary *Summary
}
