// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package rollout drives a set of supervised workloads to a terminal
// state by polling the cluster, and collects diagnostics for those that
// fail or time out.
package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
	"sigs.k8s.io/rollout-utils/pkg/diagnostics"
	"sigs.k8s.io/rollout-utils/pkg/podset"
)

const (
	// HugeSetSlowdown multiplies the poll interval while any workload is a
	// huge set.
	HugeSetSlowdown = 4

	// diagnosticsTimeout bounds diagnostic collection once the run
	// context is done.
	diagnosticsTimeout = 30 * time.Second
)

// Supervisor is the view of a supervised workload the Monitor needs.
// *podset.Supervisor implements it.
type Supervisor interface {
	ID() string
	Sync(ctx context.Context, c clusterclient.Client) error
	Status(now time.Time) podset.Status
	FailureMessage() string
	TimeoutMessage() string
	FetchEvents(ctx context.Context, c clusterclient.Client) (diagnostics.Events, error)
	PrintDebugLogs() bool
	FetchDebugLogs(ctx context.Context, c clusterclient.Client) *diagnostics.RemoteLogs
	HugeSet() bool
}

var _ Supervisor = &podset.Supervisor{}

// Options adjusts a single Run.
// The global deadline is not one of the options, it is set on the
// context passed to Run.
type Options struct {
	// PollInterval is how often every workload is synced.
	PollInterval time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Monitor polls supervisors until all of them reach a terminal state.
type Monitor struct {
	Client clusterclient.Client
	Logger logr.Logger
}

// NewMonitor returns a Monitor issuing its calls through c.
func NewMonitor(c clusterclient.Client, logger logr.Logger) *Monitor {
	return &Monitor{Client: c, Logger: logger.WithName("rollout")}
}

// Run polls supervisors and reports progress on the returned channel.
// The channel is closed after the CompletedEvent, which is sent once
// every workload is terminal or ctx is done. Workloads that are not
// terminal when ctx is done are reported as timed out.
func (m *Monitor) Run(ctx context.Context, supervisors []Supervisor, options Options) <-chan Event {
	eventChannel := make(chan Event)

	go func() {
		defer close(eventChannel)

		if options.PollInterval <= 0 {
			eventChannel <- Event{Type: ErrorEvent, Error: fmt.Errorf("poll interval must be positive")}
			return
		}
		if options.Clock == nil {
			options.Clock = time.Now
		}
		r := &runner{
			ctx:          ctx,
			client:       m.Client,
			logger:       m.Logger,
			supervisors:  supervisors,
			options:      options,
			previous:     make(map[string]podset.Status),
			eventChannel: eventChannel,
			summary:      NewSummary(ids(supervisors)...),
		}
		r.run()
	}()

	return eventChannel
}

// runner holds the state of a single Run. It is only accessed by the Run
// goroutine.
type runner struct {
	ctx          context.Context
	client       clusterclient.Client
	logger       logr.Logger
	supervisors  []Supervisor
	options      Options
	previous     map[string]podset.Status
	eventChannel chan Event
	summary      *Summary
}

func (r *runner) run() {
	interval := r.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if done := r.pollAll(); done {
			r.complete()
			return
		}
		if next := r.interval(); next != interval {
			r.logger.V(2).Info("Changing poll interval", "interval", next)
			interval = next
			ticker.Reset(interval)
		}
		select {
		case <-r.ctx.Done():
			r.timeoutRemaining()
			r.complete()
			return
		case <-ticker.C:
		}
	}
}

// interval returns the poll interval, relaxed while a huge set is being
// rolled out.
func (r *runner) interval() time.Duration {
	for _, s := range r.supervisors {
		if !r.summary.terminal(s.ID()) && s.HugeSet() {
			return r.options.PollInterval * HugeSetSlowdown
		}
	}
	return r.options.PollInterval
}

// pollAll syncs every non-terminal supervisor once. It returns true when
// all of them are terminal.
func (r *runner) pollAll() bool {
	for _, s := range r.supervisors {
		if r.summary.terminal(s.ID()) {
			continue
		}
		if err := s.Sync(r.ctx, r.client); err != nil {
			if r.ctx.Err() != nil {
				return false
			}
			r.logger.Error(err, "Sync failed, retrying on the next tick", "object", s.ID())
			r.eventChannel <- Event{Type: ErrorEvent, ID: s.ID(), Error: err}
			continue
		}
		r.observe(r.ctx, s, s.Status(r.options.Clock()))
	}
	return r.summary.allTerminal()
}

func (r *runner) observe(ctx context.Context, s Supervisor, status podset.Status) {
	if prev, found := r.previous[s.ID()]; !found || prev != status {
		r.previous[s.ID()] = status
		r.eventChannel <- Event{
			Type:    ResourceUpdateEvent,
			ID:      s.ID(),
			Status:  status,
			Message: message(s, status),
		}
	}
	if !status.Terminal() {
		return
	}
	r.summary.Record(s.ID(), status, message(s, status))
	if status.NeedsDiagnostics() {
		r.diagnose(ctx, s, status)
	}
}

// diagnose collects events, and logs when there are pods to read them
// from.
func (r *runner) diagnose(ctx context.Context, s Supervisor, status podset.Status) {
	events, err := s.FetchEvents(ctx, r.client)
	if err != nil {
		r.logger.Error(err, "Failed to fetch some events", "object", s.ID())
	}
	e := Event{
		Type:   DiagnosticsEvent,
		ID:     s.ID(),
		Status: status,
		Events: events,
	}
	if s.PrintDebugLogs() {
		e.Logs = s.FetchDebugLogs(ctx, r.client)
	}
	r.eventChannel <- e
}

// timeoutRemaining reports every non-terminal workload as timed out once
// the run context is done.
func (r *runner) timeoutRemaining() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), diagnosticsTimeout)
	defer cancel()
	for _, s := range r.supervisors {
		if r.summary.terminal(s.ID()) {
			continue
		}
		r.observe(ctx, s, podset.StatusTimedOut)
	}
}

func (r *runner) complete() {
	r.eventChannel <- Event{Type: CompletedEvent, Summary: r.summary}
}

func ids(supervisors []Supervisor) []string {
	ids := make([]string, 0, len(supervisors))
	for _, s := range supervisors {
		ids = append(ids, s.ID())
	}
	return ids
}

func message(s Supervisor, status podset.Status) string {
	switch status {
	case podset.StatusFailed:
		return s.FailureMessage()
	case podset.StatusTimedOut:
		return s.TimeoutMessage()
	}
	return ""
}
