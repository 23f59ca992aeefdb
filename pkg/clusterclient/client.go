// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package clusterclient contains the boundary between the rollout
// core and the cluster API. Every remote read goes through the Client
// interface; implementations own retries and per-attempt timeouts,
// callers own the decision of what a failure means.
package clusterclient

import (
	"context"
	"errors"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

const (
	// DefaultAttempts is the number of attempts used when GetOptions
	// or LogOptions leave Attempts unset.
	DefaultAttempts = 5

	// OutputJSON requests the JSON representation of the target.
	OutputJSON = "json"
)

// Client executes reads against the cluster API. A non-nil error is the
// only failure signal; the returned payload is undefined when it is set.
type Client interface {
	// Get fetches target. With opts.Raw set, target is an API path such
	// as "/" or "/apis/apps/v1". Otherwise target is a kind ("pods",
	// "CustomResourceDefinition") or a kind/name pair ("ReplicaSet/web").
	Get(ctx context.Context, target string, opts GetOptions) ([]byte, error)

	// Logs fetches container logs for target, which is a pod or a
	// pod-owning workload in "Kind/name" form.
	Logs(ctx context.Context, target string, opts LogOptions) ([]byte, error)
}

// GetOptions adjusts a single Get call.
type GetOptions struct {
	// Raw treats the target as an API path.
	Raw bool

	// Output is the requested output format. Only "json" is understood
	// by every implementation.
	Output string

	// Namespaced scopes the call to the client's namespace.
	Namespaced bool

	// Selector is a label selector in its string form.
	Selector string

	// FieldSelector is a field selector in its string form.
	FieldSelector string

	// Attempts is the number of tries before the call is reported as
	// failed. Zero means DefaultAttempts.
	Attempts int

	// Timeout bounds every attempt. Zero means the client default.
	Timeout time.Duration
}

// LogOptions adjusts a single Logs call.
type LogOptions struct {
	Container string

	// SinceTime only returns lines logged at or after this time when set.
	SinceTime time.Time

	// TailLines limits the number of lines returned when positive.
	TailLines int64

	Attempts int
	Timeout  time.Duration
}

// CommandError is returned for every failed call. Stderr carries the
// error text captured from the cluster.
type CommandError struct {
	Verb     string
	Target   string
	Stderr   string
	NotFound bool
	Err      error
}

func (e *CommandError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "failed to " + e.Verb + " " + e.Target
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if err reports that the target does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.NotFound {
		return true
	}
	return apierrors.IsNotFound(err)
}

// ErrorText returns the text the cluster reported for err.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Error()
	}
	return err.Error()
}

func attemptsOrDefault(attempts int) int {
	if attempts < 1 {
		return DefaultAttempts
	}
	return attempts
}

// splitTarget splits "Kind/name" into its parts. A target without a
// slash is a kind only.
func splitTarget(target string) (kind, name string) {
	kind, name, _ = strings.Cut(target, "/")
	return kind, name
}
