// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package diagnostics

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
)

// DefaultTailLines is the number of trailing lines fetched per container.
const DefaultTailLines = 25

// RemoteLogs holds the most recent log lines of every container of a
// workload.
type RemoteLogs struct {
	// ParentID is the "Kind/name" target logs are fetched for.
	ParentID       string
	ContainerNames []string
	// Since bounds the fetched lines to those logged after the rollout
	// started. Unset fetches the tail only.
	Since     time.Time
	TailLines int64

	logger logr.Logger
	lines  map[string][]string
}

// NewRemoteLogs returns an empty RemoteLogs for the containers of parentID.
func NewRemoteLogs(logger logr.Logger, parentID string, containerNames []string, since time.Time) *RemoteLogs {
	return &RemoteLogs{
		ParentID:       parentID,
		ContainerNames: containerNames,
		Since:          since,
		TailLines:      DefaultTailLines,
		logger:         logger.WithValues("object", parentID),
		lines:          make(map[string][]string),
	}
}

// Sync replaces the held lines with a fresh fetch for every container.
// A container whose logs cannot be fetched is logged and left empty.
func (r *RemoteLogs) Sync(ctx context.Context, c clusterclient.Client) {
	lines := make(map[string][]string, len(r.ContainerNames))
	for _, container := range r.ContainerNames {
		raw, err := c.Logs(ctx, r.ParentID, clusterclient.LogOptions{
			Container: container,
			SinceTime: r.Since,
			TailLines: r.TailLines,
		})
		if err != nil {
			r.logger.Error(err, "Failed to fetch container logs", "container", container)
			lines[container] = nil
			continue
		}
		lines[container] = splitLines(raw)
	}
	r.lines = lines
}

// Lines returns the lines held for container.
func (r *RemoteLogs) Lines(container string) []string {
	return r.lines[container]
}

// Empty returns true if no container produced any line.
func (r *RemoteLogs) Empty() bool {
	for _, l := range r.lines {
		if len(l) > 0 {
			return false
		}
	}
	return true
}

// Print writes the logs of every container to w in container order.
func (r *RemoteLogs) Print(w io.Writer) error {
	for _, container := range r.ContainerNames {
		lines := r.lines[container]
		if len(lines) == 0 {
			if _, err := fmt.Fprintf(w, "No logs found for container %q of %s\n", container, r.ParentID); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "Logs from %s container %q:\n", r.ParentID, container); err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitLines(raw []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
