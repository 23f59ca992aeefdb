// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package diagnostics collects the cluster events and container logs that
// are printed when a rollout fails or times out.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/fields"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
	"sigs.k8s.io/rollout-utils/pkg/object"
)

// Events holds formatted event lines keyed by the "Kind/name" ID of the
// object they were reported for.
type Events map[string][]string

// Merge adds the entries of other to e. Lines of an ID present in both
// are appended.
func (e Events) Merge(other Events) Events {
	for id, lines := range other {
		e[id] = append(e[id], lines...)
	}
	return e
}

// IDs returns the IDs with at least one event, sorted.
func (e Events) IDs() []string {
	var ids []string
	for id, lines := range e {
		if len(lines) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// FetchEvents returns the events reported for id that were last seen at
// or after since.
func FetchEvents(ctx context.Context, c clusterclient.Client, id object.ResourceIdentity, since time.Time) (Events, error) {
	selector := fields.Set{
		"involvedObject.kind": id.Kind,
		"involvedObject.name": id.Name,
	}.String()

	raw, err := c.Get(ctx, "events", clusterclient.GetOptions{
		Output:        clusterclient.OutputJSON,
		Namespaced:    true,
		FieldSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching events for %s: %w", id.ID(), err)
	}

	var list corev1.EventList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decoding events for %s: %w", id.ID(), err)
	}

	events := Events{}
	for i := range list.Items {
		ev := &list.Items[i]
		if lastSeen(ev).Before(since) {
			continue
		}
		events[id.ID()] = append(events[id.ID()], FormatEvent(ev))
	}
	return events, nil
}

// FormatEvent renders ev as "<Reason>: <Message> (<Count> events)".
func FormatEvent(ev *corev1.Event) string {
	count := ev.Count
	if count == 0 {
		count = 1
	}
	return fmt.Sprintf("%s: %s (%d events)", ev.Reason, ev.Message, count)
}

func lastSeen(ev *corev1.Event) time.Time {
	switch {
	case !ev.LastTimestamp.IsZero():
		return ev.LastTimestamp.Time
	case ev.Series != nil && !ev.Series.LastObservedTime.IsZero():
		return ev.Series.LastObservedTime.Time
	case !ev.EventTime.IsZero():
		return ev.EventTime.Time
	default:
		return ev.FirstTimestamp.Time
	}
}
