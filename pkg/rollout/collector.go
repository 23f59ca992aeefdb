// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package rollout

// Observer is invoked for every event that comes through the event
// channel, in the collecting goroutine.
type Observer interface {
	Notify(Event)
}

// ObserverFunc is a function implementation of the Observer interface.
type ObserverFunc func(Event)

func (o ObserverFunc) Notify(e Event) {
	o(e)
}

// Collect reads eventChannel until it is closed and returns the Summary of
// the CompletedEvent, or nil if the run ended without one. observer may be
// nil.
func Collect(eventChannel <-chan Event, observer Observer) *Summary {
	var summary *Summary
	for e := range eventChannel {
		if e.Type == CompletedEvent {
			summary = e.Summary
		}
		if observer != nil {
			observer.Notify(e)
		}
	}
	return summary
}
