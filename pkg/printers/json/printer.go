// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package json

import (
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/cli-runtime/pkg/genericiooptions"
	"sigs.k8s.io/rollout-utils/pkg/discovery"
	"sigs.k8s.io/rollout-utils/pkg/printers/printer"
	"sigs.k8s.io/rollout-utils/pkg/rollout"
)

// NewPrinter returns a Printer writing one JSON object per line.
func NewPrinter(ioStreams genericiooptions.IOStreams) printer.Printer {
	return &Printer{
		IOStreams: ioStreams,
		now:       time.Now,
	}
}

type Printer struct {
	IOStreams genericiooptions.IOStreams
	now       func() time.Time
}

func (jp *Printer) PrintResourceTypes(types []discovery.ResourceType, gvks []string) error {
	for i, rt := range types {
		content := map[string]interface{}{
			"name":       rt.Name,
			"group":      rt.APIGroup,
			"version":    rt.Version,
			"kind":       rt.Kind,
			"namespaced": rt.Namespaced,
			"verbs":      rt.Verbs,
		}
		if i < len(gvks) {
			content["gvk"] = gvks[i]
		}
		if err := jp.printEvent("discovery", "resourceType", content); err != nil {
			return err
		}
	}
	return nil
}

func (jp *Printer) PrintCRDs(crds []*discovery.CustomResourceDefinition) error {
	for _, crd := range crds {
		if err := jp.printEvent("discovery", "customResourceDefinition", map[string]interface{}{
			"name":        crd.Name(),
			"group":       crd.Group(),
			"kind":        crd.Kind(),
			"versions":    crd.ServedVersions(),
			"namespaced":  crd.Namespaced(),
			"prunable":    crd.Prunable(),
			"predeployed": crd.Predeployed(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (jp *Printer) PrintRollout(ch <-chan rollout.Event) (*rollout.Summary, error) {
	var printErr error
	summary := rollout.Collect(ch, rollout.ObserverFunc(func(e rollout.Event) {
		if printErr != nil {
			return
		}
		printErr = jp.printRolloutEvent(e)
	}))
	if printErr != nil {
		return summary, printErr
	}
	if summary == nil {
		return nil, fmt.Errorf("rollout ended without a summary")
	}
	return summary, nil
}

func (jp *Printer) printRolloutEvent(e rollout.Event) error {
	switch e.Type {
	case rollout.ResourceUpdateEvent:
		return jp.printEvent("status", "resourceStatus", map[string]interface{}{
			"id":      e.ID,
			"status":  e.Status.String(),
			"message": e.Message,
		})
	case rollout.ErrorEvent:
		return jp.printEvent("error", "error", map[string]interface{}{
			"id":    e.ID,
			"error": e.Error.Error(),
		})
	case rollout.DiagnosticsEvent:
		content := map[string]interface{}{
			"id":     e.ID,
			"status": e.Status.String(),
			"events": e.Events,
		}
		if e.Logs != nil {
			logs := map[string][]string{}
			for _, c := range e.Logs.ContainerNames {
				logs[c] = e.Logs.Lines(c)
			}
			content["logs"] = logs
		}
		return jp.printEvent("status", "diagnostics", content)
	case rollout.CompletedEvent:
		results := make([]interface{}, 0, len(e.Summary.Results()))
		for _, r := range e.Summary.Results() {
			results = append(results, map[string]interface{}{
				"id":      r.ID,
				"status":  r.Status.String(),
				"message": r.Message,
			})
		}
		return jp.printEvent("status", "completed", map[string]interface{}{
			"succeeded": e.Summary.Succeeded(),
			"results":   results,
		})
	}
	return nil
}

func (jp *Printer) printEvent(t, eventType string, content map[string]interface{}) error {
	m := make(map[string]interface{})
	m["timestamp"] = jp.now().UTC().Format(time.RFC3339)
	m["type"] = t
	m["eventType"] = eventType
	for key, val := range content {
		m[key] = val
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(jp.IOStreams.Out, string(b)+"\n")
	return err
}
