// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package printers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/cli-runtime/pkg/genericiooptions"
	"sigs.k8s.io/rollout-utils/pkg/diagnostics"
	"sigs.k8s.io/rollout-utils/pkg/discovery"
	"sigs.k8s.io/rollout-utils/pkg/podset"
	"sigs.k8s.io/rollout-utils/pkg/rollout"
)

func rolloutEvents() <-chan rollout.Event {
	summary := rollout.NewSummary("ReplicaSet/web", "DaemonSet/agent")
	summary.Record("ReplicaSet/web", podset.StatusFailed, "The following containers encountered errors:\n> app: boom")
	summary.Record("DaemonSet/agent", podset.StatusStable, "")

	ch := make(chan rollout.Event, 5)
	ch <- rollout.Event{Type: rollout.ResourceUpdateEvent, ID: "DaemonSet/agent", Status: podset.StatusStable}
	ch <- rollout.Event{Type: rollout.ResourceUpdateEvent, ID: "ReplicaSet/web", Status: podset.StatusFailed}
	ch <- rollout.Event{
		Type:   rollout.DiagnosticsEvent,
		ID:     "ReplicaSet/web",
		Status: podset.StatusFailed,
		Events: diagnostics.Events{"Pod/web-1": {"BackOff: Back-off restarting failed container (4 events)"}},
	}
	ch <- rollout.Event{Type: rollout.CompletedEvent, Summary: summary}
	close(ch)
	return ch
}

var resourceTypes = []discovery.ResourceType{
	{Name: "deployments", APIGroup: "apps", Version: "v1", Kind: "Deployment", Namespaced: true, Verbs: []string{"delete"}},
	{Name: "pods", Version: "v1", Kind: "Pod", Namespaced: true, Verbs: []string{"delete"}},
}

func TestTablePrinter(t *testing.T) {
	ioStreams, _, out, errOut := genericiooptions.NewTestIOStreams()
	p := GetPrinter(TablePrinter, ioStreams, false)

	require.NoError(t, p.PrintResourceTypes(resourceTypes, []string{"apps/v1/Deployment", "core/v1/Pod"}))
	assert.Contains(t, out.String(), "NAME")
	assert.Contains(t, out.String(), "apps/v1/Deployment")
	assert.Contains(t, out.String(), "core")
	out.Reset()

	summary, err := p.PrintRollout(rolloutEvents())
	require.NoError(t, err)
	assert.False(t, summary.Succeeded())
	assert.Contains(t, out.String(), "ReplicaSet/web is Failed\n")
	assert.Contains(t, out.String(), "[Pod/web-1]\tBackOff: Back-off restarting failed container (4 events)")
	assert.Contains(t, out.String(), "The following containers encountered errors:")
	assert.NotContains(t, out.String(), "> app: boom")
	assert.Empty(t, errOut.String())
}

func TestJSONPrinter(t *testing.T) {
	ioStreams, _, out, _ := genericiooptions.NewTestIOStreams()
	p := GetPrinter(JSONPrinter, ioStreams, false)

	summary, err := p.PrintRollout(rolloutEvents())
	require.NoError(t, err)
	require.NotNil(t, summary)

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(out.Bytes()))
	for scanner.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 4)
	assert.Equal(t, "resourceStatus", lines[0]["eventType"])
	assert.Equal(t, "DaemonSet/agent", lines[0]["id"])
	assert.Equal(t, "diagnostics", lines[2]["eventType"])
	assert.NotContains(t, lines[2], "logs")
	assert.Equal(t, "completed", lines[3]["eventType"])
	assert.Equal(t, false, lines[3]["succeeded"])

	out.Reset()
	require.NoError(t, p.PrintResourceTypes(resourceTypes, nil))
	assert.Contains(t, out.String(), `"kind":"Deployment"`)
}

func TestValidatePrinterType(t *testing.T) {
	assert.True(t, ValidatePrinterType("table"))
	assert.True(t, ValidatePrinterType("json"))
	assert.False(t, ValidatePrinterType("events"))
	assert.Equal(t, TablePrinter, DefaultPrinter())
}
