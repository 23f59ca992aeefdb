// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package podset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/rollout-utils/pkg/testutil"
)

var dsManifest = `
  apiVersion: apps/v1
  kind: DaemonSet
  metadata:
    name: agent
    namespace: web
    uid: 5f9c1d7e-rs
    generation: 3
    annotations:
      deprecated.daemonset.template.generation: "2"
  spec:
    selector:
      matchLabels:
        app: agent
  status:
    desiredNumberScheduled: 4
`

var stsManifest = `
  apiVersion: apps/v1
  kind: StatefulSet
  metadata:
    name: db
    namespace: web
    uid: 5f9c1d7e-rs
  spec:
    replicas: 3
    selector:
      matchLabels:
        app: db
  status:
    updateRevision: db-7d9f
`

func withLabel(key, value string) podMutator {
	return func(p *corev1.Pod) {
		p.Labels[key] = value
	}
}

func TestControllerDesiredPods(t *testing.T) {
	testCases := map[string]struct {
		controller Controller
		manifest   string
		mutators   []testutil.Mutator
		expected   int
	}{
		"replicaset replicas": {
			controller: ReplicaSet{},
			manifest:   rsManifest,
			expected:   2,
		},
		"replicaset defaults to one": {
			controller: ReplicaSet{},
			manifest: `
              apiVersion: apps/v1
              kind: ReplicaSet
              metadata:
                name: web
            `,
			expected: 1,
		},
		"replicaset scaled to zero": {
			controller: ReplicaSet{},
			manifest:   rsManifest,
			mutators:   []testutil.Mutator{testutil.WithNestedField(int64(0), "spec", "replicas")},
			expected:   0,
		},
		"daemonset scheduled count": {
			controller: DaemonSet{},
			manifest:   dsManifest,
			expected:   4,
		},
		"statefulset replicas": {
			controller: StatefulSet{},
			manifest:   stsManifest,
			expected:   3,
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			obj := testutil.Unstructured(t, tc.manifest, tc.mutators...)
			assert.Equal(t, tc.expected, tc.controller.DesiredPods(obj))
		})
	}
}

func TestControllerOwnsPod(t *testing.T) {
	testCases := map[string]struct {
		controller Controller
		manifest   string
		mutators   []testutil.Mutator
		pod        corev1.Pod
		expected   bool
	}{
		"replicaset owner": {
			controller: ReplicaSet{},
			manifest:   rsManifest,
			pod:        newPod("web-1", rsUID),
			expected:   true,
		},
		"replicaset other owner": {
			controller: ReplicaSet{},
			manifest:   rsManifest,
			pod:        newPod("web-1", "other"),
			expected:   false,
		},
		"daemonset current template generation": {
			controller: DaemonSet{},
			manifest:   dsManifest,
			pod:        newPod("agent-x", rsUID, withLabel("pod-template-generation", "2")),
			expected:   true,
		},
		"daemonset generation bumped, template unchanged": {
			controller: DaemonSet{},
			manifest:   dsManifest,
			mutators:   []testutil.Mutator{testutil.WithNestedField(int64(5), "metadata", "generation")},
			pod:        newPod("agent-x", rsUID, withLabel("pod-template-generation", "2")),
			expected:   true,
		},
		"daemonset previous template generation": {
			controller: DaemonSet{},
			manifest:   dsManifest,
			pod:        newPod("agent-x", rsUID, withLabel("pod-template-generation", "1")),
			expected:   false,
		},
		"daemonset spec template generation wins": {
			controller: DaemonSet{},
			manifest:   dsManifest,
			mutators:   []testutil.Mutator{testutil.WithNestedField(int64(4), "spec", "templateGeneration")},
			pod:        newPod("agent-x", rsUID, withLabel("pod-template-generation", "4")),
			expected:   true,
		},
		"daemonset without known template generation": {
			controller: DaemonSet{},
			manifest: `
              apiVersion: apps/v1
              kind: DaemonSet
              metadata:
                name: agent
                uid: 5f9c1d7e-rs
                generation: 3
            `,
			pod:      newPod("agent-x", rsUID, withLabel("pod-template-generation", "1")),
			expected: true,
		},
		"daemonset without generation label": {
			controller: DaemonSet{},
			manifest:   dsManifest,
			pod:        newPod("agent-x", rsUID),
			expected:   true,
		},
		"statefulset update revision": {
			controller: StatefulSet{},
			manifest:   stsManifest,
			pod:        newPod("db-0", rsUID, withLabel("controller-revision-hash", "db-7d9f")),
			expected:   true,
		},
		"statefulset old revision": {
			controller: StatefulSet{},
			manifest:   stsManifest,
			pod:        newPod("db-0", rsUID, withLabel("controller-revision-hash", "db-55aa")),
			expected:   false,
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			parent := testutil.Unstructured(t, tc.manifest, tc.mutators...)
			assert.Equal(t, tc.expected, tc.controller.OwnsPod(parent, &tc.pod))
		})
	}
}

func TestControllerForKind(t *testing.T) {
	for _, kind := range []string{"ReplicaSet", "DaemonSet", "StatefulSet"} {
		c, found := ControllerForKind(kind)
		if assert.True(t, found, kind) {
			assert.Equal(t, kind, c.Kind())
			assert.Equal(t, "apps/v1", c.GroupVersion().String())
		}
	}
	_, found := ControllerForKind("Deployment")
	assert.False(t, found)
}
