// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package podset

import (
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Controller supplies the kind specific pieces of pod set supervision.
type Controller interface {
	// Kind returns the kind of the supervised workload.
	Kind() string

	// GroupVersion returns the API group and version the workload is
	// read with.
	GroupVersion() schema.GroupVersion

	// DesiredPods returns the number of pods obj should be running.
	DesiredPods(obj *unstructured.Unstructured) int

	// OwnsPod returns true if pod belongs to the current generation of
	// parent.
	OwnsPod(parent *unstructured.Unstructured, pod *corev1.Pod) bool
}

// ControllerForKind returns the Controller for kind.
func ControllerForKind(kind string) (Controller, bool) {
	switch kind {
	case "ReplicaSet":
		return ReplicaSet{}, true
	case "DaemonSet":
		return DaemonSet{}, true
	case "StatefulSet":
		return StatefulSet{}, true
	}
	return nil, false
}

// ReplicaSet supervises the pods of a ReplicaSet.
type ReplicaSet struct{}

func (ReplicaSet) Kind() string { return "ReplicaSet" }

func (ReplicaSet) GroupVersion() schema.GroupVersion { return appsv1.SchemeGroupVersion }

func (ReplicaSet) DesiredPods(obj *unstructured.Unstructured) int {
	return replicas(obj)
}

func (ReplicaSet) OwnsPod(parent *unstructured.Unstructured, pod *corev1.Pod) bool {
	return ownedBy(parent, pod)
}

// podTemplateGenerationLabel is set by the DaemonSet controller on every
// pod it creates.
const podTemplateGenerationLabel = "pod-template-generation"

// DaemonSet supervises the pods of a DaemonSet. Pods of a previous
// template generation are not counted.
type DaemonSet struct{}

func (DaemonSet) Kind() string { return "DaemonSet" }

func (DaemonSet) GroupVersion() schema.GroupVersion { return appsv1.SchemeGroupVersion }

func (DaemonSet) DesiredPods(obj *unstructured.Unstructured) int {
	desired, _, _ := unstructured.NestedInt64(obj.Object, "status", "desiredNumberScheduled")
	return int(desired)
}

func (DaemonSet) OwnsPod(parent *unstructured.Unstructured, pod *corev1.Pod) bool {
	if !ownedBy(parent, pod) {
		return false
	}
	generation, found := pod.Labels[podTemplateGenerationLabel]
	if !found {
		return true
	}
	current, known := templateGeneration(parent)
	if !known {
		return true
	}
	return generation == current
}

// templateGeneration returns the generation of the pod template of a
// DaemonSet. metadata.generation also moves on changes outside the
// template, so it cannot be used.
func templateGeneration(parent *unstructured.Unstructured) (string, bool) {
	if g, found, err := unstructured.NestedInt64(parent.Object, "spec", "templateGeneration"); err == nil && found {
		return strconv.FormatInt(g, 10), true
	}
	if g, found := parent.GetAnnotations()[appsv1.DeprecatedTemplateGeneration]; found && g != "" {
		return g, true
	}
	return "", false
}

// StatefulSet supervises the pods of a StatefulSet. Once the update
// revision is known, only pods of that revision are counted.
type StatefulSet struct{}

func (StatefulSet) Kind() string { return "StatefulSet" }

func (StatefulSet) GroupVersion() schema.GroupVersion { return appsv1.SchemeGroupVersion }

func (StatefulSet) DesiredPods(obj *unstructured.Unstructured) int {
	return replicas(obj)
}

func (StatefulSet) OwnsPod(parent *unstructured.Unstructured, pod *corev1.Pod) bool {
	if !ownedBy(parent, pod) {
		return false
	}
	revision, _, _ := unstructured.NestedString(parent.Object, "status", "updateRevision")
	if revision == "" {
		return true
	}
	return pod.Labels[appsv1.ControllerRevisionHashLabelKey] == revision
}

func replicas(obj *unstructured.Unstructured) int {
	r, found, err := unstructured.NestedInt64(obj.Object, "spec", "replicas")
	if err != nil || !found {
		return 1
	}
	return int(r)
}

func ownedBy(parent *unstructured.Unstructured, pod *corev1.Pod) bool {
	for _, ref := range pod.OwnerReferences {
		if ref.UID == parent.GetUID() {
			return true
		}
	}
	return false
}
