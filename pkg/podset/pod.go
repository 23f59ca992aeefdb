// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package podset

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
	"sigs.k8s.io/rollout-utils/pkg/object"
)

// DefaultPodTimeout is how long a pod may stay unready after the rollout
// started before it is flagged as timed out.
const DefaultPodTimeout = 10 * time.Minute

// Pod is a child pod of a supervised workload, as last observed.
type Pod struct {
	Identity object.ResourceIdentity

	pod             *corev1.Pod
	exists          bool
	deployStartedAt time.Time
	timeout         time.Duration
	observedAt      time.Time
}

// NewPod wraps a pod snapshot observed at observedAt.
func NewPod(pod *corev1.Pod, deployStartedAt, observedAt time.Time, timeout time.Duration) *Pod {
	if timeout <= 0 {
		timeout = DefaultPodTimeout
	}
	return &Pod{
		Identity: object.ResourceIdentity{
			Kind:       "Pod",
			Name:       pod.Name,
			Namespace:  pod.Namespace,
			APIVersion: "v1",
		},
		pod:             pod,
		exists:          true,
		deployStartedAt: deployStartedAt,
		timeout:         timeout,
		observedAt:      observedAt,
	}
}

// Sync re-fetches the pod. A pod that is gone keeps its identity and
// reports neither failure nor readiness.
func (p *Pod) Sync(ctx context.Context, c clusterclient.Client, now time.Time) error {
	raw, err := c.Get(ctx, p.Identity.ID(), clusterclient.GetOptions{
		Output:     clusterclient.OutputJSON,
		Namespaced: true,
	})
	p.observedAt = now
	if clusterclient.IsNotFound(err) {
		p.exists = false
		p.pod = &corev1.Pod{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", p.Identity.ID(), err)
	}
	var pod corev1.Pod
	if err := json.Unmarshal(raw, &pod); err != nil {
		return fmt.Errorf("decoding %s: %w", p.Identity.ID(), err)
	}
	p.pod = &pod
	p.exists = true
	return nil
}

// Name returns the pod name.
func (p *Pod) Name() string {
	return p.Identity.Name
}

// Exists returns false if the pod disappeared since it was listed.
func (p *Pod) Exists() bool {
	return p.exists
}

// Object returns the last observed pod.
func (p *Pod) Object() *corev1.Pod {
	return p.pod
}

// Ready returns true if the pod completed, or runs and reports the Ready
// condition.
func (p *Pod) Ready() bool {
	if !p.exists {
		return false
	}
	switch p.pod.Status.Phase {
	case corev1.PodSucceeded:
		return true
	case corev1.PodRunning:
	default:
		return false
	}
	for _, cond := range p.pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// Failed returns true if the pod reports a failure.
func (p *Pod) Failed() bool {
	return p.FailureMessage() != ""
}

// FailureMessage describes why the pod cannot become ready, or returns
// an empty string if nothing indicates it will not.
func (p *Pod) FailureMessage() string {
	if !p.exists {
		return ""
	}
	status := p.pod.Status
	if status.Reason == "Evicted" {
		return "Pod was evicted by the node: " + status.Message
	}
	if status.Phase == corev1.PodFailed {
		if status.Message != "" {
			return "Pod status: Failed. " + status.Message
		}
		return "Pod status: Failed."
	}

	var doomed []string
	for _, cs := range append(append([]corev1.ContainerStatus(nil), status.InitContainerStatuses...),
		status.ContainerStatuses...) {
		if reason := containerFailure(cs); reason != "" {
			doomed = append(doomed, fmt.Sprintf("> %s: %s", cs.Name, reason))
		}
	}
	if len(doomed) == 0 {
		return ""
	}
	return "The following containers encountered errors:\n" + strings.Join(doomed, "\n")
}

func containerFailure(cs corev1.ContainerStatus) string {
	if cs.State.Waiting == nil {
		return ""
	}
	waiting := cs.State.Waiting
	switch waiting.Reason {
	case "ImagePullBackOff", "ErrImagePull":
		return fmt.Sprintf("Failed to pull image %s. Did you wish to deploy this image?", cs.Image)
	case "CrashLoopBackOff":
		if t := cs.LastTerminationState.Terminated; t != nil {
			return fmt.Sprintf("Crashing repeatedly (exit %d). See logs for more information.", t.ExitCode)
		}
		return "Crashing repeatedly. See logs for more information."
	case "CreateContainerConfigError":
		return "Failed to generate container configuration: " + waiting.Message
	case "RunContainerError":
		return "Failed to start container: " + waiting.Message
	}
	return ""
}

// TimedOut returns true if the pod stayed unready for longer than its
// timeout since the rollout started.
func (p *Pod) TimedOut() bool {
	if !p.exists || p.deployStartedAt.IsZero() || p.Ready() || p.Failed() {
		return false
	}
	return p.observedAt.Sub(p.deployStartedAt) > p.timeout
}

// TimeoutMessage hints at why a timed out pod is not ready. It is empty
// unless the pod timed out.
func (p *Pod) TimeoutMessage() string {
	if !p.TimedOut() {
		return ""
	}
	for _, cond := range p.pod.Status.Conditions {
		if cond.Type == corev1.PodScheduled && cond.Status == corev1.ConditionFalse &&
			cond.Reason == corev1.PodReasonUnschedulable {
			return "Pod could not be scheduled: " + cond.Message
		}
	}

	probes := map[string]bool{}
	for _, c := range p.pod.Spec.Containers {
		probes[c.Name] = c.ReadinessProbe != nil
	}
	var unready []string
	for _, cs := range p.pod.Status.ContainerStatuses {
		if cs.Ready {
			continue
		}
		if probes[cs.Name] {
			unready = append(unready, "> "+cs.Name+" has not passed its readiness probe")
		} else {
			unready = append(unready, "> "+cs.Name+" is not ready")
		}
	}
	if len(unready) == 0 {
		return fmt.Sprintf("Pod did not become ready within %s.", p.timeout)
	}
	return "The following containers are not ready:\n" + strings.Join(unready, "\n")
}
