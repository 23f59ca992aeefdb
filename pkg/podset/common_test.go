// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package podset

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient/fake"
	"sigs.k8s.io/rollout-utils/pkg/config"
	"sigs.k8s.io/rollout-utils/pkg/testutil"
)

var (
	deployStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rsUID       = types.UID("5f9c1d7e-rs")
)

var rsManifest = `
  apiVersion: apps/v1
  kind: ReplicaSet
  metadata:
    name: web
    namespace: web
    uid: 5f9c1d7e-rs
    generation: 2
  spec:
    replicas: 2
    selector:
      matchLabels:
        app: web
    template:
      metadata:
        labels:
          app: web
      spec:
        containers:
        - name: app
          image: nginx:1.25
        - name: sidecar
          image: envoy:1.29
        initContainers:
        - name: migrate
          image: migrate:v4
`

var podListKey = fake.GetKey("pods", clusterclient.GetOptions{Selector: "app=web"})

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestSupervisor(t *testing.T, controller Controller, opts Options) *Supervisor {
	task := config.NewTaskConfig("kind-test", "web", testr.New(t))
	if opts.DeployStartedAt.IsZero() {
		opts.DeployStartedAt = deployStart
	}
	if opts.Clock == nil {
		opts.Clock = fixedClock(deployStart.Add(time.Minute))
	}
	s, err := NewSupervisor(task, controller, "web", opts)
	require.NoError(t, err)
	return s
}

type podMutator func(p *corev1.Pod)

func newPod(name string, owner types.UID, mutators ...podMutator) corev1.Pod {
	p := corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "web",
			Labels:    map[string]string{"app": "web"},
			OwnerReferences: []metav1.OwnerReference{{
				APIVersion: "apps/v1",
				Kind:       "ReplicaSet",
				Name:       "web",
				UID:        owner,
			}},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "app", Image: "nginx:1.25"}},
		},
		Status: corev1.PodStatus{Phase: corev1.PodPending},
	}
	for _, m := range mutators {
		m(&p)
	}
	return p
}

func ready(p *corev1.Pod) {
	p.Status.Phase = corev1.PodRunning
	p.Status.Conditions = []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}}
	p.Status.ContainerStatuses = []corev1.ContainerStatus{{Name: "app", Ready: true, Image: "nginx:1.25"}}
}

func running(p *corev1.Pod) {
	p.Status.Phase = corev1.PodRunning
	p.Status.Conditions = []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionFalse}}
	p.Status.ContainerStatuses = []corev1.ContainerStatus{{Name: "app", Ready: false, Image: "nginx:1.25"}}
}

func imagePullBackOff(p *corev1.Pod) {
	p.Status.ContainerStatuses = []corev1.ContainerStatus{{
		Name:  "app",
		Image: "nginx:1.25",
		State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "ImagePullBackOff"}},
	}}
}

func crashLooping(exitCode int32) podMutator {
	return func(p *corev1.Pod) {
		p.Status.Phase = corev1.PodRunning
		p.Status.ContainerStatuses = []corev1.ContainerStatus{{
			Name:  "app",
			Image: "nginx:1.25",
			State: corev1.ContainerState{Waiting: &corev1.ContainerStateWaiting{Reason: "CrashLoopBackOff"}},
			LastTerminationState: corev1.ContainerState{
				Terminated: &corev1.ContainerStateTerminated{ExitCode: exitCode},
			},
		}}
	}
}

func toJSON(t *testing.T, v interface{}) string {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// scriptPods registers the pod listing and the per-pod fetch of pods.
func scriptPods(t *testing.T, c *fake.Client, pods ...corev1.Pod) {
	c.On(podListKey, fake.Response{Payload: []byte(toJSON(t, corev1.PodList{Items: pods}))})
	for i := range pods {
		c.OnGet("Pod/"+pods[i].Name, clusterclient.GetOptions{}, toJSON(t, pods[i]))
	}
}

func scriptReplicaSet(t *testing.T, c *fake.Client, mutators ...testutil.Mutator) {
	c.OnGet("ReplicaSet/web", clusterclient.GetOptions{}, testutil.JSON(t, rsManifest, mutators...))
}
