// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package podset supervises the rollout of workloads that own a set of
// pods, such as ReplicaSets, DaemonSets and StatefulSets. The kind
// specific pieces come from a Controller, everything else is shared.
package podset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
	"sigs.k8s.io/rollout-utils/pkg/config"
	"sigs.k8s.io/rollout-utils/pkg/diagnostics"
	"sigs.k8s.io/rollout-utils/pkg/object"
)

// HugeSetThreshold is the desired pod count from which a set is too large
// for per-pod introspection.
const HugeSetThreshold = 50

// DefaultTimeout is the rollout deadline of a supervised workload.
const DefaultTimeout = 5 * time.Minute

// Options adjusts a Supervisor.
type Options struct {
	// DeployStartedAt is when the rollout started. Events and logs from
	// before it are ignored, timeouts are measured from it.
	DeployStartedAt time.Time

	// Timeout is the rollout deadline of the workload.
	Timeout time.Duration

	// PodTimeout is how long a single pod may stay unready.
	PodTimeout time.Duration

	// Concurrency bounds the number of pods synced in parallel.
	Concurrency int

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Supervisor tracks the rollout of a single pod owning workload.
type Supervisor struct {
	controller Controller
	identity   object.ResourceIdentity
	opts       Options
	logger     logr.Logger

	mu      sync.RWMutex
	syncing bool
	synced  bool
	syncErr error
	obj     *unstructured.Unstructured
	exists  bool
	pods    []*Pod
}

// NewSupervisor returns a Supervisor for the workload called name in the
// namespace of task.
func NewSupervisor(task *config.TaskConfig, controller Controller, name string, opts Options) (*Supervisor, error) {
	id, err := object.NewResourceIdentity(controller.GroupVersion().WithKind(controller.Kind()), task.Namespace, name)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PodTimeout <= 0 {
		opts.PodTimeout = DefaultPodTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.DeployStartedAt.IsZero() {
		opts.DeployStartedAt = opts.Clock()
	}
	return &Supervisor{
		controller: controller,
		identity:   id,
		opts:       opts,
		logger:     task.Logger.WithName("podset").WithValues("object", id.ID()),
	}, nil
}

// Sync takes a fresh snapshot of the workload and its pods. The previous
// snapshot is replaced only once the new one is complete. If the pods
// cannot be listed the error is returned and the status becomes Unknown
// until the next successful sync.
func (s *Supervisor) Sync(ctx context.Context, c clusterclient.Client) error {
	s.mu.Lock()
	s.syncing = true
	s.mu.Unlock()

	obj, exists, pods, err := s.snapshot(ctx, c)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncing = false
	if err != nil {
		s.syncErr = err
		return err
	}
	s.synced = true
	s.syncErr = nil
	s.obj = obj
	s.exists = exists
	s.pods = pods
	return nil
}

func (s *Supervisor) snapshot(ctx context.Context, c clusterclient.Client) (*unstructured.Unstructured, bool, []*Pod, error) {
	raw, err := c.Get(ctx, s.identity.ID(), clusterclient.GetOptions{
		Output:     clusterclient.OutputJSON,
		Namespaced: true,
	})
	if clusterclient.IsNotFound(err) {
		return nil, false, nil, nil
	}
	if err != nil {
		return nil, false, nil, fmt.Errorf("fetching %s: %w", s.identity.ID(), err)
	}
	obj := &unstructured.Unstructured{}
	if err := utiljson.Unmarshal(raw, &obj.Object); err != nil {
		return nil, false, nil, fmt.Errorf("decoding %s: %w", s.identity.ID(), err)
	}

	selector, err := podSelector(obj)
	if err != nil {
		return nil, false, nil, fmt.Errorf("reading pod selector of %s: %w", s.identity.ID(), err)
	}
	raw, err = c.Get(ctx, "pods", clusterclient.GetOptions{
		Output:     clusterclient.OutputJSON,
		Namespaced: true,
		Selector:   selector,
	})
	if err != nil {
		return nil, false, nil, fmt.Errorf("listing pods of %s: %w", s.identity.ID(), err)
	}
	var list corev1.PodList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false, nil, fmt.Errorf("decoding pods of %s: %w", s.identity.ID(), err)
	}

	now := s.opts.Clock()
	var pods []*Pod
	for i := range list.Items {
		if s.controller.OwnsPod(obj, &list.Items[i]) {
			pods = append(pods, NewPod(&list.Items[i], s.opts.DeployStartedAt, now, s.opts.PodTimeout))
		}
	}

	if hugeSet(true, s.controller.DesiredPods(obj)) {
		s.logger.V(3).Info("Huge pod set, using the listed pods as is", "pods", len(pods))
		return obj, true, pods, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range pods {
		pod := pods[i]
		g.Go(func() error {
			err := pod.Sync(gctx, c, now)
			if err == nil {
				return nil
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Error(err, "Failed to refresh pod, using the listed state", "pod", pod.Name())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, nil, fmt.Errorf("syncing pods of %s: %w", s.identity.ID(), err)
	}
	return obj, true, pods, nil
}

// podSelector returns the string form of spec.selector.
func podSelector(obj *unstructured.Unstructured) (string, error) {
	m, found, err := unstructured.NestedMap(obj.Object, "spec", "selector")
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("no selector found")
	}
	bytes, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	var ls metav1.LabelSelector
	if err := json.Unmarshal(bytes, &ls); err != nil {
		return "", err
	}
	selector, err := metav1.LabelSelectorAsSelector(&ls)
	if err != nil {
		return "", err
	}
	return selector.String(), nil
}

// ID returns the "Kind/name" key of the workload.
func (s *Supervisor) ID() string {
	return s.identity.ID()
}

// Identity returns the identity of the workload.
func (s *Supervisor) Identity() object.ResourceIdentity {
	return s.identity
}

// Pods returns the pods of the last snapshot, in cluster list order.
func (s *Supervisor) Pods() []*Pod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Pod(nil), s.pods...)
}

// Exists returns true if the workload was found by the last sync.
func (s *Supervisor) Exists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists
}

// DesiredPods returns the desired pod count, zero if the workload does
// not exist.
func (s *Supervisor) DesiredPods() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.desiredPods()
}

func (s *Supervisor) desiredPods() int {
	if !s.exists || s.obj == nil {
		return 0
	}
	return s.controller.DesiredPods(s.obj)
}

// ReadyPods returns the number of ready pods.
func (s *Supervisor) ReadyPods() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readyPods()
}

func (s *Supervisor) readyPods() int {
	ready := 0
	for _, p := range s.pods {
		if p.Ready() {
			ready++
		}
	}
	return ready
}

// HugeSet returns true if the workload exists and desires at least
// HugeSetThreshold pods.
func (s *Supervisor) HugeSet() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return hugeSet(s.exists, s.desiredPods())
}

func hugeSet(exists bool, desired int) bool {
	return exists && desired >= HugeSetThreshold
}

// FailureMessage returns the distinct failure messages of the pods.
func (s *Supervisor) FailureMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]string, 0, len(s.pods))
	for _, p := range s.pods {
		messages = append(messages, p.FailureMessage())
	}
	return UnionMessages(messages)
}

// TimeoutMessage returns the distinct timeout messages of the pods.
func (s *Supervisor) TimeoutMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := make([]string, 0, len(s.pods))
	for _, p := range s.pods {
		messages = append(messages, p.TimeoutMessage())
	}
	return UnionMessages(messages)
}

// FetchEvents returns the events of the workload merged with those of
// its most useful pod. Events that could be fetched are returned along
// with the error of those that could not.
func (s *Supervisor) FetchEvents(ctx context.Context, c clusterclient.Client) (diagnostics.Events, error) {
	pod := MostUsefulPod(s.Pods())

	events, err := diagnostics.FetchEvents(ctx, c, s.identity, s.opts.DeployStartedAt)
	if events == nil {
		events = diagnostics.Events{}
	}
	if pod == nil {
		return events, err
	}
	podEvents, podErr := diagnostics.FetchEvents(ctx, c, pod.Identity, s.opts.DeployStartedAt)
	events.Merge(podEvents)
	return events, errors.Join(err, podErr)
}

// PrintDebugLogs returns true if there is at least one pod to fetch logs
// from. FetchDebugLogs must not be called otherwise.
func (s *Supervisor) PrintDebugLogs() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pods) > 0
}

// FetchDebugLogs fetches the recent logs of every container of the
// workload's pod template, regular containers first.
func (s *Supervisor) FetchDebugLogs(ctx context.Context, c clusterclient.Client) *diagnostics.RemoteLogs {
	logs := diagnostics.NewRemoteLogs(s.logger, s.identity.ID(), s.ContainerNames(), s.opts.DeployStartedAt)
	logs.Sync(ctx, c)
	return logs
}

// ContainerNames returns the container names of the pod template, regular
// containers first, then init containers.
func (s *Supervisor) ContainerNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.obj == nil {
		return nil
	}
	var names []string
	for _, field := range []string{"containers", "initContainers"} {
		containers, _, _ := unstructured.NestedSlice(s.obj.Object, "spec", "template", "spec", field)
		for _, c := range containers {
			if m, ok := c.(map[string]interface{}); ok {
				if name, ok := m["name"].(string); ok {
					names = append(names, name)
				}
			}
		}
	}
	return names
}

// Status classifies the rollout as of now.
func (s *Supervisor) Status(now time.Time) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.syncing:
		return StatusSyncing
	case !s.synced || s.syncErr != nil:
		return StatusUnknown
	}
	for _, p := range s.pods {
		if p.Failed() {
			return StatusFailed
		}
	}
	if s.exists && s.readyPods() == s.desiredPods() {
		return StatusStable
	}
	if now.Sub(s.opts.DeployStartedAt) > s.opts.Timeout {
		return StatusTimedOut
	}
	return StatusProgressing
}

// SyncError returns the error of the last sync, if it failed.
func (s *Supervisor) SyncError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncErr
}
