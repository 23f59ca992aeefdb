// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package clusterclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/fields"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/rollout-utils/pkg/config"
)

// REST is a Client that talks to the API server in-process. Objects are
// read as unstructured through a controller-runtime client.Reader, raw
// paths through the discovery REST client and logs through the typed
// clientset.
type REST struct {
	Namespace      string
	DefaultTimeout time.Duration
	Retry          RetryPolicy

	logger    logr.Logger
	reader    client.Reader
	mapper    meta.RESTMapper
	raw       rest.Interface
	clientset kubernetes.Interface
}

var _ Client = &REST{}

// NewREST returns a REST Client for cfg scoped to the namespace of task.
func NewREST(cfg *rest.Config, task *config.TaskConfig, opts config.RunOptions) (*REST, error) {
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(clientset.Discovery()))
	reader, err := client.New(cfg, client.Options{Mapper: mapper})
	if err != nil {
		return nil, fmt.Errorf("failed to create object reader: %w", err)
	}
	return &REST{
		Namespace:      task.Namespace,
		DefaultTimeout: opts.Timeout,
		Retry:          DefaultRetryPolicy(),
		logger:         task.Logger,
		reader:         reader,
		mapper:         mapper,
		raw:            clientset.Discovery().RESTClient(),
		clientset:      clientset,
	}, nil
}

func (r *REST) Get(ctx context.Context, target string, opts GetOptions) ([]byte, error) {
	if opts.Output != "" && opts.Output != OutputJSON {
		return nil, &CommandError{Verb: "get", Target: target,
			Err: fmt.Errorf("unsupported output format %q", opts.Output)}
	}
	return withRetries(ctx, r.logger, "get", target, opts.Attempts, r.timeout(opts.Timeout), r.Retry,
		func(attemptCtx context.Context) ([]byte, error) {
			out, err := r.get(attemptCtx, target, opts)
			return out, wrapAPIError("get", target, err)
		})
}

func (r *REST) get(ctx context.Context, target string, opts GetOptions) ([]byte, error) {
	if opts.Raw {
		return r.raw.Get().AbsPath(target).DoRaw(ctx)
	}

	kind, name := splitTarget(target)
	gvk, err := r.kindFor(kind)
	if err != nil {
		return nil, err
	}
	namespace := ""
	if opts.Namespaced {
		namespace = r.Namespace
	}

	if name != "" {
		var u unstructured.Unstructured
		u.SetGroupVersionKind(gvk)
		if err := r.reader.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, &u); err != nil {
			return nil, err
		}
		return u.MarshalJSON()
	}

	listOpts, err := listOptions(namespace, opts)
	if err != nil {
		return nil, err
	}
	var list unstructured.UnstructuredList
	list.SetGroupVersionKind(gvk.GroupVersion().WithKind(gvk.Kind + "List"))
	if err := r.reader.List(ctx, &list, listOpts...); err != nil {
		return nil, err
	}
	return list.MarshalJSON()
}

func (r *REST) Logs(ctx context.Context, target string, opts LogOptions) ([]byte, error) {
	return withRetries(ctx, r.logger, "logs", target, opts.Attempts, r.timeout(opts.Timeout), r.Retry,
		func(attemptCtx context.Context) ([]byte, error) {
			out, err := r.logs(attemptCtx, target, opts)
			return out, wrapAPIError("logs", target, err)
		})
}

func (r *REST) logs(ctx context.Context, target string, opts LogOptions) ([]byte, error) {
	podName, err := r.podForTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	return r.clientset.CoreV1().Pods(r.Namespace).GetLogs(podName, podLogOptions(opts)).DoRaw(ctx)
}

func podLogOptions(opts LogOptions) *corev1.PodLogOptions {
	podOpts := &corev1.PodLogOptions{Container: opts.Container}
	if !opts.SinceTime.IsZero() {
		podOpts.SinceTime = ptr.To(metav1.NewTime(opts.SinceTime))
	}
	if opts.TailLines > 0 {
		podOpts.TailLines = ptr.To(opts.TailLines)
	}
	return podOpts
}

// podForTarget resolves a log target to a pod name. Workloads resolve to
// the first pod, by name, matched by their selector.
func (r *REST) podForTarget(ctx context.Context, target string) (string, error) {
	kind, name := splitTarget(target)
	if name == "" {
		return "", fmt.Errorf("log target %q must be in Kind/name form", target)
	}
	if strings.EqualFold(kind, "pod") || strings.EqualFold(kind, "pods") {
		return name, nil
	}

	gvk, err := r.kindFor(kind)
	if err != nil {
		return "", err
	}
	var owner unstructured.Unstructured
	owner.SetGroupVersionKind(gvk)
	if err := r.reader.Get(ctx, client.ObjectKey{Namespace: r.Namespace, Name: name}, &owner); err != nil {
		return "", err
	}
	matchLabels, found, err := unstructured.NestedStringMap(owner.Object, "spec", "selector", "matchLabels")
	if err != nil {
		return "", err
	}
	if !found || len(matchLabels) == 0 {
		return "", fmt.Errorf("%s has no pod selector", target)
	}

	var pods corev1.PodList
	if err := r.reader.List(ctx, &pods, client.InNamespace(r.Namespace), client.MatchingLabels(matchLabels)); err != nil {
		return "", err
	}
	if len(pods.Items) == 0 {
		return "", fmt.Errorf("no pods found for %s", target)
	}
	names := make([]string, 0, len(pods.Items))
	for i := range pods.Items {
		names = append(names, pods.Items[i].Name)
	}
	sort.Strings(names)
	return names[0], nil
}

// kindFor resolves a kind, resource or short name ("Pod", "pods",
// "CustomResourceDefinition") to the preferred GroupVersionKind.
func (r *REST) kindFor(kind string) (schema.GroupVersionKind, error) {
	gvr, err := r.mapper.ResourceFor(schema.GroupVersionResource{Resource: strings.ToLower(kind)})
	if err != nil {
		return schema.GroupVersionKind{}, err
	}
	return r.mapper.KindFor(gvr)
}

func (r *REST) timeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return r.DefaultTimeout
}

func listOptions(namespace string, opts GetOptions) ([]client.ListOption, error) {
	var listOpts []client.ListOption
	if namespace != "" {
		listOpts = append(listOpts, client.InNamespace(namespace))
	}
	if opts.Selector != "" {
		selector, err := labels.Parse(opts.Selector)
		if err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", opts.Selector, err)
		}
		listOpts = append(listOpts, client.MatchingLabelsSelector{Selector: selector})
	}
	if opts.FieldSelector != "" {
		selector, err := fields.ParseSelector(opts.FieldSelector)
		if err != nil {
			return nil, fmt.Errorf("invalid field selector %q: %w", opts.FieldSelector, err)
		}
		listOpts = append(listOpts, client.MatchingFieldsSelector{Selector: selector})
	}
	return listOpts, nil
}

func wrapAPIError(verb, target string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{
		Verb:     verb,
		Target:   target,
		NotFound: apierrors.IsNotFound(err),
		Err:      err,
	}
}
