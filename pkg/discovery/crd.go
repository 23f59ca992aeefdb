// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/rollout-utils/pkg/clusterclient"
	"sigs.k8s.io/rollout-utils/pkg/object"
)

const (
	// PrunableAnnotation marks the custom resources of a CRD as safe to
	// prune when set to "true".
	PrunableAnnotation = "rollout.sigs.k8s.io/prunable"

	// PredeployedAnnotation opts the custom resources of a CRD out of
	// being deployed ahead of other resources when set to "false".
	PredeployedAnnotation = "rollout.sigs.k8s.io/predeployed"
)

// CustomResourceDefinition wraps a CRD manifest fetched from the cluster
// together with the namespace, context and logger of the run that
// discovered it.
type CustomResourceDefinition struct {
	Namespace string
	Context   string

	logger     logr.Logger
	manifest   *unstructured.Unstructured
	definition apiextensionsv1.CustomResourceDefinition
}

// NewCustomResourceDefinition decodes manifest into a CustomResourceDefinition.
func NewCustomResourceDefinition(namespace, kubeContext string, logger logr.Logger,
	manifest *unstructured.Unstructured) (*CustomResourceDefinition, error) {
	crd := &CustomResourceDefinition{
		Namespace: namespace,
		Context:   kubeContext,
		manifest:  manifest,
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(manifest.Object, &crd.definition); err != nil {
		return nil, fmt.Errorf("decoding CustomResourceDefinition %q: %w", manifest.GetName(), err)
	}
	crd.logger = logger.WithValues("crd", crd.Name())
	return crd, nil
}

// CRDs returns the CustomResourceDefinitions installed in the cluster.
// Failing to list them is fatal: on a healthy cluster the listing is
// always available, so a failure means the connection is broken rather
// than that there are none.
func (d *ClusterResourceDiscovery) CRDs(ctx context.Context) ([]*CustomResourceDefinition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.crdsLoaded {
		return d.crds, nil
	}

	raw, err := d.client.Get(ctx, "CustomResourceDefinition", clusterclient.GetOptions{
		Output:   clusterclient.OutputJSON,
		Attempts: discoveryAttempts,
	})
	if err != nil {
		return nil, &FatalKubeAPIError{What: "CustomResourceDefinition", Err: err}
	}
	var list struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &FatalKubeAPIError{What: "CustomResourceDefinition", Err: fmt.Errorf("decoding list: %w", err)}
	}

	crds := make([]*CustomResourceDefinition, 0, len(list.Items))
	for _, item := range list.Items {
		crd, err := NewCustomResourceDefinition(d.task.Namespace, d.task.Context, d.logger,
			&unstructured.Unstructured{Object: item})
		if err != nil {
			return nil, &FatalKubeAPIError{What: "CustomResourceDefinition", Err: err}
		}
		crds = append(crds, crd)
	}
	d.crds = crds
	d.crdsLoaded = true
	return crds, nil
}

// Name returns the name of the CRD, e.g. "widgets.example.com".
func (c *CustomResourceDefinition) Name() string {
	return c.definition.Name
}

// Kind returns the kind of the custom resources.
func (c *CustomResourceDefinition) Kind() string {
	return c.definition.Spec.Names.Kind
}

// Group returns the API group of the custom resources.
func (c *CustomResourceDefinition) Group() string {
	return c.definition.Spec.Group
}

// ServedVersions returns the versions currently served, in definition order.
func (c *CustomResourceDefinition) ServedVersions() []string {
	var versions []string
	for _, v := range c.definition.Spec.Versions {
		if v.Served {
			versions = append(versions, v.Name)
		}
	}
	return versions
}

// GroupVersionKinds returns one GVK per served version.
func (c *CustomResourceDefinition) GroupVersionKinds() []schema.GroupVersionKind {
	var gvks []schema.GroupVersionKind
	for _, v := range c.ServedVersions() {
		gvks = append(gvks, schema.GroupVersionKind{Group: c.Group(), Version: v, Kind: c.Kind()})
	}
	return gvks
}

// Namespaced returns true for namespace scoped custom resources.
func (c *CustomResourceDefinition) Namespaced() bool {
	return c.definition.Spec.Scope == apiextensionsv1.NamespaceScoped
}

// Prunable returns true if the CRD opted its resources into pruning.
func (c *CustomResourceDefinition) Prunable() bool {
	return c.definition.Annotations[PrunableAnnotation] == "true"
}

// Predeployed returns false only if the CRD opted out of predeployment.
func (c *CustomResourceDefinition) Predeployed() bool {
	return c.definition.Annotations[PredeployedAnnotation] != "false"
}

// ID returns the "Kind/name" key of the CRD itself.
func (c *CustomResourceDefinition) ID() string {
	return c.Identity().ID()
}

// Identity returns the identity of the CRD object.
func (c *CustomResourceDefinition) Identity() object.ResourceIdentity {
	return object.ResourceIdentity{
		Kind:       "CustomResourceDefinition",
		Name:       c.Name(),
		APIGroup:   apiextensionsv1.GroupName,
		APIVersion: "v1",
	}
}

// Manifest returns the raw manifest as fetched from the cluster.
func (c *CustomResourceDefinition) Manifest() *unstructured.Unstructured {
	return c.manifest
}

// Logger returns the logger of the run, annotated with the CRD name.
func (c *CustomResourceDefinition) Logger() logr.Logger {
	return c.logger
}

// Validate reports definitions that cannot be used to address custom
// resources.
func (c *CustomResourceDefinition) Validate() error {
	if c.Name() == "" {
		return fmt.Errorf("CustomResourceDefinition has no name")
	}
	if c.Kind() == "" {
		return fmt.Errorf("%s has no kind", c.ID())
	}
	if len(c.ServedVersions()) == 0 {
		return fmt.Errorf("%s serves no versions", c.ID())
	}
	return nil
}
