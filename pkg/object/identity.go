// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// ResourceIdentity is the information needed to address a
// resource for status reads and diagnostic lookups:
//
//   Group/Version/Kind
//   Namespace
//   Name
//
// Unlike an inventory key, the version is kept: diagnostics
// and discovery results are reported against the exact
// API version the resource was resolved with.

package object

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ResourceIdentity identifies a single resource in the cluster.
// It is immutable once resolved and is used as the join key for
// discovery results and diagnostics.
type ResourceIdentity struct {
	Kind       string
	Name       string
	Namespace  string
	APIGroup   string
	APIVersion string
}

// NewResourceIdentity returns a ResourceIdentity for the passed fields,
// normalizing whitespace. An error is returned if kind or name is empty.
func NewResourceIdentity(gvk schema.GroupVersionKind, namespace, name string) (ResourceIdentity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ResourceIdentity{}, fmt.Errorf("empty name for object")
	}
	if gvk.Kind == "" {
		return ResourceIdentity{}, fmt.Errorf("empty kind for object %q", name)
	}
	return ResourceIdentity{
		Kind:       gvk.Kind,
		Name:       name,
		Namespace:  strings.TrimSpace(namespace),
		APIGroup:   gvk.Group,
		APIVersion: gvk.Version,
	}, nil
}

// UnstructuredToIdentity returns the identity of the passed object.
func UnstructuredToIdentity(obj *unstructured.Unstructured) ResourceIdentity {
	gvk := obj.GroupVersionKind()
	return ResourceIdentity{
		Kind:       gvk.Kind,
		Name:       obj.GetName(),
		Namespace:  obj.GetNamespace(),
		APIGroup:   gvk.Group,
		APIVersion: gvk.Version,
	}
}

// GroupVersionKind returns the GVK of the identity.
func (r ResourceIdentity) GroupVersionKind() schema.GroupVersionKind {
	return schema.GroupVersionKind{Group: r.APIGroup, Version: r.APIVersion, Kind: r.Kind}
}

// GroupKind returns the GroupKind of the identity.
func (r ResourceIdentity) GroupKind() schema.GroupKind {
	return schema.GroupKind{Group: r.APIGroup, Kind: r.Kind}
}

// ID returns the "Kind/name" form used to key events and logs and
// accepted by the cluster client as a target.
func (r ResourceIdentity) ID() string {
	return r.Kind + "/" + r.Name
}

// String returns a human readable representation including the namespace.
func (r ResourceIdentity) String() string {
	if r.Namespace == "" {
		return r.ID()
	}
	return r.Namespace + "/" + r.ID()
}

// Empty returns true if the identity has not been resolved.
func (r ResourceIdentity) Empty() bool {
	return r == ResourceIdentity{}
}
