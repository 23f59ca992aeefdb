// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// The testutil package houses utility function for testing.

package testutil

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	utiljson "k8s.io/apimachinery/pkg/util/json"
)

// Unstructured translates the passed yaml manifest into an object in
// Unstructured format. The mutators modify the object before it is
// returned.
func Unstructured(t *testing.T, manifest string, mutators ...Mutator) *unstructured.Unstructured {
	var m map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(dedent(manifest)), &m))

	// Round trip through JSON so numbers are int64 like in objects
	// decoded from the cluster.
	b, err := json.Marshal(m)
	require.NoError(t, err)
	u := &unstructured.Unstructured{}
	require.NoError(t, utiljson.Unmarshal(b, &u.Object))

	for _, mut := range mutators {
		mut.Mutate(t, u)
	}
	return u
}

// JSON returns the JSON payload the cluster would return for manifest.
func JSON(t *testing.T, manifest string, mutators ...Mutator) string {
	b, err := Unstructured(t, manifest, mutators...).MarshalJSON()
	require.NoError(t, err)
	return string(b)
}

// List returns the JSON payload of a List holding the given objects.
func List(t *testing.T, objs ...*unstructured.Unstructured) string {
	items := make([]interface{}, 0, len(objs))
	for _, obj := range objs {
		items = append(items, obj.Object)
	}
	b, err := json.Marshal(map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "List",
		"items":      items,
	})
	require.NoError(t, err)
	return string(b)
}

// Mutator updates an object while it is translated from yaml.
type Mutator interface {
	Mutate(t *testing.T, u *unstructured.Unstructured)
}

// MutatorFunc adapts a function to the Mutator interface.
type MutatorFunc func(t *testing.T, u *unstructured.Unstructured)

func (f MutatorFunc) Mutate(t *testing.T, u *unstructured.Unstructured) {
	f(t, u)
}

// WithName sets the name of the object.
func WithName(name string) Mutator {
	return MutatorFunc(func(_ *testing.T, u *unstructured.Unstructured) {
		u.SetName(name)
	})
}

// WithNestedField sets the value at the given path.
func WithNestedField(value interface{}, fields ...string) Mutator {
	return MutatorFunc(func(t *testing.T, u *unstructured.Unstructured) {
		require.NoError(t, unstructured.SetNestedField(u.Object, value, fields...))
	})
}

// WithLabel sets a single label of the object.
func WithLabel(key, value string) Mutator {
	return MutatorFunc(func(_ *testing.T, u *unstructured.Unstructured) {
		labels := u.GetLabels()
		if labels == nil {
			labels = map[string]string{}
		}
		labels[key] = value
		u.SetLabels(labels)
	})
}

// dedent strips the indentation of the first non-empty line from every
// line, so manifests can be indented along with the test code.
func dedent(manifest string) string {
	lines := strings.Split(manifest, "\n")
	indent := ""
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent = l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		break
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, indent)
	}
	return strings.Join(lines, "\n")
}
