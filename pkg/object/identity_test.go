// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestNewResourceIdentity(t *testing.T) {
	testCases := map[string]struct {
		gvk       schema.GroupVersionKind
		namespace string
		name      string
		expected  ResourceIdentity
		isError   bool
	}{
		"namespace and name are trimmed": {
			gvk:       appsv1.SchemeGroupVersion.WithKind("ReplicaSet"),
			namespace: " test-namespace ",
			name:      " web ",
			expected: ResourceIdentity{
				Kind:       "ReplicaSet",
				Name:       "web",
				Namespace:  "test-namespace",
				APIGroup:   "apps",
				APIVersion: "v1",
			},
		},
		"core group stays empty": {
			gvk:  schema.GroupVersionKind{Version: "v1", Kind: "Pod"},
			name: "web-abc",
			expected: ResourceIdentity{
				Kind:       "Pod",
				Name:       "web-abc",
				APIVersion: "v1",
			},
		},
		"empty name is an error": {
			gvk:     appsv1.SchemeGroupVersion.WithKind("ReplicaSet"),
			name:    "  ",
			isError: true,
		},
		"empty kind is an error": {
			gvk:     schema.GroupVersionKind{Group: "apps", Version: "v1"},
			name:    "web",
			isError: true,
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			id, err := NewResourceIdentity(tc.gvk, tc.namespace, tc.name)
			if tc.isError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, id)
		})
	}
}

func TestUnstructuredToIdentity(t *testing.T) {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(appsv1.SchemeGroupVersion.WithKind("DaemonSet"))
	u.SetName("agent")
	u.SetNamespace("kube-system")

	id := UnstructuredToIdentity(u)

	assert.Equal(t, "DaemonSet/agent", id.ID())
	assert.Equal(t, "kube-system/DaemonSet/agent", id.String())
	assert.Equal(t, schema.GroupKind{Group: "apps", Kind: "DaemonSet"}, id.GroupKind())
	assert.Equal(t, appsv1.SchemeGroupVersion.WithKind("DaemonSet"), id.GroupVersionKind())
	assert.False(t, id.Empty())
	assert.True(t, ResourceIdentity{}.Empty())
}
