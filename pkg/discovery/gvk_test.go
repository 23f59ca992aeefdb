// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGVKString(t *testing.T) {
	apiVersions := map[string][]string{
		"":            {"v1"},
		"apps":        {"v1"},
		"batch":       {"v1", "v1beta1"},
		"autoscaling": {"v1", "v2beta1", "v2beta2", "v2"},
		"example.com": {"v1alpha1", "v1beta1"},
	}

	testCases := map[string]struct {
		resource ResourceType
		expected string
	}{
		"served group version is used as is": {
			resource: ResourceType{APIGroup: "apps", Kind: "Deployment", APIVersion: "apps/v1"},
			expected: "apps/v1/Deployment",
		},
		"legacy group version gets the core prefix": {
			resource: ResourceType{Kind: "Pod", APIVersion: "v1"},
			expected: "core/v1/Pod",
		},
		"inferred core version": {
			resource: ResourceType{Kind: "ConfigMap"},
			expected: "core/v1/ConfigMap",
		},
		"latest stable version wins": {
			resource: ResourceType{APIGroup: "autoscaling", Kind: "HorizontalPodAutoscaler"},
			expected: "autoscaling/v2/HorizontalPodAutoscaler",
		},
		"beta beats alpha": {
			resource: ResourceType{APIGroup: "example.com", Kind: "Widget"},
			expected: "example.com/v1beta1/Widget",
		},
		"override table pins the version": {
			resource: ResourceType{APIGroup: "batch", Kind: "CronJob"},
			expected: "batch/v1beta1/CronJob",
		},
		"unknown group has no version": {
			resource: ResourceType{APIGroup: "unknown.io", Kind: "Thing"},
			expected: "unknown.io/Thing",
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.expected, GVKString(apiVersions, tc.resource))
		})
	}
}

func TestCompareVersions(t *testing.T) {
	testCases := map[string]struct {
		a, b    string
		greater bool
	}{
		"ga over beta":        {a: "v1", b: "v1beta1", greater: true},
		"major first":         {a: "v2alpha1", b: "v1", greater: true},
		"minor within beta":   {a: "v1beta2", b: "v1beta1", greater: true},
		"alpha below beta":    {a: "v1alpha3", b: "v1beta1", greater: false},
		"invalid sorts first": {a: "latest", b: "v1alpha1", greater: false},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			assert.Equal(t, tc.greater, compareVersions(tc.a, tc.b) > 0)
			assert.Equal(t, tc.greater, compareVersions(tc.b, tc.a) < 0)
		})
	}
}
