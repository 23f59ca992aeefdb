// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package printer

import (
	"sigs.k8s.io/rollout-utils/pkg/discovery"
	"sigs.k8s.io/rollout-utils/pkg/rollout"
)

// Printer renders discovery and rollout results for the CLI.
type Printer interface {
	PrintResourceTypes(types []discovery.ResourceType, gvks []string) error
	PrintCRDs(crds []*discovery.CustomResourceDefinition) error

	// PrintRollout prints events until ch is closed and returns the
	// Summary of the run.
	PrintRollout(ch <-chan rollout.Event) (*rollout.Summary, error)
}
