// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/rollout-utils/pkg/podset"
)

func TestSummaryErr(t *testing.T) {
	testCases := map[string]struct {
		results       map[string]podset.Status
		expectedError string
	}{
		"all stable": {
			results: map[string]podset.Status{
				"ReplicaSet/web":  podset.StatusStable,
				"DaemonSet/agent": podset.StatusStable,
			},
		},
		"failure wins over timeout": {
			results: map[string]podset.Status{
				"ReplicaSet/web":  podset.StatusFailed,
				"DaemonSet/agent": podset.StatusTimedOut,
			},
			expectedError: "1 of 2 workloads failed",
		},
		"timeout only": {
			results: map[string]podset.Status{
				"ReplicaSet/web":  podset.StatusStable,
				"DaemonSet/agent": podset.StatusTimedOut,
			},
			expectedError: "1 of 2 workloads timed out",
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			s := NewSummary("ReplicaSet/web", "DaemonSet/agent")
			for id, status := range tc.results {
				s.Record(id, status, "")
			}
			err := s.Err()
			if tc.expectedError == "" {
				assert.NoError(t, err)
				assert.True(t, s.Succeeded())
				return
			}
			require.EqualError(t, err, tc.expectedError)
			assert.False(t, s.Succeeded())
		})
	}
}

func TestSummaryResultsKeepOrder(t *testing.T) {
	s := NewSummary("ReplicaSet/web", "DaemonSet/agent", "StatefulSet/db")
	s.Record("StatefulSet/db", podset.StatusStable, "")
	s.Record("ReplicaSet/web", podset.StatusFailed, "crashing")

	var ids []string
	for _, r := range s.Results() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"ReplicaSet/web", "StatefulSet/db"}, ids)
	assert.Equal(t, 1, s.Count(podset.StatusFailed))
	_, found := s.Result("DaemonSet/agent")
	assert.False(t, found)
}
